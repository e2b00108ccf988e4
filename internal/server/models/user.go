package models

import "time"

// User is a registered account. ID is assigned by the store on creation.
type User struct {
	ID           int64
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Equal compares identity and credentials only; ID and CreatedAt are
// store-assigned.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.UserName == other.UserName && u.PasswordHash == other.PasswordHash
}

// UserCredentials is the login/register request body.
type UserCredentials struct {
	UserName string `json:"username" form:"username" binding:"required,max=50"`
	Password string `json:"password" form:"password" binding:"required,min=8,max=100"`
}
