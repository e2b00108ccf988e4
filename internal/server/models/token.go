package models

import "time"

// TokenLifetime is the fixed validity window of an issued token.
const TokenLifetime = time.Hour

// Token is a signed identity claim for Subject issued at IssuedAt.
type Token struct {
	Subject      string    `json:"subject"`
	IssuedAt     time.Time `json:"issued_at"`
	EncodedToken string    `json:"encoded_token"`
	ID           int64     `json:"token_id,omitempty"`
}

// IsExpired reports whether the token is past its lifetime.
func (t *Token) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt is strict: a token is still live at exactly IssuedAt+TokenLifetime.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return now.After(t.IssuedAt.Add(TokenLifetime))
}

// Equal compares subject, issue time and encoded value; ID is ignored.
func (t *Token) Equal(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Subject == other.Subject &&
		t.IssuedAt.Equal(other.IssuedAt) &&
		t.EncodedToken == other.EncodedToken
}
