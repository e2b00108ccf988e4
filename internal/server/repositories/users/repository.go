// Package users stores registered accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists users keyed by username. Create rejects a second
// user with the same name with common.ErrorAlreadyExists; GetUserByLogin
// returns common.ErrorNotFound when nothing matches.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
