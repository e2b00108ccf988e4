// Package tokens caches the most recently issued token per subject.
package tokens

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Cache holds at most one token per subject. Get returns
// common.ErrorNotFound on a miss; Put overwrites unconditionally.
type Cache interface {
	Get(ctx context.Context, token *models.Token) (*models.Token, error)
	Put(ctx context.Context, token *models.Token) error
}

// Key derives the cache key from the token subject, so that re-issued
// tokens replace the previous entry.
func Key(subject string) string {
	return "token:" + subject
}
