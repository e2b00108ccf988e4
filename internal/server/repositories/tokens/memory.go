package tokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type MemoryCache struct {
	mu     sync.RWMutex
	tokens map[string]models.Token
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]models.Token)}
}

func (c *MemoryCache) Get(ctx context.Context, token *models.Token) (*models.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.tokens[Key(token.Subject)]
	if !ok {
		return nil, fmt.Errorf("%w: token for %s", common.ErrorNotFound, token.Subject)
	}
	return &cached, nil
}

func (c *MemoryCache) Put(ctx context.Context, token *models.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[Key(token.Subject)] = *token
	return nil
}

// Len reports the number of cached subjects.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}
