package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores tokens as JSON values without a TTL; expiry is checked
// by the caller on read.
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient builds a go-redis client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *RedisCache) Get(ctx context.Context, token *models.Token) (*models.Token, error) {
	raw, err := c.client.Get(ctx, Key(token.Subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: token for %s", common.ErrorNotFound, token.Subject)
		}
		return nil, fmt.Errorf("cache error: %w", err)
	}

	cached := &models.Token{}
	if err := json.Unmarshal(raw, cached); err != nil {
		return nil, fmt.Errorf("cache error: %w", err)
	}
	return cached, nil
}

func (c *RedisCache) Put(ctx context.Context, token *models.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("cache error: %w", err)
	}
	if err := c.client.Set(ctx, Key(token.Subject), data, 0).Err(); err != nil {
		return fmt.Errorf("cache error: %w", err)
	}
	return nil
}
