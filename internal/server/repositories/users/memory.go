package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// InMemoryRepository keeps users in process memory. IDs start at 1.
type InMemoryRepository struct {
	mu     sync.RWMutex
	users  []models.User
	nextID int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.UserName == user.UserName {
			return nil, fmt.Errorf("%w: user %s", common.ErrorAlreadyExists, user.UserName)
		}
	}

	stored := models.User{
		ID:           r.nextID,
		UserName:     user.UserName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.nextID++
	r.users = append(r.users, stored)

	return &stored, nil
}

func (r *InMemoryRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.UserName == userName {
			found := u
			return &found, nil
		}
	}

	return nil, common.ErrorNotFound
}
