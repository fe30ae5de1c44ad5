package repository

import (
	"context"
	"sync"
	"time"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/pkg/errors"
)

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewMemoryUserRepository() repository.UserRepository {
	return &memoryUserRepository{users: make(map[string]*entity.User)}
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	cp := *user
	return &cp, nil
}

func (r *memoryUserRepository) SetRating(ctx context.Context, userID string, rating entity.RatingSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	user, ok := r.users[userID]
	if !ok {
		user = &entity.User{ID: userID, CreatedAt: now}
		r.users[userID] = user
	}
	user.Rating = rating
	user.UpdatedAt = now
	return nil
}
