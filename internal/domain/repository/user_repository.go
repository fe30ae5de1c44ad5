package repository

import (
	"context"

	"tradehub/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// SetRating overwrites the cached aggregate rating, creating the profile
	// when it does not exist yet.
	SetRating(ctx context.Context, userID string, rating entity.RatingSummary) error
}
