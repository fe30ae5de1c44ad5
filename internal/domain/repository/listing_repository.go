package repository

import (
	"context"

	"tradehub/internal/domain/entity"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *entity.Listing) error
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
	SetStatus(ctx context.Context, id string, status entity.ListingStatus) error
}
