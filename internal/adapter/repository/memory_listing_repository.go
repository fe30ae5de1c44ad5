package repository

import (
	"context"
	"sync"
	"time"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/pkg/errors"
)

type memoryListingRepository struct {
	mu       sync.RWMutex
	listings map[string]*entity.Listing
}

func NewMemoryListingRepository() repository.ListingRepository {
	return &memoryListingRepository{listings: make(map[string]*entity.Listing)}
}

func cloneListing(l *entity.Listing) *entity.Listing {
	cp := *l
	cp.Images = append([]entity.ListingImage(nil), l.Images...)
	return &cp
}

func (r *memoryListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listings[listing.ID]; exists {
		return errors.Conflict("listing already exists")
	}
	r.listings[listing.ID] = cloneListing(listing)
	return nil
}

func (r *memoryListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	return cloneListing(listing), nil
}

func (r *memoryListingRepository) SetStatus(ctx context.Context, id string, status entity.ListingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[id]
	if !ok {
		return errors.NotFound("Listing", nil)
	}
	listing.Status = status
	listing.UpdatedAt = time.Now()
	return nil
}
