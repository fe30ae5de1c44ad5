package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
)

const listingsCollection = "listings"

type firestoreListingRepository struct {
	client *firestore.Client
}

func NewFirestoreListingRepository(client *firestore.Client) repository.ListingRepository {
	return &firestoreListingRepository{
		client: client,
	}
}

func (r *firestoreListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	_, err := r.client.Collection(listingsCollection).Doc(listing.ID).Create(ctx, listing)
	return storeError(err, "Listing", "create")
}

func (r *firestoreListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	return getDoc[entity.Listing](ctx, r.client.Collection(listingsCollection).Doc(id), "Listing")
}

func (r *firestoreListingRepository) SetStatus(ctx context.Context, id string, status entity.ListingStatus) error {
	_, err := r.client.Collection(listingsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: time.Now()},
	})
	return storeError(err, "Listing", "update")
}
