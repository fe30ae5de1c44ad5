package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
)

const usersCollection = "users"

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return getDoc[entity.User](ctx, r.client.Collection(usersCollection).Doc(id), "User")
}

// SetRating merges the cached rating, creating the profile document when the
// user has none yet.
func (r *firestoreUserRepository) SetRating(ctx context.Context, userID string, rating entity.RatingSummary) error {
	updateData := map[string]interface{}{
		"id": userID,
		"rating": map[string]interface{}{
			"average": rating.Average,
			"count":   rating.Count,
		},
		"updatedAt": time.Now(),
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Set(ctx, updateData, firestore.MergeAll)
	return storeError(err, "User", "update rating for")
}
