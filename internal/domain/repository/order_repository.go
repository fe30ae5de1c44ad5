package repository

import (
	"context"

	"tradehub/internal/domain/entity"
)

// OrderMutation edits an order in place. Returning an error aborts the
// write and the stored order stays untouched.
type OrderMutation func(order *entity.Order) error

type OrderFilter struct {
	UserID string
	// Role is "buyer", "seller" or empty for both sides.
	Role   string
	Status entity.OrderStatus
}

type OrderRepository interface {
	// Create stores a new order. It fails with a Conflict error when the
	// order number is already taken.
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	// Update serializes read-modify-write on one order and returns the
	// committed copy.
	Update(ctx context.Context, id string, fn OrderMutation) (*entity.Order, error)
	List(ctx context.Context, filter OrderFilter, limit, offset int) ([]*entity.Order, int64, error)
	// ListCompletedFor returns every completed order where userID is buyer or seller.
	ListCompletedFor(ctx context.Context, userID string) ([]*entity.Order, error)
}
