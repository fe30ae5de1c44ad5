package repository

import (
	"context"
	"sort"
	"sync"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/pkg/errors"
	"tradehub/pkg/utils"
)

type memoryOrderRepository struct {
	mu       sync.RWMutex
	orders   map[string]*entity.Order
	numbers  map[string]string
	inFlight *keyedMutex
}

func NewMemoryOrderRepository() repository.OrderRepository {
	return &memoryOrderRepository{
		orders:   make(map[string]*entity.Order),
		numbers:  make(map[string]string),
		inFlight: newKeyedMutex(),
	}
}

func (r *memoryOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return errors.Conflict("order already exists")
	}
	if _, taken := r.numbers[order.OrderNumber]; taken {
		return errors.Conflict("order number already in use")
	}
	r.orders[order.ID] = order.Clone()
	r.numbers[order.OrderNumber] = order.ID
	return nil
}

func (r *memoryOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.NotFound("Order", nil)
	}
	return order.Clone(), nil
}

func (r *memoryOrderRepository) Update(ctx context.Context, id string, fn repository.OrderMutation) (*entity.Order, error) {
	unlock := r.inFlight.Lock(id)
	defer unlock()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	current.Version++

	r.mu.Lock()
	r.orders[id] = current.Clone()
	r.mu.Unlock()
	return current, nil
}

func (r *memoryOrderRepository) List(ctx context.Context, filter repository.OrderFilter, limit, offset int) ([]*entity.Order, int64, error) {
	r.mu.RLock()
	var matched []*entity.Order
	for _, o := range r.orders {
		if matchesOrderFilter(o, filter) {
			matched = append(matched, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func matchesOrderFilter(o *entity.Order, f repository.OrderFilter) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.UserID == "" {
		return true
	}
	switch f.Role {
	case "buyer":
		return o.BuyerID == f.UserID
	case "seller":
		return o.SellerID == f.UserID
	}
	return o.IsParticipant(f.UserID)
}

func (r *memoryOrderRepository) ListCompletedFor(ctx context.Context, userID string) ([]*entity.Order, error) {
	orders, _, err := r.List(ctx, repository.OrderFilter{UserID: userID, Status: entity.OrderStatusCompleted}, 0, 0)
	return orders, err
}
