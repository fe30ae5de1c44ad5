package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/pkg/errors"
	"tradehub/pkg/utils"
)

const (
	ordersCollection       = "orders"
	orderNumbersCollection = "orderNumbers"
)

type orderNumberClaim struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type firestoreOrderRepository struct {
	client *firestore.Client
}

func NewFirestoreOrderRepository(client *firestore.Client) repository.OrderRepository {
	return &firestoreOrderRepository{
		client: client,
	}
}

// Create claims the order number and stores the order in one transaction.
func (r *firestoreOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	orderRef := r.client.Collection(ordersCollection).Doc(order.ID)
	numberRef := r.client.Collection(orderNumbersCollection).Doc(order.OrderNumber)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(numberRef)
		if err == nil {
			return errors.Conflict("order number already in use")
		}
		if !isNotFound(err) {
			return err
		}
		if err := tx.Create(numberRef, orderNumberClaim{OrderID: order.ID, CreatedAt: order.CreatedAt}); err != nil {
			return err
		}
		return tx.Create(orderRef, order)
	})
	return storeError(err, "Order", "create")
}

func (r *firestoreOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return getDoc[entity.Order](ctx, r.client.Collection(ordersCollection).Doc(id), "Order")
}

func (r *firestoreOrderRepository) Update(ctx context.Context, id string, fn repository.OrderMutation) (*entity.Order, error) {
	ref := r.client.Collection(ordersCollection).Doc(id)

	var committed *entity.Order
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		order, err := getInTx[entity.Order](tx, ref, "Order")
		if err != nil {
			return err
		}
		if err := fn(order); err != nil {
			return err
		}
		order.Version++
		committed = order
		return tx.Set(ref, order)
	})
	if err != nil {
		return nil, storeError(err, "Order", "update")
	}
	return committed, nil
}

func (r *firestoreOrderRepository) query(field, userID string, status entity.OrderStatus) firestore.Query {
	q := r.client.Collection(ordersCollection).Query
	if userID != "" {
		q = q.Where(field, "==", userID)
	}
	if status != "" {
		q = q.Where("status", "==", string(status))
	}
	return q.OrderBy("createdAt", firestore.Desc)
}

// List pages in memory after merging the buyer and seller sides, since a
// participant filter spans two fields.
func (r *firestoreOrderRepository) List(ctx context.Context, filter repository.OrderFilter, limit, offset int) ([]*entity.Order, int64, error) {
	var queries []firestore.Query
	switch {
	case filter.UserID == "":
		queries = append(queries, r.query("", "", filter.Status))
	case filter.Role == "buyer":
		queries = append(queries, r.query("buyerId", filter.UserID, filter.Status))
	case filter.Role == "seller":
		queries = append(queries, r.query("sellerId", filter.UserID, filter.Status))
	default:
		queries = append(queries,
			r.query("buyerId", filter.UserID, filter.Status),
			r.query("sellerId", filter.UserID, filter.Status),
		)
	}

	seen := make(map[string]bool)
	var orders []*entity.Order
	for _, q := range queries {
		found, err := collect[entity.Order](q.Documents(ctx), "Order")
		if err != nil {
			return nil, 0, err
		}
		for _, o := range found {
			if !seen[o.ID] {
				seen[o.ID] = true
				orders = append(orders, o)
			}
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	start, end := utils.Window(len(orders), limit, offset)
	return orders[start:end], int64(len(orders)), nil
}

func (r *firestoreOrderRepository) ListCompletedFor(ctx context.Context, userID string) ([]*entity.Order, error) {
	orders, _, err := r.List(ctx, repository.OrderFilter{UserID: userID, Status: entity.OrderStatusCompleted}, 0, 0)
	return orders, err
}
