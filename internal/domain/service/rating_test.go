package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradehub/internal/domain/entity"
)

func completedOrder(buyer, seller string, buyerScore, sellerScore int) *entity.Order {
	o := &entity.Order{BuyerID: buyer, SellerID: seller, Status: entity.OrderStatusCompleted}
	if buyerScore > 0 {
		o.Rating.Buyer = &entity.RatingEntry{Score: buyerScore}
	}
	if sellerScore > 0 {
		o.Rating.Seller = &entity.RatingEntry{Score: sellerScore}
	}
	return o
}

func TestAggregateRatingIsExactMean(t *testing.T) {
	scores := []int{5, 4, 4, 3, 5, 1, 2}
	var orders []*entity.Order
	sum := 0
	for _, s := range scores {
		orders = append(orders, completedOrder("b", "s", s, 0))
		sum += s
	}
	// unrated and non-completed orders are ignored
	orders = append(orders, completedOrder("b", "s", 0, 0))
	pending := completedOrder("b", "s", 1, 0)
	pending.Status = entity.OrderStatusDisputed
	orders = append(orders, pending)

	summary := AggregateRating("s", orders)

	assert.Equal(t, len(scores), summary.Count)
	assert.InDelta(t, float64(sum)/float64(len(scores)), summary.Average, 1e-9)
}

func TestAggregateRatingCountsBothRoles(t *testing.T) {
	orders := []*entity.Order{
		completedOrder("u", "other", 0, 2), // u rated as buyer
		completedOrder("other", "u", 4, 0), // u rated as seller
		completedOrder("u", "other", 5, 0), // u gave a score, received none
	}

	summary := AggregateRating("u", orders)

	assert.Equal(t, 2, summary.Count)
	assert.InDelta(t, 3.0, summary.Average, 1e-9)
}

func TestAggregateRatingEmpty(t *testing.T) {
	assert.Equal(t, entity.RatingSummary{}, AggregateRating("u", nil))
}
