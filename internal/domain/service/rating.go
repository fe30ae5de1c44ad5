package service

import (
	"tradehub/internal/domain/entity"
)

// AggregateRating recomputes userID's rating from scratch over the given
// orders. Only completed orders with a score addressed to userID count.
func AggregateRating(userID string, orders []*entity.Order) entity.RatingSummary {
	var sum, count int
	for _, o := range orders {
		score, ok := o.ReceivedScore(userID)
		if !ok {
			continue
		}
		sum += score
		count++
	}
	if count == 0 {
		return entity.RatingSummary{}
	}
	return entity.RatingSummary{
		Average: float64(sum) / float64(count),
		Count:   count,
	}
}
