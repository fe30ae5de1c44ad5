package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehub/pkg/errors"
)

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusMeetupScheduled,
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusDisputed,
}

func newPendingOrder(at time.Time) *Order {
	return &Order{
		ID:       "order-1",
		BuyerID:  "buyer",
		SellerID: "seller",
		Status:   OrderStatusPending,
		Timeline: []TimelineEntry{{Status: OrderStatusPending, Timestamp: at}},
	}
}

func TestTransitionTable(t *testing.T) {
	expected := map[OrderStatus][]OrderStatus{
		OrderStatusPending:         {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:       {OrderStatusMeetupScheduled, OrderStatusCancelled},
		OrderStatusMeetupScheduled: {OrderStatusInProgress, OrderStatusCancelled},
		OrderStatusInProgress:      {OrderStatusCompleted, OrderStatusDisputed},
		OrderStatusDisputed:        {OrderStatusCompleted, OrderStatusCancelled},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, allowed := range expected[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusDisputed.IsTerminal())
	assert.False(t, OrderStatus("shipped").Valid())
}

func TestTransitionAppendsOneEntry(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	order := newPendingOrder(start)

	at := start.Add(time.Hour)
	require.NoError(t, order.Transition(OrderStatusConfirmed, "ok", "seller", at))

	assert.Equal(t, OrderStatusConfirmed, order.Status)
	require.Len(t, order.Timeline, 2)
	assert.Equal(t, TimelineEntry{Status: OrderStatusConfirmed, Timestamp: at, Note: "ok", ChangedBy: "seller"}, order.Timeline[1])
	assert.Equal(t, order.Status, order.LastTimelineStatus())
	assert.Equal(t, at, order.UpdatedAt)
}

func TestIllegalTransitionLeavesOrderUnchanged(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if from.CanTransitionTo(to) {
				continue
			}
			order := newPendingOrder(start)
			order.Status = from
			order.Timeline[0].Status = from
			before := order.Clone()

			err := order.Transition(to, "", "buyer", start.Add(time.Minute))

			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
			appErr, _ := errors.As(err)
			assert.Equal(t, string(from), appErr.Details["current"])
			assert.Equal(t, string(to), appErr.Details["requested"])
			assert.Equal(t, before, order)
		}
	}
}

func TestTerminalTimestamps(t *testing.T) {
	at := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	order := newPendingOrder(at)
	require.NoError(t, order.Transition(OrderStatusCancelled, "", "buyer", at))
	require.NotNil(t, order.CancelledAt)
	assert.Equal(t, at, *order.CancelledAt)
	assert.Nil(t, order.CompletedAt)

	order = newPendingOrder(at)
	order.Status = OrderStatusInProgress
	require.NoError(t, order.Transition(OrderStatusCompleted, "", "seller", at))
	require.NotNil(t, order.CompletedAt)
}
