package entity

import (
	"time"

	"tradehub/pkg/errors"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusMeetupScheduled OrderStatus = "meetup-scheduled"
	OrderStatusInProgress      OrderStatus = "in-progress"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusDisputed        OrderStatus = "disputed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:       {OrderStatusMeetupScheduled, OrderStatusCancelled},
	OrderStatusMeetupScheduled: {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress:      {OrderStatusCompleted, OrderStatusDisputed},
	OrderStatusDisputed:        {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:       nil,
	OrderStatusCancelled:       nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// AllowedTransitions lists the statuses reachable from s in one step.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition moves the order to target and appends exactly one timeline
// entry. On an illegal move the order is left untouched.
func (o *Order) Transition(target OrderStatus, note, actorID string, at time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return errors.InvalidTransition(string(o.Status), string(target))
	}

	o.Status = target
	o.Timeline = append(o.Timeline, TimelineEntry{
		Status:    target,
		Timestamp: at,
		Note:      note,
		ChangedBy: actorID,
	})
	o.UpdatedAt = at

	switch target {
	case OrderStatusCompleted:
		o.CompletedAt = &at
	case OrderStatusCancelled:
		o.CancelledAt = &at
	}
	return nil
}

// LastTimelineStatus is the status recorded by the most recent timeline entry.
func (o *Order) LastTimelineStatus() OrderStatus {
	if len(o.Timeline) == 0 {
		return ""
	}
	return o.Timeline[len(o.Timeline)-1].Status
}
