package service

import (
	"context"
	"time"
)

const (
	FollowUpListingStatus = "listing-status"
	FollowUpRatingUpdate  = "rating-recompute"
)

// FailedFollowUp describes a cross-aggregate write that exhausted its retries.
type FailedFollowUp struct {
	Kind        string    `json:"kind"`
	AggregateID string    `json:"aggregate_id"`
	Target      string    `json:"target"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// RemediationReporter surfaces failed follow-ups for out-of-band repair.
type RemediationReporter interface {
	Report(ctx context.Context, failure FailedFollowUp) error
}

// FollowUp is a cross-aggregate side effect scheduled after a primary write.
type FollowUp struct {
	Kind        string
	AggregateID string
	Target      string
	Run         func(ctx context.Context) error
}

// FollowUpScheduler runs follow-ups without blocking the caller.
type FollowUpScheduler interface {
	Submit(task FollowUp)
}
