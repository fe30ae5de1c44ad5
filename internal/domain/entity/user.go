package entity

import (
	"time"
)

const RoleAdmin = "admin"

// RatingSummary is a derived cache recomputed from completed orders.
type RatingSummary struct {
	Average float64 `json:"average" firestore:"average"`
	Count   int     `json:"count" firestore:"count"`
}

type User struct {
	ID        string        `json:"id" firestore:"id"`
	Username  string        `json:"username" firestore:"username"`
	Role      string        `json:"role" firestore:"role"`
	Rating    RatingSummary `json:"rating" firestore:"rating"`
	CreatedAt time.Time     `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time     `json:"updated_at" firestore:"updatedAt"`
}

// Caller is the already-authenticated identity behind a request.
type Caller struct {
	UserID string
	Role   string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
