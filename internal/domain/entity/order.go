package entity

import (
	"time"
)

type ListingSnapshot struct {
	Title       string   `json:"title" firestore:"title"`
	Description string   `json:"description" firestore:"description"`
	Images      []string `json:"images" firestore:"images"`
	Category    string   `json:"category" firestore:"category"`
}

type TimelineEntry struct {
	Status    OrderStatus `json:"status" firestore:"status"`
	Timestamp time.Time   `json:"timestamp" firestore:"timestamp"`
	Note      string      `json:"note,omitempty" firestore:"note,omitempty"`
	ChangedBy string      `json:"changed_by,omitempty" firestore:"changedBy,omitempty"`
}

type MeetupDetails struct {
	Location    string     `json:"location" firestore:"location"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" firestore:"scheduledAt,omitempty"`
	Notes       string     `json:"notes,omitempty" firestore:"notes,omitempty"`
}

type RatingEntry struct {
	Score   int       `json:"score" firestore:"score"`
	Review  string    `json:"review,omitempty" firestore:"review,omitempty"`
	RatedAt time.Time `json:"rated_at" firestore:"ratedAt"`
}

// OrderRating holds one slot per party. Buyer is the score the buyer gave
// the seller, Seller is the score the seller gave the buyer.
type OrderRating struct {
	Buyer  *RatingEntry `json:"buyer,omitempty" firestore:"buyer,omitempty"`
	Seller *RatingEntry `json:"seller,omitempty" firestore:"seller,omitempty"`
}

type Cancellation struct {
	Reason      string    `json:"reason" firestore:"reason"`
	CancelledBy string    `json:"cancelled_by" firestore:"cancelledBy"`
	CancelledAt time.Time `json:"cancelled_at" firestore:"cancelledAt"`
}

type Dispute struct {
	Reason     string     `json:"reason" firestore:"reason"`
	RaisedBy   string     `json:"raised_by" firestore:"raisedBy"`
	RaisedAt   time.Time  `json:"raised_at" firestore:"raisedAt"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" firestore:"resolvedAt,omitempty"`
	Resolution string     `json:"resolution,omitempty" firestore:"resolution,omitempty"`
}

type Order struct {
	ID              string          `json:"id" firestore:"id"`
	OrderNumber     string          `json:"order_number" firestore:"orderNumber"`
	ListingID       string          `json:"listing_id" firestore:"listingId"`
	BuyerID         string          `json:"buyer_id" firestore:"buyerId"`
	SellerID        string          `json:"seller_id" firestore:"sellerId"`
	ListingPrice    float64         `json:"listing_price" firestore:"listingPrice"`
	NegotiatedPrice *float64        `json:"negotiated_price,omitempty" firestore:"negotiatedPrice,omitempty"`
	FinalPrice      float64         `json:"final_price" firestore:"finalPrice"`
	ListingSnapshot ListingSnapshot `json:"listing_snapshot" firestore:"listingSnapshot"`
	Status          OrderStatus     `json:"status" firestore:"status"`
	Timeline        []TimelineEntry `json:"timeline" firestore:"timeline"`
	Meetup          *MeetupDetails  `json:"meetup,omitempty" firestore:"meetup,omitempty"`
	Notes           string          `json:"notes,omitempty" firestore:"notes,omitempty"`
	Rating          OrderRating     `json:"rating" firestore:"rating"`
	Cancellation    *Cancellation   `json:"cancellation,omitempty" firestore:"cancellation,omitempty"`
	Dispute         *Dispute        `json:"dispute,omitempty" firestore:"dispute,omitempty"`
	Version         int64           `json:"version" firestore:"version"`

	CreatedAt   time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updated_at" firestore:"updatedAt"`
	CompletedAt *time.Time `json:"completed_at,omitempty" firestore:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" firestore:"cancelledAt,omitempty"`
}

func (o *Order) IsParticipant(userID string) bool {
	return userID != "" && (o.BuyerID == userID || o.SellerID == userID)
}

// Counterparty returns the other party of the order, or "" when userID is
// not a participant (for example an admin acting on the order).
func (o *Order) Counterparty(userID string) string {
	switch userID {
	case o.BuyerID:
		return o.SellerID
	case o.SellerID:
		return o.BuyerID
	}
	return ""
}

func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusMeetupScheduled:
		return true
	}
	return false
}

// RatingSlot returns the slot the given party fills when rating this order.
func (o *Order) RatingSlot(userID string) **RatingEntry {
	switch userID {
	case o.BuyerID:
		return &o.Rating.Buyer
	case o.SellerID:
		return &o.Rating.Seller
	}
	return nil
}

// ReceivedScore returns the score userID received on this order, if any.
func (o *Order) ReceivedScore(userID string) (int, bool) {
	if o.Status != OrderStatusCompleted {
		return 0, false
	}
	switch userID {
	case o.SellerID:
		if o.Rating.Buyer != nil {
			return o.Rating.Buyer.Score, true
		}
	case o.BuyerID:
		if o.Rating.Seller != nil {
			return o.Rating.Seller.Score, true
		}
	}
	return 0, false
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (o *Order) Clone() *Order {
	c := *o
	c.Timeline = append([]TimelineEntry(nil), o.Timeline...)
	c.ListingSnapshot.Images = append([]string(nil), o.ListingSnapshot.Images...)
	if o.NegotiatedPrice != nil {
		v := *o.NegotiatedPrice
		c.NegotiatedPrice = &v
	}
	if o.Meetup != nil {
		m := *o.Meetup
		c.Meetup = &m
	}
	if o.Rating.Buyer != nil {
		r := *o.Rating.Buyer
		c.Rating.Buyer = &r
	}
	if o.Rating.Seller != nil {
		r := *o.Rating.Seller
		c.Rating.Seller = &r
	}
	if o.Cancellation != nil {
		x := *o.Cancellation
		c.Cancellation = &x
	}
	if o.Dispute != nil {
		d := *o.Dispute
		c.Dispute = &d
	}
	return &c
}
