package entity

// Events pushed through the notification fan-out.
const (
	EventNewOrder          = "new-order"
	EventOrderStatusUpdate = "order-status-update"
	EventOrderCancelled    = "order-cancelled"
	EventMeetupUpdated     = "meetup-updated"
	EventNewMessage        = "new-message"
	EventOfferResponse     = "offer-response"
)

type OrderEvent struct {
	OrderID        string         `json:"order_id"`
	OrderNumber    string         `json:"order_number"`
	ListingID      string         `json:"listing_id"`
	Status         OrderStatus    `json:"status"`
	PreviousStatus OrderStatus    `json:"previous_status,omitempty"`
	Note           string         `json:"note,omitempty"`
	ActorID        string         `json:"actor_id"`
	FinalPrice     float64        `json:"final_price,omitempty"`
	Meetup         *MeetupDetails `json:"meetup,omitempty"`
}

type MessageEvent struct {
	ChatID      string   `json:"chat_id"`
	ListingID   string   `json:"listing_id"`
	Message     *Message `json:"message"`
	UnreadCount int      `json:"unread_count"`
}

type OfferResponseEvent struct {
	ChatID      string      `json:"chat_id"`
	MessageID   string      `json:"message_id"`
	Status      OfferStatus `json:"status"`
	Amount      float64     `json:"amount"`
	RespondedBy string      `json:"responded_by"`
}
