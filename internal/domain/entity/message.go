package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"tradehub/pkg/errors"
)

const MaxMessageLength = 2000

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeOffer MessageType = "offer"
)

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

type ImagePayload struct {
	URL      string `json:"url" firestore:"url"`
	PublicID string `json:"public_id" firestore:"publicId"`
}

type OfferPayload struct {
	Amount      float64     `json:"amount" firestore:"amount"`
	Status      OfferStatus `json:"status" firestore:"status"`
	RespondedBy string      `json:"responded_by,omitempty" firestore:"respondedBy,omitempty"`
	RespondedAt *time.Time  `json:"responded_at,omitempty" firestore:"respondedAt,omitempty"`
}

type Message struct {
	ID        string        `json:"id" firestore:"id"`
	ChatID    string        `json:"chat_id" firestore:"chatId"`
	Seq       int           `json:"seq" firestore:"seq"`
	SenderID  string        `json:"sender_id" firestore:"senderId"`
	Content   string        `json:"content" firestore:"content"`
	Type      MessageType   `json:"type" firestore:"type"`
	Image     *ImagePayload `json:"image,omitempty" firestore:"image,omitempty"`
	Offer     *OfferPayload `json:"offer,omitempty" firestore:"offer,omitempty"`
	Read      bool          `json:"read" firestore:"read"`
	ReadAt    *time.Time    `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	CreatedAt time.Time     `json:"created_at" firestore:"createdAt"`
}

// Validate checks the per-type payload rules of a message about to be sent.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return errors.ValidationFailed("message content is required", nil)
	}
	if utf8.RuneCountInString(m.Content) > MaxMessageLength {
		return errors.ValidationFailed("message content exceeds 2000 characters", nil)
	}

	switch m.Type {
	case MessageTypeText:
	case MessageTypeImage:
		if m.Image == nil || m.Image.URL == "" {
			return errors.ValidationFailed("image messages require an image", nil)
		}
	case MessageTypeOffer:
		if m.Offer == nil {
			return errors.ValidationFailed("offer messages require an amount", nil)
		}
		if m.Offer.Amount <= 0 {
			return errors.ValidationFailed("offer amount must be positive", nil)
		}
	default:
		return errors.ValidationFailed("unknown message type", nil)
	}
	return nil
}

func (m *Message) Clone() *Message {
	cp := *m
	if m.Image != nil {
		img := *m.Image
		cp.Image = &img
	}
	if m.Offer != nil {
		offer := *m.Offer
		cp.Offer = &offer
	}
	if m.ReadAt != nil {
		at := *m.ReadAt
		cp.ReadAt = &at
	}
	return &cp
}
