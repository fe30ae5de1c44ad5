package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"tradehub/pkg/errors"
)

const lastMessagePreviewLength = 100

// UnreadCounter maps participant id to unread messages. Missing keys read as zero.
type UnreadCounter map[string]int

func (u UnreadCounter) Get(userID string) int {
	return u[userID]
}

type LastMessage struct {
	Content  string      `json:"content" firestore:"content"`
	SenderID string      `json:"sender_id" firestore:"senderId"`
	Type     MessageType `json:"type" firestore:"type"`
	SentAt   time.Time   `json:"sent_at" firestore:"sentAt"`
}

type Chat struct {
	ID            string        `json:"id" firestore:"id"`
	Participants  []string      `json:"participants" firestore:"participants"`
	ListingID     string        `json:"listing_id" firestore:"listingId"`
	SellerID      string        `json:"seller_id" firestore:"sellerId"`
	BuyerID       string        `json:"buyer_id" firestore:"buyerId"`
	LastMessage   *LastMessage  `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	MessageCount  int           `json:"message_count" firestore:"messageCount"`
	UnreadCount   UnreadCounter `json:"unread_count" firestore:"unreadCount"`
	BlockedBy     []string      `json:"blocked_by" firestore:"blockedBy"`
	IsActive      bool          `json:"is_active" firestore:"isActive"`
	Version       int64         `json:"version" firestore:"version"`
	CreatedAt     time.Time     `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time     `json:"updated_at" firestore:"updatedAt"`
	LastMessageAt time.Time     `json:"last_message_at" firestore:"lastMessageAt"`
}

// ChatID derives the identity of the conversation between two users about
// one listing. Participant order does not matter.
func ChatID(userA, userB, listingID string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	sum := sha256.Sum256([]byte(pair[0] + "|" + pair[1] + "|" + listingID))
	return hex.EncodeToString(sum[:])
}

// NewChat builds a conversation about listingID. Exactly two distinct
// participants are required and sellerID must be one of them.
func NewChat(participants []string, listingID, sellerID string, at time.Time) (*Chat, error) {
	if len(participants) != 2 {
		return nil, errors.ValidationFailed("a chat must have exactly two participants", nil)
	}
	if participants[0] == "" || participants[1] == "" {
		return nil, errors.ValidationFailed("participant id is required", nil)
	}
	if participants[0] == participants[1] {
		return nil, errors.ValidationFailed("cannot chat with yourself", nil)
	}
	if listingID == "" {
		return nil, errors.ValidationFailed("listing id is required", nil)
	}

	var buyerID string
	switch sellerID {
	case participants[0]:
		buyerID = participants[1]
	case participants[1]:
		buyerID = participants[0]
	default:
		return nil, errors.ValidationFailed("seller must be a participant", nil)
	}

	return &Chat{
		ID:            ChatID(participants[0], participants[1], listingID),
		Participants:  []string{participants[0], participants[1]},
		ListingID:     listingID,
		SellerID:      sellerID,
		BuyerID:       buyerID,
		UnreadCount:   UnreadCounter{participants[0]: 0, participants[1]: 0},
		BlockedBy:     []string{},
		IsActive:      true,
		Version:       1,
		CreatedAt:     at,
		UpdatedAt:     at,
		LastMessageAt: at,
	}, nil
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (c *Chat) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c *Chat) IsBlocked() bool {
	return len(c.BlockedBy) > 0
}

func (c *Chat) IsBlockedBy(userID string) bool {
	for _, id := range c.BlockedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ToggleBlock flips userID's membership in BlockedBy and reports the new state.
func (c *Chat) ToggleBlock(userID string, at time.Time) bool {
	if c.IsBlockedBy(userID) {
		kept := make([]string, 0, len(c.BlockedBy))
		for _, id := range c.BlockedBy {
			if id != userID {
				kept = append(kept, id)
			}
		}
		c.BlockedBy = kept
		c.touch(at)
		return false
	}
	c.BlockedBy = append(c.BlockedBy, userID)
	c.touch(at)
	return true
}

// Append records msg as the newest message: it assigns the sequence number,
// refreshes the LastMessage cache and bumps the recipient's unread counter.
func (c *Chat) Append(msg *Message) {
	c.MessageCount++
	msg.ChatID = c.ID
	msg.Seq = c.MessageCount

	c.LastMessage = &LastMessage{
		Content:  Preview(msg.Content),
		SenderID: msg.SenderID,
		Type:     msg.Type,
		SentAt:   msg.CreatedAt,
	}
	c.LastMessageAt = msg.CreatedAt

	if c.UnreadCount == nil {
		c.UnreadCount = UnreadCounter{}
	}
	c.UnreadCount[c.OtherParticipant(msg.SenderID)]++
	c.touch(msg.CreatedAt)
}

// MarkRead flags every unread message not authored by userID and zeroes the
// counter. It returns the messages it changed; none on a repeat call.
func (c *Chat) MarkRead(userID string, messages []*Message, at time.Time) []*Message {
	var changed []*Message
	for _, m := range messages {
		if m.SenderID == userID || m.Read {
			continue
		}
		readAt := at
		m.Read = true
		m.ReadAt = &readAt
		changed = append(changed, m)
	}

	if c.UnreadCount.Get(userID) == 0 && len(changed) == 0 {
		return nil
	}
	if c.UnreadCount == nil {
		c.UnreadCount = UnreadCounter{}
	}
	c.UnreadCount[userID] = 0
	c.touch(at)
	return changed
}

func (c *Chat) touch(at time.Time) {
	c.Version++
	c.UpdatedAt = at
}

// Preview truncates content for the LastMessage cache.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= lastMessagePreviewLength {
		return content
	}
	return string(runes[:lastMessagePreviewLength])
}

func (c *Chat) Clone() *Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.BlockedBy = append([]string{}, c.BlockedBy...)
	cp.UnreadCount = make(UnreadCounter, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		cp.UnreadCount[k] = v
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}
