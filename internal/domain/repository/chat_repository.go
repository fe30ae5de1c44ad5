package repository

import (
	"context"
	"time"

	"tradehub/internal/domain/entity"
)

// ChatMutation edits a chat in place. Returning an error aborts the write.
type ChatMutation func(chat *entity.Chat) error

// AppendFunc runs inside the chat's consistency boundary right before a
// message is stored. It may reject the append by returning an error.
type AppendFunc func(chat *entity.Chat, msg *entity.Message) error

// MessageMutation edits one message of a chat. The chat is passed read-only
// for authorization checks.
type MessageMutation func(chat *entity.Chat, msg *entity.Message) error

type ChatRepository interface {
	// FindOrCreate returns the chat with candidate.ID, storing candidate when
	// none exists. A soft-deleted chat is reactivated. created reports whether
	// candidate was stored.
	FindOrCreate(ctx context.Context, candidate *entity.Chat) (chat *entity.Chat, created bool, err error)
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	Update(ctx context.Context, id string, fn ChatMutation) (*entity.Chat, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error)

	// AppendMessage adds msg to the chat, keeping the LastMessage cache and
	// unread counters in the same write.
	AppendMessage(ctx context.Context, chatID string, msg *entity.Message, fn AppendFunc) (*entity.Chat, error)
	// MarkRead flags the unread messages addressed to userID and zeroes the
	// counter. It returns the number of messages changed.
	MarkRead(ctx context.Context, chatID, userID string, at time.Time, authorize ChatMutation) (int, error)
	UpdateMessage(ctx context.Context, chatID, messageID string, fn MessageMutation) (*entity.Message, error)
	// GetMessages lists messages oldest first.
	GetMessages(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)
}
