package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/pkg/errors"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) chatRef(id string) *firestore.DocumentRef {
	return r.client.Collection(chatsCollection).Doc(id)
}

func (r *firestoreChatRepository) messages(chatID string) *firestore.CollectionRef {
	return r.chatRef(chatID).Collection(messagesCollection)
}

func (r *firestoreChatRepository) FindOrCreate(ctx context.Context, candidate *entity.Chat) (*entity.Chat, bool, error) {
	ref := r.chatRef(candidate.ID)

	var result *entity.Chat
	var created bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		existing, err := getInTx[entity.Chat](tx, ref, "Chat")
		if errors.Is(err, errors.CodeNotFound) {
			created = true
			result = candidate.Clone()
			return tx.Create(ref, result)
		}
		if err != nil {
			return err
		}
		result = existing
		if existing.IsActive {
			return nil
		}
		existing.IsActive = true
		existing.Version++
		existing.UpdatedAt = candidate.CreatedAt
		return tx.Set(ref, existing)
	})
	if err != nil {
		return nil, false, storeError(err, "Chat", "find-or-create")
	}
	return result, created, nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	return getDoc[entity.Chat](ctx, r.chatRef(id), "Chat")
}

func (r *firestoreChatRepository) Update(ctx context.Context, id string, fn repository.ChatMutation) (*entity.Chat, error) {
	ref := r.chatRef(id)

	var committed *entity.Chat
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chat, err := getInTx[entity.Chat](tx, ref, "Chat")
		if err != nil {
			return err
		}
		before := chat.Version
		if err := fn(chat); err != nil {
			return err
		}
		if chat.Version == before {
			chat.Version++
		}
		committed = chat
		return tx.Set(ref, chat)
	})
	if err != nil {
		return nil, storeError(err, "Chat", "update")
	}
	return committed, nil
}

func (r *firestoreChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	base := r.client.Collection(chatsCollection).
		Where("participants", "array-contains", userID).
		Where("isActive", "==", true)

	all, err := base.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, storeError(err, "Chat", "count")
	}
	total := int64(len(all))

	query := base.OrderBy("lastMessageAt", firestore.Desc)
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	chats, err := collect[entity.Chat](query.Documents(ctx), "Chat")
	if err != nil {
		return nil, 0, err
	}
	return chats, total, nil
}

// AppendMessage writes the message and the chat's counters in one
// transaction. Seq comes from the chat's MessageCount read inside it.
func (r *firestoreChatRepository) AppendMessage(ctx context.Context, chatID string, msg *entity.Message, fn repository.AppendFunc) (*entity.Chat, error) {
	ref := r.chatRef(chatID)
	msgRef := r.messages(chatID).Doc(msg.ID)

	var committed *entity.Chat
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chat, err := getInTx[entity.Chat](tx, ref, "Chat")
		if err != nil {
			return err
		}
		if err := fn(chat, msg); err != nil {
			return err
		}
		chat.Append(msg)
		if err := tx.Create(msgRef, msg); err != nil {
			return err
		}
		committed = chat
		return tx.Set(ref, chat)
	})
	if err != nil {
		return nil, storeError(err, "Chat", "append message to")
	}
	return committed, nil
}

func (r *firestoreChatRepository) MarkRead(ctx context.Context, chatID, userID string, at time.Time, authorize repository.ChatMutation) (int, error) {
	ref := r.chatRef(chatID)
	unread := r.messages(chatID).Where("read", "==", false)

	var changed int
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chat, err := getInTx[entity.Chat](tx, ref, "Chat")
		if err != nil {
			return err
		}
		if err := authorize(chat); err != nil {
			return err
		}
		docs, err := tx.Documents(unread).GetAll()
		if err != nil {
			return err
		}
		pending := make([]*entity.Message, 0, len(docs))
		for _, doc := range docs {
			var m entity.Message
			if err := doc.DataTo(&m); err != nil {
				return errors.Internal("Failed to parse message data", err)
			}
			pending = append(pending, &m)
		}

		before := chat.Version
		updated := chat.MarkRead(userID, pending, at)
		changed = len(updated)
		for _, m := range updated {
			if err := tx.Update(r.messages(chatID).Doc(m.ID), []firestore.Update{
				{Path: "read", Value: true},
				{Path: "readAt", Value: *m.ReadAt},
			}); err != nil {
				return err
			}
		}
		if chat.Version == before {
			return nil
		}
		return tx.Set(ref, chat)
	})
	if err != nil {
		return 0, storeError(err, "Chat", "mark read")
	}
	return changed, nil
}

func (r *firestoreChatRepository) UpdateMessage(ctx context.Context, chatID, messageID string, fn repository.MessageMutation) (*entity.Message, error) {
	ref := r.chatRef(chatID)
	msgRef := r.messages(chatID).Doc(messageID)

	var committed *entity.Message
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		chat, err := getInTx[entity.Chat](tx, ref, "Chat")
		if err != nil {
			return err
		}
		msg, err := getInTx[entity.Message](tx, msgRef, "Message")
		if err != nil {
			return err
		}
		if err := fn(chat, msg); err != nil {
			return err
		}
		committed = msg
		return tx.Set(msgRef, msg)
	})
	if err != nil {
		return nil, storeError(err, "Message", "update")
	}
	return committed, nil
}

func (r *firestoreChatRepository) GetMessages(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	chat, err := r.GetByID(ctx, chatID)
	if err != nil {
		return nil, 0, err
	}

	query := r.messages(chatID).OrderBy("seq", firestore.Asc)
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	messages, err := collect[entity.Message](query.Documents(ctx), "Message")
	if err != nil {
		return nil, 0, err
	}
	return messages, int64(chat.MessageCount), nil
}
