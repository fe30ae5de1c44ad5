package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/pkg/errors"
	"tradehub/pkg/utils"
)

type memoryChat struct {
	chat     *entity.Chat
	messages []*entity.Message
	byID     map[string]int
}

type memoryChatRepository struct {
	mu       sync.RWMutex
	chats    map[string]*memoryChat
	inFlight *keyedMutex
}

func NewMemoryChatRepository() repository.ChatRepository {
	return &memoryChatRepository{
		chats:    make(map[string]*memoryChat),
		inFlight: newKeyedMutex(),
	}
}

func (r *memoryChatRepository) FindOrCreate(ctx context.Context, candidate *entity.Chat) (*entity.Chat, bool, error) {
	unlock := r.inFlight.Lock(candidate.ID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.chats[candidate.ID]; ok {
		if !existing.chat.IsActive {
			existing.chat.IsActive = true
			existing.chat.Version++
			existing.chat.UpdatedAt = candidate.CreatedAt
		}
		return existing.chat.Clone(), false, nil
	}

	r.chats[candidate.ID] = &memoryChat{chat: candidate.Clone(), byID: make(map[string]int)}
	return candidate.Clone(), true, nil
}

func (r *memoryChatRepository) load(id string) (*memoryChat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return stored, nil
}

func (r *memoryChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	stored, err := r.load(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return stored.chat.Clone(), nil
}

func (r *memoryChatRepository) Update(ctx context.Context, id string, fn repository.ChatMutation) (*entity.Chat, error) {
	unlock := r.inFlight.Lock(id)
	defer unlock()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := current.Version
	if err := fn(current); err != nil {
		return nil, err
	}
	if current.Version == before {
		current.Version++
	}

	r.mu.Lock()
	r.chats[id].chat = current.Clone()
	r.mu.Unlock()
	return current, nil
}

func (r *memoryChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	r.mu.RLock()
	var chats []*entity.Chat
	for _, stored := range r.chats {
		if stored.chat.IsActive && stored.chat.HasParticipant(userID) {
			chats = append(chats, stored.chat.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessageAt.After(chats[j].LastMessageAt)
	})

	start, end := utils.Window(len(chats), limit, offset)
	return chats[start:end], int64(len(chats)), nil
}

func (r *memoryChatRepository) AppendMessage(ctx context.Context, chatID string, msg *entity.Message, fn repository.AppendFunc) (*entity.Chat, error) {
	unlock := r.inFlight.Lock(chatID)
	defer unlock()

	stored, err := r.load(chatID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	chat := stored.chat.Clone()
	r.mu.RUnlock()

	if err := fn(chat, msg); err != nil {
		return nil, err
	}
	chat.Append(msg)

	r.mu.Lock()
	stored.chat = chat.Clone()
	stored.byID[msg.ID] = len(stored.messages)
	stored.messages = append(stored.messages, msg.Clone())
	r.mu.Unlock()
	return chat, nil
}

func (r *memoryChatRepository) MarkRead(ctx context.Context, chatID, userID string, at time.Time, authorize repository.ChatMutation) (int, error) {
	unlock := r.inFlight.Lock(chatID)
	defer unlock()

	stored, err := r.load(chatID)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chat := stored.chat.Clone()
	if err := authorize(chat); err != nil {
		return 0, err
	}

	// messages are mutated in place on the stored copies
	changed := chat.MarkRead(userID, stored.messages, at)
	stored.chat = chat
	return len(changed), nil
}

func (r *memoryChatRepository) UpdateMessage(ctx context.Context, chatID, messageID string, fn repository.MessageMutation) (*entity.Message, error) {
	unlock := r.inFlight.Lock(chatID)
	defer unlock()

	stored, err := r.load(chatID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	idx, ok := stored.byID[messageID]
	var msg *entity.Message
	if ok {
		msg = stored.messages[idx].Clone()
	}
	chat := stored.chat.Clone()
	r.mu.RUnlock()

	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	if err := fn(chat, msg); err != nil {
		return nil, err
	}

	r.mu.Lock()
	stored.messages[idx] = msg.Clone()
	r.mu.Unlock()
	return msg, nil
}

func (r *memoryChatRepository) GetMessages(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	stored, err := r.load(chatID)
	if err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	start, end := utils.Window(len(stored.messages), limit, offset)
	out := make([]*entity.Message, 0, end-start)
	for _, m := range stored.messages[start:end] {
		out = append(out, m.Clone())
	}
	return out, int64(len(stored.messages)), nil
}
