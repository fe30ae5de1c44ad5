package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/policy"
	"tradehub/internal/domain/repository"
	"tradehub/internal/domain/service"
	"tradehub/pkg/errors"
	"tradehub/pkg/logger"
)

const defaultImageCaption = "Image"

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	listingRepo repository.ListingRepository
	images      service.ImageStore
	notifier    service.Notifier
	now         func() time.Time
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	listingRepo repository.ListingRepository,
	images service.ImageStore,
	notifier service.Notifier,
) *ChatUseCase {
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	return &ChatUseCase{
		chatRepo:    chatRepo,
		listingRepo: listingRepo,
		images:      images,
		notifier:    notifier,
		now:         time.Now,
	}
}

type FindOrCreateChatInput struct {
	ListingID string
	SellerID  string
}

type SendMessageInput struct {
	Content string
	Type    entity.MessageType
	Amount  *float64
	Image   *entity.ImagePayload
}

type SendImageInput struct {
	Data        []byte
	ContentType string
	Caption     string
}

// FindOrCreateChat returns the caller's conversation with the seller about
// a listing, creating it on first contact.
func (uc *ChatUseCase) FindOrCreateChat(ctx context.Context, caller entity.Caller, input FindOrCreateChatInput) (*entity.Chat, bool, error) {
	if caller.UserID == input.SellerID {
		return nil, false, errors.ValidationFailed("cannot chat with yourself", nil)
	}

	listing, err := uc.listingRepo.GetByID(ctx, input.ListingID)
	if err != nil {
		logger.Error("FindOrCreateChat Error: listing %s lookup failed: %v", input.ListingID, err)
		return nil, false, err
	}
	if listing.SellerID != input.SellerID {
		return nil, false, errors.ValidationFailed("seller does not own this listing", nil)
	}

	candidate, err := entity.NewChat([]string{caller.UserID, input.SellerID}, listing.ID, listing.SellerID, uc.now())
	if err != nil {
		return nil, false, err
	}

	chat, created, err := uc.chatRepo.FindOrCreate(ctx, candidate)
	if err != nil {
		logger.Error("FindOrCreateChat Error: %v", err)
		return nil, false, err
	}
	return chat, created, nil
}

func (uc *ChatUseCase) GetChat(ctx context.Context, caller entity.Caller, chatID string) (*entity.Chat, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !policy.CanOnChat(caller, chat, policy.ActionViewChat) {
		return nil, errors.Forbidden("You are not a participant in this chat", nil)
	}
	if !chat.IsActive {
		return nil, errors.NotFound("Chat", nil)
	}
	return chat, nil
}

func (uc *ChatUseCase) ListChats(ctx context.Context, caller entity.Caller, limit, offset int) ([]*entity.Chat, int64, error) {
	return uc.chatRepo.ListByUserID(ctx, caller.UserID, limit, offset)
}

func (uc *ChatUseCase) GetMessages(ctx context.Context, caller entity.Caller, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, err := uc.GetChat(ctx, caller, chatID); err != nil {
		return nil, 0, err
	}
	return uc.chatRepo.GetMessages(ctx, chatID, limit, offset)
}

// UnreadTotal sums the caller's unread counters over active chats.
func (uc *ChatUseCase) UnreadTotal(ctx context.Context, caller entity.Caller) (int, error) {
	chats, _, err := uc.chatRepo.ListByUserID(ctx, caller.UserID, 0, 0)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range chats {
		total += c.UnreadCount.Get(caller.UserID)
	}
	return total, nil
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, caller entity.Caller, chatID string, input SendMessageInput) (*entity.Message, error) {
	if input.Type == "" {
		input.Type = entity.MessageTypeText
	}

	msg := &entity.Message{
		ID:        uuid.New().String(),
		SenderID:  caller.UserID,
		Content:   strings.TrimSpace(input.Content),
		Type:      input.Type,
		Image:     input.Image,
		CreatedAt: uc.now(),
	}
	if input.Type == entity.MessageTypeOffer && input.Amount != nil {
		msg.Offer = &entity.OfferPayload{Amount: *input.Amount, Status: entity.OfferStatusPending}
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	chat, err := uc.chatRepo.AppendMessage(ctx, chatID, msg, func(c *entity.Chat, _ *entity.Message) error {
		return canSend(caller, c)
	})
	if err != nil {
		logger.Error("SendMessage Error: chat %s: %v", chatID, err)
		return nil, err
	}

	recipient := chat.OtherParticipant(caller.UserID)
	uc.notifier.Publish(recipient, entity.EventNewMessage, entity.MessageEvent{
		ChatID:      chat.ID,
		ListingID:   chat.ListingID,
		Message:     msg,
		UnreadCount: chat.UnreadCount.Get(recipient),
	})
	return msg, nil
}

// SendImage stores the image first, then appends an image message. The
// upload happens outside the chat's consistency boundary.
func (uc *ChatUseCase) SendImage(ctx context.Context, caller entity.Caller, chatID string, input SendImageInput) (*entity.Message, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := canSend(caller, chat); err != nil {
		return nil, err
	}

	stored, err := uc.images.UploadImage(ctx, input.Data, input.ContentType, "chats/"+chatID)
	if err != nil {
		logger.Error("SendImage Error: upload for chat %s failed: %v", chatID, err)
		return nil, errors.ValidationFailed("image could not be stored", err)
	}

	caption := strings.TrimSpace(input.Caption)
	if caption == "" {
		caption = defaultImageCaption
	}
	msg, err := uc.SendMessage(ctx, caller, chatID, SendMessageInput{
		Content: caption,
		Type:    entity.MessageTypeImage,
		Image:   &entity.ImagePayload{URL: stored.URL, PublicID: stored.PublicID},
	})
	if err != nil {
		if delErr := uc.images.DeleteImage(ctx, stored.PublicID); delErr != nil {
			logger.Warn("SendImage: orphaned image %s: %v", stored.PublicID, delErr)
		}
		return nil, err
	}
	return msg, nil
}

func canSend(caller entity.Caller, chat *entity.Chat) error {
	if !chat.IsActive {
		return errors.NotFound("Chat", nil)
	}
	if !policy.CanOnChat(caller, chat, policy.ActionSendMessage) {
		return errors.Forbidden("You are not a participant in this chat", nil)
	}
	if chat.IsBlocked() {
		return errors.Forbidden("This conversation is blocked", nil)
	}
	return nil
}

// MarkAsRead flags every message addressed to the caller as read and zeroes
// the caller's unread counter. Repeating it changes nothing.
func (uc *ChatUseCase) MarkAsRead(ctx context.Context, caller entity.Caller, chatID string) (int, error) {
	changed, err := uc.chatRepo.MarkRead(ctx, chatID, caller.UserID, uc.now(), func(c *entity.Chat) error {
		if !policy.CanOnChat(caller, c, policy.ActionMarkRead) {
			return errors.Forbidden("You are not a participant in this chat", nil)
		}
		return nil
	})
	if err != nil {
		logger.Error("MarkAsRead Error: chat %s: %v", chatID, err)
		return 0, err
	}
	return changed, nil
}

// RespondToOffer records the seller's answer to a pending offer. It never
// creates an order.
func (uc *ChatUseCase) RespondToOffer(ctx context.Context, caller entity.Caller, chatID, messageID string, response entity.OfferStatus) (*entity.Message, error) {
	if response != entity.OfferStatusAccepted && response != entity.OfferStatusRejected {
		return nil, errors.ValidationFailed("response must be accepted or rejected", nil)
	}

	var buyerID string
	msg, err := uc.chatRepo.UpdateMessage(ctx, chatID, messageID, func(c *entity.Chat, m *entity.Message) error {
		if !policy.CanOnChat(caller, c, policy.ActionRespondToOffer) {
			return errors.Forbidden("Only the seller can respond to offers", nil)
		}
		if m.Type != entity.MessageTypeOffer || m.Offer == nil {
			return errors.ValidationFailed("message is not an offer", nil)
		}
		if m.Offer.Status != entity.OfferStatusPending {
			return errors.AlreadyResolved("offer has already been " + string(m.Offer.Status))
		}
		now := uc.now()
		m.Offer.Status = response
		m.Offer.RespondedBy = caller.UserID
		m.Offer.RespondedAt = &now
		buyerID = c.BuyerID
		return nil
	})
	if err != nil {
		logger.Error("RespondToOffer Error: chat %s message %s: %v", chatID, messageID, err)
		return nil, err
	}

	uc.notifier.Publish(buyerID, entity.EventOfferResponse, entity.OfferResponseEvent{
		ChatID:      chatID,
		MessageID:   msg.ID,
		Status:      msg.Offer.Status,
		Amount:      msg.Offer.Amount,
		RespondedBy: caller.UserID,
	})
	return msg, nil
}

// ToggleBlock flips the caller's block on the chat and reports whether the
// caller now blocks it. The other participant is not notified.
func (uc *ChatUseCase) ToggleBlock(ctx context.Context, caller entity.Caller, chatID string) (bool, error) {
	var blocked bool
	_, err := uc.chatRepo.Update(ctx, chatID, func(c *entity.Chat) error {
		if !policy.CanOnChat(caller, c, policy.ActionToggleBlock) {
			return errors.Forbidden("You are not a participant in this chat", nil)
		}
		blocked = c.ToggleBlock(caller.UserID, uc.now())
		return nil
	})
	if err != nil {
		logger.Error("ToggleBlock Error: chat %s: %v", chatID, err)
		return false, err
	}
	return blocked, nil
}

// DeleteChat hides the chat. History is kept and find-or-create on the same
// listing brings it back.
func (uc *ChatUseCase) DeleteChat(ctx context.Context, caller entity.Caller, chatID string) error {
	_, err := uc.chatRepo.Update(ctx, chatID, func(c *entity.Chat) error {
		if !policy.CanOnChat(caller, c, policy.ActionDeleteChat) {
			return errors.Forbidden("You are not a participant in this chat", nil)
		}
		if !c.IsActive {
			return errors.NotFound("Chat", nil)
		}
		c.IsActive = false
		c.UpdatedAt = uc.now()
		return nil
	})
	if err != nil {
		logger.Error("DeleteChat Error: chat %s: %v", chatID, err)
	}
	return err
}
