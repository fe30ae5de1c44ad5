package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/domain/entity"
	"tradehub/internal/infrastructure/storage"
	"tradehub/internal/usecase"
	"tradehub/pkg/errors"
	"tradehub/pkg/response"
	"tradehub/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createChatRequest struct {
	ListingID string `json:"listing_id" validate:"required"`
	SellerID  string `json:"seller_id" validate:"required"`
}

type sendMessageRequest struct {
	Content string   `json:"content" validate:"required,max=2000"`
	Type    string   `json:"type,omitempty" validate:"omitempty,oneof=text offer"`
	Amount  *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

type offerResponseRequest struct {
	Response string `json:"response" validate:"required,oneof=accepted rejected"`
}

// CreateChat finds or opens the caller's chat with a listing's seller.
// It answers 201 only when a new chat was stored.
func (h *ChatHandler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	chat, created, err := h.chatUseCase.FindOrCreateChat(c.Request().Context(), middleware.CallerFrom(c), usecase.FindOrCreateChatInput{
		ListingID: req.ListingID,
		SellerID:  req.SellerID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	if created {
		return response.Created(c, chat)
	}
	return response.Success(c, chat)
}

func (h *ChatHandler) GetUserChats(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	chats, total, err := h.chatUseCase.ListChats(c.Request().Context(), middleware.CallerFrom(c), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, chats, total, pagination.Page, pagination.PageSize)
}

func (h *ChatHandler) GetUnreadTotal(c echo.Context) error {
	total, err := h.chatUseCase.UnreadTotal(c.Request().Context(), middleware.CallerFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"total": total})
}

func (h *ChatHandler) GetChatByID(c echo.Context) error {
	chat, err := h.chatUseCase.GetChat(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, chat)
}

func (h *ChatHandler) DeleteChat(c echo.Context) error {
	if err := h.chatUseCase.DeleteChat(c.Request().Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Chat deleted"})
}

func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.GetMessages(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, pagination.Page, pagination.PageSize)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.chatUseCase.SendMessage(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), usecase.SendMessageInput{
		Content: req.Content,
		Type:    entity.MessageType(req.Type),
		Amount:  req.Amount,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

// SendImage accepts a multipart "image" file and an optional "caption".
func (h *ChatHandler) SendImage(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return response.Error(c, errors.ValidationFailed("image file is required", err))
	}
	data, contentType, err := readUpload(file)
	if err != nil {
		return response.Error(c, err)
	}

	msg, err := h.chatUseCase.SendImage(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), usecase.SendImageInput{
		Data:        data,
		ContentType: contentType,
		Caption:     c.FormValue("caption"),
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

func (h *ChatHandler) MarkChatAsRead(c echo.Context) error {
	changed, err := h.chatUseCase.MarkAsRead(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"marked": changed})
}

func (h *ChatHandler) RespondToOffer(c echo.Context) error {
	var req offerResponseRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.chatUseCase.RespondToOffer(
		c.Request().Context(),
		middleware.CallerFrom(c),
		c.Param("id"),
		c.Param("messageId"),
		entity.OfferStatus(req.Response),
	)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, msg)
}

func (h *ChatHandler) ToggleBlock(c echo.Context) error {
	blocked, err := h.chatUseCase.ToggleBlock(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]bool{"blocked": blocked})
}

// readUpload reads an uploaded part, sniffing the content type when the
// client did not send one.
func readUpload(file *multipart.FileHeader) ([]byte, string, error) {
	if file.Size > storage.MaxImageSize {
		return nil, "", errors.ValidationFailed("image exceeds the 5MB limit", nil)
	}
	f, err := file.Open()
	if err != nil {
		return nil, "", errors.ValidationFailed("image could not be read", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageSize+1))
	if err != nil {
		return nil, "", errors.ValidationFailed("image could not be read", err)
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
