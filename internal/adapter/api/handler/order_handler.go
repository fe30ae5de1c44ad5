package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/domain/entity"
	"tradehub/internal/usecase"
	"tradehub/pkg/response"
	"tradehub/pkg/utils"
)

type OrderHandler struct {
	orderUseCase *usecase.OrderUseCase
}

func NewOrderHandler(orderUseCase *usecase.OrderUseCase) *OrderHandler {
	return &OrderHandler{
		orderUseCase: orderUseCase,
	}
}

type meetupRequest struct {
	Location    string     `json:"location" validate:"required,max=200"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Notes       string     `json:"notes,omitempty" validate:"max=500"`
}

func (r *meetupRequest) details() *entity.MeetupDetails {
	if r == nil {
		return nil
	}
	return &entity.MeetupDetails{Location: r.Location, ScheduledAt: r.ScheduledAt, Notes: r.Notes}
}

type createOrderRequest struct {
	ListingID       string         `json:"listing_id" validate:"required"`
	FinalPrice      float64        `json:"final_price" validate:"gte=0"`
	NegotiatedPrice *float64       `json:"negotiated_price,omitempty" validate:"omitempty,gte=0"`
	Meetup          *meetupRequest `json:"meetup,omitempty"`
	Notes           string         `json:"notes,omitempty" validate:"max=1000"`
}

type updateStatusRequest struct {
	Status string         `json:"status" validate:"required,oneof=pending confirmed meetup-scheduled in-progress completed cancelled disputed"`
	Note   string         `json:"note,omitempty" validate:"max=500"`
	Meetup *meetupRequest `json:"meetup,omitempty"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ratingRequest struct {
	Score  int    `json:"score" validate:"required,min=1,max=5"`
	Review string `json:"review,omitempty" validate:"max=1000"`
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.CreateOrder(c.Request().Context(), middleware.CallerFrom(c), usecase.CreateOrderInput{
		ListingID:       req.ListingID,
		FinalPrice:      req.FinalPrice,
		NegotiatedPrice: req.NegotiatedPrice,
		Meetup:          req.Meetup.details(),
		Notes:           req.Notes,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.orderUseCase.GetOrder(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

// ListOrders lists the caller's orders. ?role=buyer|seller narrows the side,
// ?status filters by status.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	orders, total, err := h.orderUseCase.ListOrders(c.Request().Context(), middleware.CallerFrom(c), usecase.ListOrdersInput{
		Role:   c.QueryParam("role"),
		Status: entity.OrderStatus(c.QueryParam("status")),
		Limit:  pagination.PageSize,
		Offset: pagination.Offset,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, orders, total, pagination.Page, pagination.PageSize)
}

func (h *OrderHandler) ListAdminOrders(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	orders, total, err := h.orderUseCase.ListOrdersByStatus(
		c.Request().Context(),
		middleware.CallerFrom(c),
		entity.OrderStatus(c.QueryParam("status")),
		pagination.PageSize,
		pagination.Offset,
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, orders, total, pagination.Page, pagination.PageSize)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.UpdateStatus(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), usecase.UpdateStatusInput{
		Status: entity.OrderStatus(req.Status),
		Note:   req.Note,
		Meetup: req.Meetup.details(),
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, order)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.CancelOrder(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

func (h *OrderHandler) RaiseDispute(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.RaiseDispute(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

func (h *OrderHandler) AddRating(c echo.Context) error {
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.AddRating(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), req.Score, req.Review)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}

func (h *OrderHandler) UpdateMeetup(c echo.Context) error {
	var req meetupRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	order, err := h.orderUseCase.UpdateMeetup(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), *req.details())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, order)
}
