package handler

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/usecase"
	"tradehub/pkg/response"
)

type UserHandler struct {
	listingUseCase *usecase.ListingUseCase
}

func NewUserHandler(listingUseCase *usecase.ListingUseCase) *UserHandler {
	return &UserHandler{
		listingUseCase: listingUseCase,
	}
}

// GetPublicProfile returns a user's profile with the cached rating.
func (h *UserHandler) GetPublicProfile(c echo.Context) error {
	user, err := h.listingUseCase.GetUserProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}
