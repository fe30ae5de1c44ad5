package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/usecase"
	"tradehub/pkg/errors"
	"tradehub/pkg/response"
)

const maxListingImages = 8

type ListingHandler struct {
	listingUseCase *usecase.ListingUseCase
}

func NewListingHandler(listingUseCase *usecase.ListingUseCase) *ListingHandler {
	return &ListingHandler{
		listingUseCase: listingUseCase,
	}
}

type createListingRequest struct {
	Title       string  `json:"title" form:"title" validate:"required,max=120"`
	Description string  `json:"description" form:"description" validate:"max=5000"`
	Price       float64 `json:"price" form:"price" validate:"gte=0"`
	Category    string  `json:"category" form:"category" validate:"max=60"`
}

// CreateListing accepts JSON, or a multipart form whose "images" parts are
// stored alongside the listing.
func (h *ListingHandler) CreateListing(c echo.Context) error {
	var req createListingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	var uploads []usecase.ImageUpload
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return response.Error(c, errors.ValidationFailed("invalid multipart form", err))
		}
		files := form.File["images"]
		if len(files) > maxListingImages {
			return response.Error(c, errors.ValidationFailed("too many images", nil))
		}
		for _, file := range files {
			data, contentType, err := readUpload(file)
			if err != nil {
				return response.Error(c, err)
			}
			uploads = append(uploads, usecase.ImageUpload{Data: data, ContentType: contentType})
		}
	}

	listing, err := h.listingUseCase.CreateListing(c.Request().Context(), middleware.CallerFrom(c), usecase.CreateListingInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Images:      uploads,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, listing)
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	listing, err := h.listingUseCase.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, listing)
}
