package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/internal/domain/service"
	"tradehub/pkg/errors"
	"tradehub/pkg/logger"
)

type ListingUseCase struct {
	listingRepo repository.ListingRepository
	userRepo    repository.UserRepository
	images      service.ImageStore
	now         func() time.Time
}

func NewListingUseCase(listingRepo repository.ListingRepository, userRepo repository.UserRepository, images service.ImageStore) *ListingUseCase {
	return &ListingUseCase{
		listingRepo: listingRepo,
		userRepo:    userRepo,
		images:      images,
		now:         time.Now,
	}
}

type ImageUpload struct {
	Data        []byte
	ContentType string
}

type CreateListingInput struct {
	Title       string
	Description string
	Price       float64
	Category    string
	Images      []ImageUpload
}

func (uc *ListingUseCase) CreateListing(ctx context.Context, caller entity.Caller, input CreateListingInput) (*entity.Listing, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.ValidationFailed("title is required", nil)
	}
	if input.Price < 0 {
		return nil, errors.ValidationFailed("price must not be negative", nil)
	}

	now := uc.now()
	listing := &entity.Listing{
		ID:          uuid.New().String(),
		SellerID:    caller.UserID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Price:       input.Price,
		Category:    input.Category,
		Images:      []entity.ListingImage{},
		Status:      entity.ListingStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, img := range input.Images {
		stored, err := uc.images.UploadImage(ctx, img.Data, img.ContentType, "listings/"+listing.ID)
		if err != nil {
			uc.discardImages(ctx, listing.Images)
			logger.Error("CreateListing Error: image upload failed: %v", err)
			return nil, errors.ValidationFailed("image could not be stored", err)
		}
		listing.Images = append(listing.Images, entity.ListingImage{URL: stored.URL, PublicID: stored.PublicID})
	}

	if err := uc.listingRepo.Create(ctx, listing); err != nil {
		uc.discardImages(ctx, listing.Images)
		logger.Error("CreateListing Error: %v", err)
		return nil, err
	}
	return listing, nil
}

func (uc *ListingUseCase) discardImages(ctx context.Context, images []entity.ListingImage) {
	for _, img := range images {
		if err := uc.images.DeleteImage(ctx, img.PublicID); err != nil {
			logger.Warn("CreateListing: orphaned image %s: %v", img.PublicID, err)
		}
	}
}

func (uc *ListingUseCase) GetListing(ctx context.Context, listingID string) (*entity.Listing, error) {
	return uc.listingRepo.GetByID(ctx, listingID)
}

// GetUserProfile returns the public profile, including the cached rating.
// Users who were never rated get an empty profile.
func (uc *ListingUseCase) GetUserProfile(ctx context.Context, userID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if errors.Is(err, errors.CodeNotFound) {
		return &entity.User{ID: userID}, nil
	}
	return user, err
}
