package service

import (
	"context"
)

type StoredImage struct {
	URL      string
	PublicID string
}

// ImageStore persists binary image content outside the aggregates.
type ImageStore interface {
	UploadImage(ctx context.Context, data []byte, contentType, folder string) (*StoredImage, error)
	DeleteImage(ctx context.Context, publicID string) error
}
