package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"tradehub/internal/domain/service"
	"tradehub/pkg/logger"
)

const MaxImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName string, opts ...option.ClientOption) (*CloudStorageClient, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	storageClient := &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}

	if err := storageClient.setBucketCORS(ctx); err != nil {
		logger.Warn("Failed to set CORS configuration: %v", err)
	}

	return storageClient, nil
}

func (c *CloudStorageClient) setBucketCORS(ctx context.Context) error {
	bucket := c.client.Bucket(c.bucketName)

	corsConfig := storage.CORS{
		MaxAge:          3600,
		Methods:         []string{"GET", "OPTIONS"},
		Origins:         []string{"*"},
		ResponseHeaders: []string{"Content-Type"},
	}

	bucketAttrs, err := bucket.Attrs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket attributes: %v", err)
	}

	if len(bucketAttrs.CORS) == 0 {
		_, err := bucket.Update(ctx, storage.BucketAttrsToUpdate{
			CORS: []storage.CORS{corsConfig},
		})
		if err != nil {
			return fmt.Errorf("failed to update bucket CORS: %v", err)
		}
	}

	return nil
}

// ObjectName builds the object path for a new image. It fails for content
// types that are not images.
func ObjectName(folder, contentType string, at time.Time) (string, error) {
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}
	if folder == "" {
		folder = "images"
	}
	return fmt.Sprintf("public/%s/%s-%s%s", folder, uuid.New().String(), at.UTC().Format("20060102150405"), ext), nil
}

func ValidateImage(data []byte, contentType string) error {
	if len(data) == 0 {
		return fmt.Errorf("image is empty")
	}
	if len(data) > MaxImageSize {
		return fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}
	if _, ok := imageExtensions[contentType]; !ok {
		return fmt.Errorf("unsupported image type %q", contentType)
	}
	return nil
}

func (c *CloudStorageClient) UploadImage(ctx context.Context, data []byte, contentType, folder string) (*service.StoredImage, error) {
	if err := ValidateImage(data, contentType); err != nil {
		return nil, err
	}
	objectName, err := ObjectName(folder, contentType, time.Now())
	if err != nil {
		return nil, err
	}

	obj := c.client.Bucket(c.bucketName).Object(objectName)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		wc.Close()
		return nil, fmt.Errorf("failed to copy image to GCS: %v", err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %v", err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return nil, fmt.Errorf("failed to set ACL: %v", err)
	}

	return &service.StoredImage{
		URL:      fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, objectName),
		PublicID: objectName,
	}, nil
}

func (c *CloudStorageClient) DeleteImage(ctx context.Context, publicID string) error {
	if err := c.client.Bucket(c.bucketName).Object(publicID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete image: %v", err)
	}
	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
