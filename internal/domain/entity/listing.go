package entity

import (
	"time"
)

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusReserved ListingStatus = "reserved"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusInactive ListingStatus = "inactive"
)

type ListingImage struct {
	URL      string `json:"url" firestore:"url"`
	PublicID string `json:"public_id" firestore:"publicId"`
}

type Listing struct {
	ID          string         `json:"id" firestore:"id"`
	SellerID    string         `json:"seller_id" firestore:"sellerId"`
	Title       string         `json:"title" firestore:"title"`
	Description string         `json:"description" firestore:"description"`
	Price       float64        `json:"price" firestore:"price"`
	Category    string         `json:"category" firestore:"category"`
	Images      []ListingImage `json:"images" firestore:"images"`
	Status      ListingStatus  `json:"status" firestore:"status"`
	CreatedAt   time.Time      `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time      `json:"updated_at" firestore:"updatedAt"`
}

func (l *Listing) Snapshot() ListingSnapshot {
	images := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		images = append(images, img.URL)
	}
	return ListingSnapshot{
		Title:       l.Title,
		Description: l.Description,
		Images:      images,
		Category:    l.Category,
	}
}
