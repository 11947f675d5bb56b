package repository

import (
	"context"

	"kowa/internal/domain/entity"
)

// ListingProvider reads marketplace products. A missing product is a
// NOT_FOUND AppError; anything else is treated as the provider failing.
type ListingProvider interface {
	GetListing(ctx context.Context, id string) (*entity.Listing, error)
}
