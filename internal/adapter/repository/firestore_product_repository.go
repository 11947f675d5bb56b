package repository

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
)

type productImage struct {
	URL          string `firestore:"url"`
	DisplayOrder int    `firestore:"displayOrder"`
}

// productDocument is the stored product shape; images carry a display order.
type productDocument struct {
	ID       string         `firestore:"id"`
	SellerID string         `firestore:"sellerId"`
	Title    string         `firestore:"title"`
	Price    float64        `firestore:"price"`
	Images   []productImage `firestore:"images"`
	Status   string         `firestore:"status"`
}

type firestoreProductRepository struct {
	client *firestore.Client
}

func NewFirestoreProductRepository(client *firestore.Client) repository.ListingProvider {
	return &firestoreProductRepository{
		client: client,
	}
}

func (r *firestoreProductRepository) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	doc, err := r.client.Collection("products").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Product", err)
		}
		return nil, errors.Internal("Failed to get product", err)
	}

	var product productDocument
	if err := doc.DataTo(&product); err != nil {
		return nil, errors.Internal("Failed to parse product data", err)
	}

	sort.SliceStable(product.Images, func(i, j int) bool {
		return product.Images[i].DisplayOrder < product.Images[j].DisplayOrder
	})
	images := make([]string, 0, len(product.Images))
	for _, img := range product.Images {
		images = append(images, img.URL)
	}

	return &entity.Listing{
		ID:       doc.Ref.ID,
		Title:    product.Title,
		Images:   images,
		Price:    product.Price,
		Status:   product.Status,
		SellerID: product.SellerID,
	}, nil
}
