package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"kowa/internal/domain/entity"
	"kowa/pkg/errors"
)

// MongoDirectory reads the users and products collections owned by the rest
// of the marketplace. Those documents may use ObjectID keys, so lookups try
// the hex form first and fall back to the raw string.
type MongoDirectory struct {
	users    *mongo.Collection
	products *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{
		users:    db.Collection("users"),
		products: db.Collection("products"),
	}
}

func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

type mongoUserDocument struct {
	Name      string `bson:"name"`
	FirstName string `bson:"firstName"`
	LastName  string `bson:"lastName"`
	Avatar    string `bson:"avatar"`
}

func (d *MongoDirectory) GetProfile(ctx context.Context, id string) (*entity.UserProfile, error) {
	if id == "" {
		return nil, errors.NotFound("User", nil)
	}

	var doc mongoUserDocument
	if err := d.users.FindOne(ctx, idFilter(id)).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	name := doc.Name
	if name == "" {
		name = doc.FirstName
		if doc.LastName != "" {
			name += " " + doc.LastName
		}
	}
	return &entity.UserProfile{ID: id, Name: name, Avatar: doc.Avatar}, nil
}

type mongoProductDocument struct {
	Title  string   `bson:"title"`
	Images []string `bson:"images"`
	Price  float64  `bson:"price"`
	Status string   `bson:"status"`
	Seller string   `bson:"seller"`
}

func (d *MongoDirectory) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	var doc mongoProductDocument
	if err := d.products.FindOne(ctx, idFilter(id)).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("Product", err)
		}
		return nil, errors.Internal("Failed to get product", err)
	}

	return &entity.Listing{
		ID:       id,
		Title:    doc.Title,
		Images:   doc.Images,
		Price:    doc.Price,
		Status:   doc.Status,
		SellerID: doc.Seller,
	}, nil
}
