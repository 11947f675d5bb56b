package repository

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
)

type mongoMessageRepository struct {
	coll *mongo.Collection
}

func NewMongoMessageRepository(ctx context.Context, db *mongo.Database) (repository.MessageRepository, error) {
	r := &mongoMessageRepository{coll: db.Collection("messages")}

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "read", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *mongoMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Attachments == nil {
		message.Attachments = []string{}
	}
	// Mongo stores milliseconds; truncate so the value handed back matches.
	message.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.coll.InsertOne(ctx, message); err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *mongoMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	var m entity.Message
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return &m, nil
}

func (r *mongoMessageRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entity.Message, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Internal("Failed to query messages", err)
	}
	defer cur.Close(ctx)

	out := []*entity.Message{}
	for cur.Next(ctx) {
		var m entity.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Internal("Failed to query messages", err)
	}
	return out, nil
}

func (r *mongoMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	filter := bson.M{"conversation_id": conversationID}
	if offset < 0 {
		offset = 0
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	messages, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *mongoMessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return false, errors.Internal("Failed to mark message as read", err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// MarkConversationRead flips messages one by one with a conditional update so
// each flip is attributed to exactly one caller.
func (r *mongoMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]*entity.Message, error) {
	candidates, err := r.find(ctx, bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": readerID},
		"read":            false,
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var flipped []*entity.Message
	for _, m := range candidates {
		ok, err := r.MarkRead(ctx, m.ID, at)
		if err != nil {
			return flipped, err
		}
		if ok {
			m.MarkRead(at)
			flipped = append(flipped, m)
		}
	}
	return flipped, nil
}

func (r *mongoMessageRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "type": bson.M{"$ne": entity.MessageTypeDeleted}},
		bson.M{
			"$set": bson.M{
				"content":     entity.DeletedPlaceholder,
				"type":        entity.MessageTypeDeleted,
				"attachments": []string{},
			},
			"$unset": bson.M{"offer_details": ""},
		},
	)
	if err != nil {
		return false, errors.Internal("Failed to delete message", err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *mongoMessageRepository) LatestInConversation(ctx context.Context, conversationID, excludeID string) (*entity.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var m entity.Message
	err := r.coll.FindOne(ctx, bson.M{
		"conversation_id": conversationID,
		"_id":             bson.M{"$ne": excludeID},
	}, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal("Failed to get latest message", err)
	}
	return &m, nil
}

func (r *mongoMessageRepository) Search(ctx context.Context, conversationID, query string) ([]*entity.Message, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"type":            bson.M{"$ne": entity.MessageTypeDeleted},
		"content":         primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, filter, opts)
}
