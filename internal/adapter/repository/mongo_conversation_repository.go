package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
)

type mongoConversationRepository struct {
	coll *mongo.Collection
}

func NewMongoConversationRepository(ctx context.Context, db *mongo.Database) (repository.ConversationRepository, error) {
	r := &mongoConversationRepository{coll: db.Collection("conversations")}

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "participants.buyer", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "participants.seller", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *mongoConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, conversation); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Conflict("Conversation already exists")
		}
		return errors.Internal("Failed to create conversation", err)
	}
	return nil
}

func (r *mongoConversationRepository) findOne(ctx context.Context, filter bson.M) (*entity.Conversation, error) {
	var conversation entity.Conversation
	if err := r.coll.FindOne(ctx, filter).Decode(&conversation); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}
	return &conversation, nil
}

func (r *mongoConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoConversationRepository) FindByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error) {
	return r.findOne(ctx, bson.M{"pair_key": pairKey})
}

func (r *mongoConversationRepository) ListByParticipant(ctx context.Context, userID string, status entity.ConversationStatus) ([]*entity.Conversation, error) {
	filter := bson.M{
		"status": status,
		"$or": []bson.M{
			{"participants.buyer": userID},
			{"participants.seller": userID},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Internal("Failed to list conversations", err)
	}
	defer cur.Close(ctx)

	out := []*entity.Conversation{}
	for cur.Next(ctx) {
		var c entity.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, errors.Internal("Failed to parse conversation data", err)
		}
		out = append(out, &c)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Internal("Failed to list conversations", err)
	}
	return out, nil
}

func unreadField(role entity.Role) string {
	return "unread_count." + string(role)
}

func (r *mongoConversationRepository) findOneAndUpdate(ctx context.Context, filter bson.M, update interface{}) (*entity.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var c entity.Conversation
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to update conversation", err)
	}
	return &c, nil
}

// ApplyMessage uses an update pipeline so the timestamp comparison and the
// counter increment happen in one server-side write.
func (r *mongoConversationRepository) ApplyMessage(ctx context.Context, id string, summary entity.LastMessage, recipient entity.Role) (*entity.Conversation, error) {
	counter := unreadField(recipient)
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "last_message", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$lte", Value: bson.A{
					bson.D{{Key: "$ifNull", Value: bson.A{"$last_message.timestamp", time.Unix(0, 0).UTC()}}},
					summary.Timestamp,
				}}},
				bson.D{{Key: "$literal", Value: summary}},
				"$last_message",
			}}}},
			{Key: counter, Value: bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$" + counter, 0}}}, 1,
			}}}},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, pipeline)
}

func (r *mongoConversationRepository) ReplaceLastMessage(ctx context.Context, id, expectedMessageID string, summary entity.LastMessage) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "last_message.id": expectedMessageID},
		bson.M{"$set": bson.M{"last_message": summary, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, errors.Internal("Failed to update last message", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *mongoConversationRepository) MarkLastMessageRead(ctx context.Context, id, messageID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "last_message.id": messageID},
		bson.M{"$set": bson.M{"last_message.read": true}},
	)
	if err != nil {
		return errors.Internal("Failed to update last message", err)
	}
	return nil
}

func (r *mongoConversationRepository) ResetUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{unreadField(role): 0}})
}

// DecrementUnread only matches while the counter is positive; a miss means the
// counter was already zero, so the current document is returned as is.
func (r *mongoConversationRepository) DecrementUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error) {
	field := unreadField(role)
	c, err := r.findOneAndUpdate(ctx,
		bson.M{"_id": id, field: bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{field: -1}},
	)
	if errors.Is(err, errors.CodeNotFound) {
		return r.GetByID(ctx, id)
	}
	return c, err
}

func (r *mongoConversationRepository) SetStatus(ctx context.Context, id string, status entity.ConversationStatus) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errors.Internal("Failed to update conversation status", err)
	}
	if res.MatchedCount == 0 {
		return errors.NotFound("Conversation", nil)
	}
	return nil
}
