package repository

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
)

const messagesCollection = "messages"

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(messagesCollection)
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Attachments == nil {
		message.Attachments = []string{}
	}

	message.CreatedAt = time.Now()

	_, err := r.collection().Doc(message.ID).Create(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.collection().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) collect(iter *firestore.DocumentIterator, conversationID string) ([]*entity.Message, error) {
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}
	return messages, nil
}

func (r *firestoreMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.collection().Where("conversationId", "==", conversationID).OrderBy("createdAt", firestore.Asc)

	countDocs, err := query.Select().Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while counting messages for conversation %s: %v", conversationID, err)
		return nil, 0, errors.Internal("Failed to count messages", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	messages, err := r.collect(query.Documents(ctx), conversationID)
	if err != nil {
		return nil, 0, err
	}
	if messages == nil {
		messages = []*entity.Message{}
	}
	return messages, total, nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	ref := r.collection().Doc(id)
	flipped := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		flipped = false
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		read, _ := doc.DataAt("read")
		if done, _ := read.(bool); done {
			return nil
		}
		flipped = true
		return tx.Update(ref, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: at},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, errors.NotFound("Message", err)
		}
		return false, errors.Internal("Failed to mark message as read", err)
	}
	return flipped, nil
}

func (r *firestoreMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]*entity.Message, error) {
	query := r.collection().
		Where("conversationId", "==", conversationID).
		Where("read", "==", false)

	var flipped []*entity.Message
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		flipped = nil
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}

		for _, doc := range docs {
			var message entity.Message
			if err := doc.DataTo(&message); err != nil {
				return err
			}
			if message.SenderID == readerID || !message.MarkRead(at) {
				continue
			}
			if err := tx.Update(doc.Ref, []firestore.Update{
				{Path: "read", Value: true},
				{Path: "readAt", Value: at},
			}); err != nil {
				return err
			}
			flipped = append(flipped, &message)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Internal("Failed to mark conversation messages as read", err)
	}
	return flipped, nil
}

func (r *firestoreMessageRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	ref := r.collection().Doc(id)
	deleted := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = false
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return err
		}
		if message.IsDeleted() {
			return nil
		}
		message.SoftDelete()
		deleted = true
		return tx.Update(ref, []firestore.Update{
			{Path: "content", Value: message.Content},
			{Path: "type", Value: string(message.Type)},
			{Path: "attachments", Value: message.Attachments},
			{Path: "offerDetails", Value: firestore.Delete},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, errors.NotFound("Message", err)
		}
		return false, errors.Internal("Failed to delete message", err)
	}
	return deleted, nil
}

func (r *firestoreMessageRepository) LatestInConversation(ctx context.Context, conversationID, excludeID string) (*entity.Message, error) {
	query := r.collection().
		Where("conversationId", "==", conversationID).
		OrderBy("createdAt", firestore.Desc).
		Limit(2)

	messages, err := r.collect(query.Documents(ctx), conversationID)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		if m.ID != excludeID {
			return m, nil
		}
	}
	return nil, nil
}

// Search filters in memory; Firestore has no substring operator.
func (r *firestoreMessageRepository) Search(ctx context.Context, conversationID, query string) ([]*entity.Message, error) {
	q := r.collection().
		Where("conversationId", "==", conversationID).
		OrderBy("createdAt", firestore.Desc)

	messages, err := r.collect(q.Documents(ctx), conversationID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	results := []*entity.Message{}
	for _, m := range messages {
		if m.IsDeleted() {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), needle) {
			results = append(results, m)
		}
	}
	return results, nil
}
