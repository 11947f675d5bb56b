package repository

import (
	"context"
	"sort"
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

const conversationsCollection = "conversations"

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(conversationsCollection)
}

// Create checks the pair key inside the same transaction as the insert, since
// Firestore has no unique indexes.
func (r *firestoreConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}

	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(r.collection().Where("pairKey", "==", conversation.PairKey).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return errors.Conflict("Conversation already exists")
		}
		return tx.Create(r.collection().Doc(conversation.ID), conversation)
	})
	if err != nil {
		if errors.Is(err, errors.CodeConflict) {
			return err
		}
		return errors.Internal("Failed to create conversation", err)
	}
	return nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.collection().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	return &conversation, nil
}

func (r *firestoreConversationRepository) FindByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error) {
	iter := r.collection().Where("pairKey", "==", pairKey).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, errors.NotFound("Conversation", nil)
	}
	if err != nil {
		return nil, errors.Internal("Failed to look up conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	return &conversation, nil
}

// ListByParticipant runs one query per role and merges them.
func (r *firestoreConversationRepository) ListByParticipant(ctx context.Context, userID string, st entity.ConversationStatus) ([]*entity.Conversation, error) {
	seen := make(map[string]bool)
	var conversations []*entity.Conversation

	for _, field := range []string{"participants.buyer", "participants.seller"} {
		iter := r.collection().
			Where(field, "==", userID).
			Where("status", "==", string(st)).
			Documents(ctx)

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				logger.Error("Firestore error while listing conversations for user %s: %v", userID, err)
				return nil, errors.Internal("Failed to list conversations", err)
			}

			var conversation entity.Conversation
			if err := doc.DataTo(&conversation); err != nil {
				iter.Stop()
				return nil, errors.Internal("Failed to parse conversation data", err)
			}
			if seen[conversation.ID] {
				continue
			}
			seen[conversation.ID] = true
			conversations = append(conversations, &conversation)
		}
		iter.Stop()
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// mutate reads, changes and writes the document in one transaction so
// concurrent counter updates never overwrite each other.
func (r *firestoreConversationRepository) mutate(ctx context.Context, id string, fn func(c *entity.Conversation) bool) (*entity.Conversation, error) {
	ref := r.collection().Doc(id)
	var result entity.Conversation

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			return err
		}
		if fn(&conversation) {
			conversation.UpdatedAt = time.Now()
		}
		result = conversation
		return tx.Set(ref, &conversation)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to update conversation", err)
	}
	return &result, nil
}

func (r *firestoreConversationRepository) ApplyMessage(ctx context.Context, id string, summary entity.LastMessage, recipient entity.Role) (*entity.Conversation, error) {
	return r.mutate(ctx, id, func(c *entity.Conversation) bool {
		c.ApplySummary(summary, recipient)
		return true
	})
}

func (r *firestoreConversationRepository) ReplaceLastMessage(ctx context.Context, id, expectedMessageID string, summary entity.LastMessage) (bool, error) {
	replaced := false
	_, err := r.mutate(ctx, id, func(c *entity.Conversation) bool {
		replaced = false
		if c.LastMessage == nil || c.LastMessage.ID != expectedMessageID {
			return false
		}
		s := summary
		c.LastMessage = &s
		replaced = true
		return true
	})
	return replaced, err
}

func (r *firestoreConversationRepository) MarkLastMessageRead(ctx context.Context, id, messageID string) error {
	_, err := r.mutate(ctx, id, func(c *entity.Conversation) bool {
		if c.LastMessage != nil && c.LastMessage.ID == messageID {
			c.LastMessage.Read = true
		}
		return false
	})
	return err
}

func (r *firestoreConversationRepository) ResetUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error) {
	return r.mutate(ctx, id, func(c *entity.Conversation) bool {
		c.UnreadCount.Reset(role)
		return false
	})
}

func (r *firestoreConversationRepository) DecrementUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error) {
	return r.mutate(ctx, id, func(c *entity.Conversation) bool {
		c.UnreadCount.Decrement(role)
		return false
	})
}

func (r *firestoreConversationRepository) SetStatus(ctx context.Context, id string, st entity.ConversationStatus) error {
	_, err := r.collection().Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to update conversation status", err)
	}
	return nil
}
