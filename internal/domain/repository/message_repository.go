package repository

import (
	"context"
	"time"

	"kowa/internal/domain/entity"
)

type MessageRepository interface {
	// Create assigns ID and CreatedAt.
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// ListByConversation is ordered by CreatedAt ascending and includes
	// soft-deleted messages.
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)

	// MarkRead reports whether this call flipped the message to read.
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkConversationRead flips every unread message not sent by readerID
	// and returns the ones it flipped.
	MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]*entity.Message, error)

	// SoftDelete reports false when the message was already deleted.
	SoftDelete(ctx context.Context, id string) (bool, error)
	// LatestInConversation returns nil without error when nothing is left.
	LatestInConversation(ctx context.Context, conversationID, excludeID string) (*entity.Message, error)
	// Search is a case-insensitive substring match, newest first, deleted
	// messages excluded.
	Search(ctx context.Context, conversationID, query string) ([]*entity.Message, error)
}
