package repository

import (
	"context"

	"kowa/internal/domain/entity"
)

// ConversationRepository persists conversation documents. Every mutation that
// touches the summary or the counters is applied atomically on the stored
// document and returns the state after the write.
type ConversationRepository interface {
	// Create fails with a CONFLICT AppError when the pair key is taken.
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	FindByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error)
	// ListByParticipant is ordered by UpdatedAt, newest first.
	ListByParticipant(ctx context.Context, userID string, status entity.ConversationStatus) ([]*entity.Conversation, error)

	// ApplyMessage charges the recipient's counter and moves the summary
	// forward unless the stored summary is newer.
	ApplyMessage(ctx context.Context, id string, summary entity.LastMessage, recipient entity.Role) (*entity.Conversation, error)
	// ReplaceLastMessage swaps the summary only while it still points at
	// expectedMessageID. It reports whether the swap happened.
	ReplaceLastMessage(ctx context.Context, id, expectedMessageID string, summary entity.LastMessage) (bool, error)
	// MarkLastMessageRead sets the read flag when the summary is messageID.
	MarkLastMessageRead(ctx context.Context, id, messageID string) error
	ResetUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error)
	DecrementUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error)
	SetStatus(ctx context.Context, id string, status entity.ConversationStatus) error
}
