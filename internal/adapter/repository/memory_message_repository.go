package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
)

// memoryMessageRepository keeps messages in insertion order, which is also
// CreatedAt order because the clock only moves forward.
type memoryMessageRepository struct {
	mu       sync.Mutex
	messages []*entity.Message
	byID     map[string]*entity.Message
	now      func() time.Time
	last     time.Time
}

func NewMemoryMessageRepository() repository.MessageRepository {
	return &memoryMessageRepository{
		byID: make(map[string]*entity.Message),
		now:  time.Now,
	}
}

func copyMessage(m *entity.Message) *entity.Message {
	out := *m
	out.Attachments = append([]string{}, m.Attachments...)
	if m.OfferDetails != nil {
		details := *m.OfferDetails
		out.OfferDetails = &details
	}
	if m.ReadAt != nil {
		at := *m.ReadAt
		out.ReadAt = &at
	}
	return &out
}

func (r *memoryMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if _, exists := r.byID[message.ID]; exists {
		return errors.Conflict("Message already exists")
	}

	now := r.now()
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	message.CreatedAt = now

	stored := copyMessage(message)
	r.messages = append(r.messages, stored)
	r.byID[stored.ID] = stored
	return nil
}

func (r *memoryMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return copyMessage(m), nil
}

func (r *memoryMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			matched = append(matched, m)
		}
	}
	total := int64(len(matched))

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []*entity.Message{}, total, nil
	}
	end := len(matched)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}

	out := make([]*entity.Message, 0, end-offset)
	for _, m := range matched[offset:end] {
		out = append(out, copyMessage(m))
	}
	return out, total, nil
}

func (r *memoryMessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return false, errors.NotFound("Message", nil)
	}
	return m.MarkRead(at), nil
}

func (r *memoryMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped []*entity.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID || m.SenderID == readerID {
			continue
		}
		if m.MarkRead(at) {
			flipped = append(flipped, copyMessage(m))
		}
	}
	return flipped, nil
}

func (r *memoryMessageRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return false, errors.NotFound("Message", nil)
	}
	if m.IsDeleted() {
		return false, nil
	}
	m.SoftDelete()
	return true, nil
}

func (r *memoryMessageRepository) LatestInConversation(ctx context.Context, conversationID, excludeID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.ConversationID == conversationID && m.ID != excludeID {
			return copyMessage(m), nil
		}
	}
	return nil, nil
}

func (r *memoryMessageRepository) Search(ctx context.Context, conversationID, query string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(query)
	out := []*entity.Message{}
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.ConversationID != conversationID || m.IsDeleted() {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}
