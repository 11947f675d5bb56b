package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
)

type memoryConversationRepository struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	byPairKey     map[string]string
	now           func() time.Time
	last          time.Time
}

func NewMemoryConversationRepository() repository.ConversationRepository {
	return &memoryConversationRepository{
		conversations: make(map[string]*entity.Conversation),
		byPairKey:     make(map[string]string),
		now:           time.Now,
	}
}

// tick returns a strictly increasing clock reading so recency ordering is
// stable. Callers hold the lock.
func (r *memoryConversationRepository) tick() time.Time {
	now := r.now()
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	return now
}

func copyConversation(c *entity.Conversation) *entity.Conversation {
	out := *c
	if c.Item != nil {
		item := *c.Item
		out.Item = &item
	}
	if c.LastMessage != nil {
		last := *c.LastMessage
		out.LastMessage = &last
	}
	return &out
}

func (r *memoryConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byPairKey[conversation.PairKey]; taken {
		return errors.Conflict("Conversation already exists")
	}

	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	now := r.tick()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	r.conversations[conversation.ID] = copyConversation(conversation)
	r.byPairKey[conversation.PairKey] = conversation.ID
	return nil
}

func (r *memoryConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return copyConversation(c), nil
}

func (r *memoryConversationRepository) FindByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPairKey[pairKey]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return copyConversation(r.conversations[id]), nil
}

func (r *memoryConversationRepository) ListByParticipant(ctx context.Context, userID string, status entity.ConversationStatus) ([]*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Conversation
	for _, c := range r.conversations {
		if c.Status != status {
			continue
		}
		if _, ok := c.RoleOf(userID); !ok {
			continue
		}
		out = append(out, copyConversation(c))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// mutate runs fn on the stored document under the lock.
func (r *memoryConversationRepository) mutate(id string, fn func(c *entity.Conversation) bool) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	if fn(c) {
		c.UpdatedAt = r.tick()
	}
	return copyConversation(c), nil
}

func (r *memoryConversationRepository) ApplyMessage(ctx context.Context, id string, summary entity.LastMessage, recipient entity.Role) (*entity.Conversation, error) {
	return r.mutate(id, func(c *entity.Conversation) bool {
		c.ApplySummary(summary, recipient)
		return true
	})
}

func (r *memoryConversationRepository) ReplaceLastMessage(ctx context.Context, id, expectedMessageID string, summary entity.LastMessage) (bool, error) {
	replaced := false
	_, err := r.mutate(id, func(c *entity.Conversation) bool {
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

func (r *memoryConversationRepository) MarkLastMessageRead(ctx context.Context, id, messageID string) error {
	_, err := r.mutate(id, func(c *entity.Conversation) bool {
		if c.LastMessage != nil && c.LastMessage.ID == messageID {
			c.LastMessage.Read = true
		}
		return false
	})
	return err
}

func (r *memoryConversationRepository) ResetUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error) {
	return r.mutate(id, func(c *entity.Conversation) bool {
		c.UnreadCount.Reset(role)
		return false
	})
}

func (r *memoryConversationRepository) DecrementUnread(ctx context.Context, id string, role entity.Role) (*entity.Conversation, error) {
	return r.mutate(id, func(c *entity.Conversation) bool {
		c.UnreadCount.Decrement(role)
		return false
	})
}

func (r *memoryConversationRepository) SetStatus(ctx context.Context, id string, status entity.ConversationStatus) error {
	_, err := r.mutate(id, func(c *entity.Conversation) bool {
		c.Status = status
		return true
	})
	return err
}
