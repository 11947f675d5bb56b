package usecase

import (
	"context"
	"io"
	"time"

	"kowa/internal/domain/entity"
)

// Notifier fans events out to live sessions. Delivery is best effort.
type Notifier interface {
	EmitToConversation(conversationID, event string, data interface{})
	EmitToUser(userID, event string, data interface{})
	IsOnline(userID string) bool
}

// IdentityProvider turns a bearer credential into a user.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (*entity.UserProfile, error)
}

// MediaStore holds uploaded binaries and hands back public URLs.
type MediaStore interface {
	Upload(ctx context.Context, file io.Reader, contentType, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}

// EventPublisher forwards committed ledger changes to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event entity.DomainEvent) error
}

// PresenceStore remembers when users were last connected.
type PresenceStore interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string, at time.Time) error
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}

type RateLimiter interface {
	Allow(userID, action string) (bool, time.Duration)
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, event entity.DomainEvent) error { return nil }

type noopNotifier struct{}

func (noopNotifier) EmitToConversation(conversationID, event string, data interface{}) {}
func (noopNotifier) EmitToUser(userID, event string, data interface{})                 {}
func (noopNotifier) IsOnline(userID string) bool                                       { return false }
