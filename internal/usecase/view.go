package usecase

import (
	"context"
	"time"

	"kowa/internal/domain/entity"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
)

type ParticipantView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Avatar   string     `json:"avatar,omitempty"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ConversationView is a conversation as seen by one of its participants.
type ConversationView struct {
	ID               string                    `json:"id"`
	Role             entity.Role               `json:"role"`
	Buyer            ParticipantView           `json:"buyer"`
	Seller           ParticipantView           `json:"seller"`
	OtherParticipant ParticipantView           `json:"other_participant"`
	Item             *entity.ItemSnapshot      `json:"item,omitempty"`
	LastMessage      *entity.LastMessage       `json:"last_message,omitempty"`
	UnreadCount      int                       `json:"unread_count"`
	Status           entity.ConversationStatus `json:"status"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func (uc *ConversationUseCase) participant(ctx context.Context, userID string) ParticipantView {
	p := ParticipantView{ID: userID}
	profile, err := uc.users.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, errors.CodeNotFound) {
			logger.Warn("Failed to load profile %s: %v", userID, err)
		}
		return p
	}
	p.Name = profile.Name
	p.Avatar = profile.Avatar
	return p
}

func (uc *ConversationUseCase) view(ctx context.Context, c *entity.Conversation, viewerID string) (*ConversationView, error) {
	role, ok := c.RoleOf(viewerID)
	if !ok {
		return nil, errors.NotParticipant()
	}

	buyer := uc.participant(ctx, c.Participants.Buyer)
	seller := uc.participant(ctx, c.Participants.Seller)

	other := &seller
	if role == entity.RoleSeller {
		other = &buyer
	}
	other.Online = uc.notifier.IsOnline(other.ID)
	if !other.Online && uc.presence != nil {
		if at, found, err := uc.presence.LastSeen(ctx, other.ID); err == nil && found {
			other.LastSeen = &at
		}
	}

	return &ConversationView{
		ID:               c.ID,
		Role:             role,
		Buyer:            buyer,
		Seller:           seller,
		OtherParticipant: *other,
		Item:             c.Item,
		LastMessage:      c.LastMessage,
		UnreadCount:      c.UnreadCount.For(role),
		Status:           c.Status,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}
