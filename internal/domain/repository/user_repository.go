package repository

import (
	"context"

	"kowa/internal/domain/entity"
)

// UserDirectory resolves display names and avatars.
type UserDirectory interface {
	GetProfile(ctx context.Context, id string) (*entity.UserProfile, error)
}
