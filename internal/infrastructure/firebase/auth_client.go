package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
)

// FirebaseAuthClient verifies Firebase ID tokens.
type FirebaseAuthClient struct {
	client *auth.Client
	users  repository.UserDirectory
}

func NewFirebaseAuthClient(client *auth.Client, users repository.UserDirectory) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
		users:  users,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (*auth.Token, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}
	return result, nil
}

// Authenticate prefers the directory profile and falls back to token claims.
func (f *FirebaseAuthClient) Authenticate(ctx context.Context, token string) (*entity.UserProfile, error) {
	verified, err := f.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	profile, err := f.users.GetProfile(ctx, verified.UID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		logger.Warn("Authenticate: profile lookup failed for %s: %v", verified.UID, err)
	}

	name, _ := verified.Claims["name"].(string)
	picture, _ := verified.Claims["picture"].(string)
	return &entity.UserProfile{ID: verified.UID, Name: name, Avatar: picture}, nil
}
