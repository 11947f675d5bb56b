package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kowa/internal/adapter/repository"
	"kowa/internal/domain/entity"
	"kowa/pkg/errors"
)

func newProvider() (*Provider, *repository.MemoryDirectory) {
	dir := repository.NewMemoryDirectory()
	dir.PutUser(&entity.UserProfile{ID: "alice", Name: "Alice"})
	return NewProvider("test-secret", dir), dir
}

func TestAuthenticateValidToken(t *testing.T) {
	p, _ := newProvider()
	token, err := p.Sign("alice", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	profile, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	p, _ := newProvider()
	token, err := p.Sign("alice", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	require.NoError(t, err)

	_, err = p.Authenticate(context.Background(), token)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	p, _ := newProvider()
	other := NewProvider("another-secret", nil)
	token, err := other.Sign("alice", jwt.RegisteredClaims{})
	require.NoError(t, err)

	_, err = p.Authenticate(context.Background(), token)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}

func TestAuthenticateUnknownUser(t *testing.T) {
	p, _ := newProvider()
	token, err := p.Sign("ghost", jwt.RegisteredClaims{})
	require.NoError(t, err)

	_, err = p.Authenticate(context.Background(), token)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}
