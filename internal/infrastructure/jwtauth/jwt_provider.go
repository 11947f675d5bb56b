// Package jwtauth verifies HS256 bearer tokens issued by the marketplace's
// own auth service.
package jwtauth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"kowa/internal/domain/entity"
	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
)

// Claims accepts the user id either as "id" or as the standard subject.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Subject
}

type Provider struct {
	secret []byte
	users  repository.UserDirectory
}

func NewProvider(secret string, users repository.UserDirectory) *Provider {
	return &Provider{
		secret: []byte(secret),
		users:  users,
	}
}

func (p *Provider) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}
	if claims.UserID() == "" {
		return nil, errors.Unauthorized("Token has no subject", nil)
	}
	return claims, nil
}

// Authenticate requires the user to exist in the directory.
func (p *Provider) Authenticate(ctx context.Context, tokenStr string) (*entity.UserProfile, error) {
	claims, err := p.Parse(tokenStr)
	if err != nil {
		return nil, err
	}

	profile, err := p.users.GetProfile(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.Unauthorized("User not found", err)
		}
		return nil, err
	}
	return profile, nil
}

// Sign issues a token for userID. Used by tests and local tooling.
func (p *Provider) Sign(userID string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{ID: userID, RegisteredClaims: claims})
	return token.SignedString(p.secret)
}
