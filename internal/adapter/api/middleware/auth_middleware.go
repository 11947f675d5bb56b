package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"kowa/internal/usecase"
	"kowa/pkg/errors"
	"kowa/pkg/response"
)

const (
	ContextUserID = "uid"
	ContextUser   = "user"
)

type AuthMiddleware struct {
	identity usecase.IdentityProvider
}

func NewAuthMiddleware(identity usecase.IdentityProvider) *AuthMiddleware {
	return &AuthMiddleware{
		identity: identity,
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		token, ok := BearerToken(authHeader)
		if !ok {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		user, err := m.identity.Authenticate(c.Request().Context(), token)
		if err != nil {
			return response.Error(c, err)
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		return next(c)
	}
}
