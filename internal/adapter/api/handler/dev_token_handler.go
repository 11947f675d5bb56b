package handler

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"kowa/internal/domain/repository"
	"kowa/pkg/errors"
	"kowa/pkg/response"
)

const devTokenTTL = 30 * 24 * time.Hour

// TokenSigner mints bearer tokens the configured identity provider accepts.
type TokenSigner interface {
	Sign(userID string, claims jwt.RegisteredClaims) (string, error)
}

type DevTokenHandler struct {
	signer TokenSigner
	users  repository.UserDirectory
}

var devTokenHandler *DevTokenHandler

func NewDevTokenHandler(signer TokenSigner, users repository.UserDirectory) *DevTokenHandler {
	return &DevTokenHandler{
		signer: signer,
		users:  users,
	}
}

func SetupDevTokenHandler(signer TokenSigner, users repository.UserDirectory) {
	devTokenHandler = NewDevTokenHandler(signer, users)
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

// GenerateUserToken issues a long-lived token for an existing user so the
// socket and REST surfaces can be exercised locally.
func (h *DevTokenHandler) GenerateUserToken(c echo.Context) error {
	userID := c.Param("userId")

	profile, err := h.users.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	now := time.Now()
	token, err := h.signer.Sign(profile.ID, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(devTokenTTL)),
	})
	if err != nil {
		return response.Error(c, errors.Internal("Failed to sign token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":      token,
		"expires_in": int(devTokenTTL.Seconds()),
		"user":       profile,
	})
}
