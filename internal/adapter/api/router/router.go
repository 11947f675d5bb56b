package router

import (
	"kowa/internal/adapter/api/handler"
	"kowa/internal/adapter/api/middleware"
	"kowa/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Setup expects handler.Setup and handler.SetupHealthHandler to have run.
func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter usecase.RateLimiter, wsHandler *handler.WebSocketHandler) {
	SetupConversationRouter(e, authMiddleware, limiter)
	SetupMessageRouter(e, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
	SetupHealthRouter(e)
}
