package router

import (
	"github.com/labstack/echo/v4"

	"kowa/internal/adapter/api/handler"
)

// SetupWebSocketRouter registers /ws. Authentication happens inside the
// handler because browsers cannot set headers on the handshake.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
