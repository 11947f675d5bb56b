package handler

import (
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"kowa/internal/adapter/api/middleware"
	ws "kowa/internal/infrastructure/websocket"
	"kowa/internal/usecase"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
	"kowa/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	identity  usecase.IdentityProvider
	upgrader  gorillaws.Upgrader
}

// NewWebSocketHandler accepts any origin when allowedOrigins is empty.
func NewWebSocketHandler(wsManager *ws.Manager, identity usecase.IdentityProvider, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		identity:  identity,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}

// handshakeToken reads the bearer header first, then the token query param
// that browsers have to use.
func handshakeToken(c echo.Context) string {
	if token, ok := middleware.BearerToken(c.Request().Header.Get("Authorization")); ok {
		return token
	}
	return strings.TrimSpace(c.QueryParam("token"))
}

// HandleWebSocket authenticates before upgrading so bad credentials get a
// plain 401.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := handshakeToken(c)
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication token is required", nil))
	}

	user, err := h.identity.Authenticate(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logger.Warn("WebSocket: upgrade failed for user %s: %v", user.ID, err)
		return nil
	}

	h.wsManager.Serve(ws.NewClient(conn, user))
	return nil
}
