package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionCounter reports how many live sockets this instance holds.
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthHandler struct {
	connections ConnectionCounter
	startedAt   time.Time
}

func NewHealthHandler(connections ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		connections: connections,
		startedAt:   time.Now(),
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.connections != nil {
		body["connections"] = h.connections.ConnectionCount()
	}
	return c.JSON(http.StatusOK, body)
}
