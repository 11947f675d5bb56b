package router

import (
	"kowa/internal/adapter/api/handler"

	"github.com/labstack/echo/v4"
)

// SetupDevRouter is a no-op outside development or when no signer was set up.
func SetupDevRouter(e *echo.Echo, development bool) {
	devTokenHandler := handler.GetDevTokenHandler()
	if !development || devTokenHandler == nil {
		return
	}

	e.GET("/_dev/token/:userId", devTokenHandler.GenerateUserToken)
}
