package router

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"kowa/internal/adapter/api/handler"
	"kowa/internal/adapter/api/middleware"
)

func SetupMessageRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	messageHandler := handler.GetMessageHandler()

	messages := e.Group("/v1/messages")
	messages.Use(authMiddleware.Authenticate)

	messages.POST("", messageHandler.SendMessage)
	// 10MB of audio plus multipart framing
	messages.POST("/voice", messageHandler.SendVoiceMessage, echomiddleware.BodyLimit("11M"))
	messages.GET("/search/:conversationId", messageHandler.SearchMessages)
	messages.GET("/:conversationId", messageHandler.ListMessages)
	messages.PUT("/:id/read", messageHandler.MarkAsRead)
	messages.DELETE("/:id", messageHandler.DeleteMessage)
}
