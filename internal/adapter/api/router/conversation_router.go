package router

import (
	"github.com/labstack/echo/v4"

	"kowa/internal/adapter/api/handler"
	"kowa/internal/adapter/api/middleware"
	"kowa/internal/usecase"
)

func SetupConversationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter usecase.RateLimiter) {
	conversationHandler := handler.GetConversationHandler()

	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)

	// ?status=active|archived, defaults to active
	conversations.GET("", conversationHandler.ListConversations)
	conversations.GET("/unread/count", conversationHandler.UnreadCount)
	conversations.POST("", conversationHandler.CreateConversation, middleware.RateLimit(limiter, "create_conversation"))
	conversations.GET("/:id", conversationHandler.GetConversation)
	conversations.PUT("/:id/read", conversationHandler.MarkAsRead)
	conversations.DELETE("/:id", conversationHandler.Archive)
	conversations.PUT("/:id/unarchive", conversationHandler.Unarchive)
}
