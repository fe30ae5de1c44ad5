package router

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/handler"
	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/infrastructure/ratelimit"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	chatHandler := handler.GetChatHandler()

	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)
	chatGroup.Use(middleware.RateLimit(limiter, ratelimit.ActionDefault))

	chatGroup.POST("", chatHandler.CreateChat, middleware.RateLimit(limiter, ratelimit.ActionCreateChat))
	chatGroup.GET("", chatHandler.GetUserChats)
	chatGroup.GET("/unread", chatHandler.GetUnreadTotal)
	chatGroup.GET("/:id", chatHandler.GetChatByID)
	chatGroup.DELETE("/:id", chatHandler.DeleteChat)
	chatGroup.PUT("/:id/read", chatHandler.MarkChatAsRead)
	chatGroup.POST("/:id/block", chatHandler.ToggleBlock)

	chatGroup.GET("/:id/messages", chatHandler.GetChatMessages)
	chatGroup.POST("/:id/messages", chatHandler.SendMessage, middleware.RateLimit(limiter, ratelimit.ActionSendMessage))
	chatGroup.POST("/:id/images", chatHandler.SendImage, middleware.RateLimit(limiter, ratelimit.ActionSendMessage))

	chatGroup.POST("/:id/offers/:messageId/respond", chatHandler.RespondToOffer)
}
