package router

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/handler"
	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/infrastructure/ratelimit"
)

// SetupOrderRouter initializes order routes
func SetupOrderRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, limiter *ratelimit.RateLimiter) {
	orderHandler := handler.GetOrderHandler()

	orders := e.Group("/v1/orders")
	orders.Use(authMiddleware.Authenticate)
	orders.Use(middleware.RateLimit(limiter, ratelimit.ActionDefault))

	orders.POST("", orderHandler.CreateOrder, middleware.RateLimit(limiter, ratelimit.ActionCreateOrder))
	orders.GET("", orderHandler.ListOrders)
	orders.GET("/:id", orderHandler.GetOrder)
	orders.PUT("/:id/status", orderHandler.UpdateStatus)
	orders.POST("/:id/cancel", orderHandler.CancelOrder)
	orders.POST("/:id/dispute", orderHandler.RaiseDispute)
	orders.POST("/:id/rating", orderHandler.AddRating)
	orders.PUT("/:id/meetup", orderHandler.UpdateMeetup)

	admin := e.Group("/v1/admin/orders")
	admin.Use(authMiddleware.Authenticate)
	admin.Use(adminMiddleware.AdminOnly)

	admin.GET("", orderHandler.ListAdminOrders)
}
