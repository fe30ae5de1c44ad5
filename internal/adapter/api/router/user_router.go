package router

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/handler"
	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/infrastructure/ratelimit"
)

func SetupUserRouter(e *echo.Echo, limiter *ratelimit.RateLimiter) {
	userHandler := handler.GetUserHandler()

	users := e.Group("/v1/users")
	users.Use(middleware.RateLimit(limiter, ratelimit.ActionDefault))

	users.GET("/:id", userHandler.GetPublicProfile)
}
