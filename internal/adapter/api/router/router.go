package router

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, limiter *ratelimit.RateLimiter) {
	SetupHealthRouter(e)
	SetupListingRouter(e, authMiddleware, limiter)
	SetupUserRouter(e, limiter)
	SetupOrderRouter(e, authMiddleware, adminMiddleware, limiter)
	SetupChatRouter(e, authMiddleware, limiter)
}
