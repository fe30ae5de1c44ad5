package router

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/handler"
	"tradehub/internal/adapter/api/middleware"
	"tradehub/internal/infrastructure/ratelimit"
)

func SetupListingRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	listingHandler := handler.GetListingHandler()

	listings := e.Group("/v1/listings")
	listings.GET("/:id", listingHandler.GetListing, middleware.RateLimit(limiter, ratelimit.ActionDefault))
	listings.POST("", listingHandler.CreateListing, authMiddleware.Authenticate, middleware.RateLimit(limiter, ratelimit.ActionDefault))
}
