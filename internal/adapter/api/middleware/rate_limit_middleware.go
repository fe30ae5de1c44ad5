package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"tradehub/internal/infrastructure/ratelimit"
	"tradehub/pkg/errors"
	"tradehub/pkg/logger"
	"tradehub/pkg/response"
)

// RateLimit throttles requests per authenticated user, or per client IP when
// the route is public.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := CallerFrom(c).UserID
			if key == "" {
				key = "ip:" + c.RealIP()
			}

			allowed, wait := limiter.Allow(key, action)
			if !allowed {
				logger.Warn("RATE LIMIT: %s exceeded %s (retry in %v)", key, action, wait)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}
			return next(c)
		}
	}
}
