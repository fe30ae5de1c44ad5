package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"tradehub/internal/domain/entity"
	"tradehub/pkg/errors"
	"tradehub/pkg/response"
)

const callerKey = "caller"

// TokenVerifier turns a session token into the identity it carries.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (entity.Caller, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		caller, err := m.verifier.VerifyToken(c.Request().Context(), parts[1])
		if err != nil {
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		SetCaller(c, caller)
		return next(c)
	}
}

// VerifyToken checks a token outside the header flow, e.g. the websocket
// query parameter.
func (m *AuthMiddleware) VerifyToken(ctx context.Context, token string) (entity.Caller, error) {
	return m.verifier.VerifyToken(ctx, token)
}

func SetCaller(c echo.Context, caller entity.Caller) {
	c.Set("uid", caller.UserID)
	c.Set(callerKey, caller)
}

// CallerFrom returns the authenticated identity stored by Authenticate.
func CallerFrom(c echo.Context) entity.Caller {
	if caller, ok := c.Get(callerKey).(entity.Caller); ok {
		return caller
	}
	uid, _ := c.Get("uid").(string)
	return entity.Caller{UserID: uid}
}
