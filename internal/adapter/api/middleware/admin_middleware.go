package middleware

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/domain/entity"
	"tradehub/internal/domain/repository"
	"tradehub/pkg/errors"
	"tradehub/pkg/response"
)

type AdminMiddleware struct {
	userRepo repository.UserRepository
}

func NewAdminMiddleware(userRepo repository.UserRepository) *AdminMiddleware {
	return &AdminMiddleware{
		userRepo: userRepo,
	}
}

// AdminOnly accepts callers whose token carries the admin role, falling back
// to the role stored on the user profile.
func (m *AdminMiddleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		caller := CallerFrom(c)
		if caller.UserID == "" {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}
		if caller.IsAdmin() {
			return next(c)
		}

		user, err := m.userRepo.GetByID(c.Request().Context(), caller.UserID)
		if err != nil && !errors.Is(err, errors.CodeNotFound) {
			return response.Error(c, errors.Internal("Failed to verify admin privileges", err))
		}
		if user == nil || user.Role != entity.RoleAdmin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}

		caller.Role = entity.RoleAdmin
		SetCaller(c, caller)
		return next(c)
	}
}
