package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

var healthHandler *HealthHandler

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{
		checks: checks,
	}
}

func SetupHealthHandler(checks map[string]HealthCheck) {
	healthHandler = NewHealthHandler(checks)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// CheckDependencies runs every registered probe with a short deadline.
func (h *HealthHandler) CheckDependencies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	return c.JSON(code, map[string]interface{}{
		"status": http.StatusText(code),
		"checks": results,
	})
}
