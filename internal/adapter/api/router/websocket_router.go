package router

import (
	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/handler"
)

// SetupWebSocketRouter registers /ws. The handler authenticates the token
// itself.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
