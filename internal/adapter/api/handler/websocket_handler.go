package handler

import (
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"tradehub/internal/adapter/api/middleware"
	ws "tradehub/internal/infrastructure/websocket"
	"tradehub/pkg/errors"
	"tradehub/pkg/logger"
	"tradehub/pkg/response"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	authMiddleware *middleware.AuthMiddleware
	sendBuffer     int
	upgrader       gorillaws.Upgrader
}

func NewWebSocketHandler(wsManager *ws.Manager, authMiddleware *middleware.AuthMiddleware, sendBuffer int) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		authMiddleware: authMiddleware,
		sendBuffer:     sendBuffer,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket authenticates with ?token= (browsers cannot set headers on
// the upgrade request) or a Bearer header, then subscribes the connection.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	caller, err := h.authMiddleware.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed for %s: %v", caller.UserID, err)
		return nil
	}

	client := ws.NewClient(caller.UserID, conn, h.sendBuffer)
	if !h.wsManager.AddClient(client) {
		conn.WriteMessage(gorillaws.CloseMessage, gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "shutting down"))
		conn.Close()
		return nil
	}

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
