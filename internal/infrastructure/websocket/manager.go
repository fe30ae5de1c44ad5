package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tradehub/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxInbound = 4096
)

// Client is one live connection of a user. A user may hold several.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

func NewClient(userID string, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{UserID: userID, Conn: conn, Send: make(chan []byte, buffer)}
}

// Manager is the in-process notification fan-out keyed by user id.
type Manager struct {
	clients    map[string]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	dropped    uint64
	now        func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Start runs the registration loop until ctx is done, then closes every
// remaining connection.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				conns, ok := m.clients[client.UserID]
				if !ok {
					conns = make(map[*Client]struct{})
					m.clients[client.UserID] = conns
				}
				conns[client] = struct{}{}
				m.mutex.Unlock()
				logger.Debug("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.remove(client)
				logger.Debug("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				for userID, conns := range m.clients {
					for client := range conns {
						close(client.Send)
					}
					delete(m.clients, userID)
				}
				m.mutex.Unlock()
				return
			}
		}
	}()
}

// AddClient hands client to the registration loop. It reports false once
// the manager has shut down.
func (m *Manager) AddClient(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// RemoveClient hands client to the registration loop. After shutdown every
// connection is already released, so it returns at once.
func (m *Manager) RemoveClient(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	conns, ok := m.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(m.clients, client.UserID)
	}
}

// Encode builds the frame sent to clients for one event.
func (m *Manager) Encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      event,
		Data:      payload,
		Timestamp: m.now().UTC().Format(time.RFC3339),
	})
}

// Publish delivers event to every local connection of userID. It never
// blocks: events for offline users and for full send buffers are dropped.
func (m *Manager) Publish(userID, event string, payload interface{}) {
	frame, err := m.Encode(event, payload)
	if err != nil {
		logger.Error("Publish Error: failed to encode %s for user %s: %v", event, userID, err)
		return
	}
	m.Deliver(userID, frame)
}

// Deliver pushes an encoded frame to the local connections of userID and
// returns how many accepted it.
func (m *Manager) Deliver(userID string, frame []byte) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	delivered := 0
	for client := range m.clients[userID] {
		select {
		case client.Send <- frame:
			delivered++
		default:
			atomic.AddUint64(&m.dropped, 1)
			logger.Warn("Send buffer full, dropping frame for user %s", userID)
		}
	}
	return delivered
}

// sendTo queues a frame for one registered connection.
func (m *Manager) sendTo(c *Client, frame []byte) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, ok := m.clients[c.UserID][c]; !ok {
		return
	}
	select {
	case c.Send <- frame:
	default:
	}
}

func (m *Manager) ConnectionCount(userID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID])
}

// Dropped reports how many frames were discarded on full buffers.
func (m *Manager) Dropped() uint64 {
	return atomic.LoadUint64(&m.dropped)
}

// ReadPump consumes inbound frames until the connection fails. Only
// keepalive traffic is handled; the core never reads from this channel.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.RemoveClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxInbound)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error for %s: %v", c.UserID, err)
			}
			return
		}
		if reply := handleInbound(message, m.now()); reply != nil {
			m.sendTo(c, reply)
		}
	}
}

// WritePump writes queued frames and keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket write error for %s: %v", c.UserID, err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
