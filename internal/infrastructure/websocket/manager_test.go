package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := NewManager()
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	m.Start(ctx)
	return m
}

func register(t *testing.T, m *Manager, c *Client) {
	t.Helper()
	before := m.ConnectionCount(c.UserID)
	require.True(t, m.AddClient(c))
	require.Eventually(t, func() bool { return m.ConnectionCount(c.UserID) == before+1 }, time.Second, time.Millisecond)
}

func TestPublishReachesEveryConnection(t *testing.T) {
	m := startManager(t)
	phone := NewClient("u1", nil, 4)
	laptop := NewClient("u1", nil, 4)
	other := NewClient("u2", nil, 4)
	register(t, m, phone)
	register(t, m, laptop)
	register(t, m, other)

	m.Publish("u1", "new-message", map[string]string{"chat_id": "c1"})

	for _, c := range []*Client{phone, laptop} {
		select {
		case frame := <-c.Send:
			var msg WSMessage
			require.NoError(t, json.Unmarshal(frame, &msg))
			assert.Equal(t, "new-message", msg.Type)
			assert.Equal(t, "2024-01-02T03:04:05Z", msg.Timestamp)
		default:
			t.Fatal("frame not delivered")
		}
	}
	assert.Len(t, other.Send, 0)
}

func TestPublishToOfflineUserIsDropped(t *testing.T) {
	m := startManager(t)
	assert.Equal(t, 0, m.Deliver("nobody", []byte("{}")))
	m.Publish("nobody", "new-order", nil)
}

func TestFullBufferDropsWithoutBlocking(t *testing.T) {
	m := startManager(t)
	c := NewClient("u1", nil, 1)
	register(t, m, c)

	assert.Equal(t, 1, m.Deliver("u1", []byte("a")))

	done := make(chan int)
	go func() { done <- m.Deliver("u1", []byte("b")) }()
	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a full buffer")
	}
	assert.Equal(t, uint64(1), m.Dropped())
}

func TestUnregisterClosesOnlyThatConnection(t *testing.T) {
	m := startManager(t)
	a := NewClient("u1", nil, 1)
	b := NewClient("u1", nil, 1)
	register(t, m, a)
	register(t, m, b)

	m.RemoveClient(a)
	require.Eventually(t, func() bool { return m.ConnectionCount("u1") == 1 }, time.Second, time.Millisecond)

	_, open := <-a.Send
	assert.False(t, open)
	assert.Equal(t, 1, m.Deliver("u1", []byte("x")))
}

func TestPumpsOverRealConnection(t *testing.T) {
	m := startManager(t)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient("u1", conn, 8)
		m.AddClient(client)
		go client.WritePump()
		client.ReadPump(m)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return m.ConnectionCount("u1") == 1 }, time.Second, time.Millisecond)

	m.Publish("u1", "order-status-update", map[string]string{"status": "confirmed"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"type":"order-status-update"`)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	_, frame, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"type":"pong"`)
}

func TestHandleInboundIgnoresUnknownFrames(t *testing.T) {
	assert.Nil(t, handleInbound([]byte("not json"), time.Now()))
	assert.Nil(t, handleInbound([]byte(`{"type":"send_message"}`), time.Now()))
}

func TestShutdownReleasesConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager()
	m.Start(ctx)
	c := NewClient("u1", nil, 1)
	register(t, m, c)

	cancel()
	require.Eventually(t, func() bool { return m.ConnectionCount("u1") == 0 }, time.Second, time.Millisecond)
	_, open := <-c.Send
	assert.False(t, open)

	removed := make(chan struct{})
	go func() {
		m.RemoveClient(c)
		close(removed)
	}()
	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("RemoveClient blocked after shutdown")
	}
	assert.False(t, m.AddClient(NewClient("u2", nil, 1)))
}
