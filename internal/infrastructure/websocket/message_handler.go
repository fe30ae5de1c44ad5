package websocket

import (
	"encoding/json"
	"time"
)

const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// WSMessage is the frame exchanged with clients. Outbound events carry the
// event name in Type.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// handleInbound answers application level pings. Anything else is ignored.
func handleInbound(raw []byte, now time.Time) []byte {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	if msg.Type != MessageTypePing {
		return nil
	}
	reply, err := json.Marshal(WSMessage{Type: MessageTypePong, Timestamp: now.UTC().Format(time.RFC3339)})
	if err != nil {
		return nil
	}
	return reply
}
