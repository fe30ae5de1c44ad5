// Package redis relays notification frames between API instances so a user
// connected to any instance receives events raised on another.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"tradehub/pkg/logger"
)

// LocalHub is the in-process fan-out the bridge feeds.
type LocalHub interface {
	Encode(event string, payload interface{}) ([]byte, error)
	Deliver(userID string, frame []byte) int
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

type envelope struct {
	Origin string          `json:"origin"`
	UserID string          `json:"user_id"`
	Frame  json.RawMessage `json:"frame"`
}

type Bridge struct {
	hub     LocalHub
	client  *goredis.Client
	pub     publisher
	channel string
	origin  string
	outbox  chan envelope
}

// Connect initializes a Redis client from a redis:// URL or host:port.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	var client *goredis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := goredis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = goredis.NewClient(opt)
	} else {
		client = goredis.NewClient(&goredis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewBridge(client *goredis.Client, channel string, hub LocalHub, buffer int) *Bridge {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Bridge{
		hub:     hub,
		client:  client,
		pub:     client,
		channel: channel,
		origin:  uuid.New().String(),
		outbox:  make(chan envelope, buffer),
	}
}

// Publish delivers locally and queues the frame for the other instances.
// It never blocks; when the relay queue is full only local delivery happens.
func (b *Bridge) Publish(userID, event string, payload interface{}) {
	frame, err := b.hub.Encode(event, payload)
	if err != nil {
		logger.Error("Publish Error: failed to encode %s for user %s: %v", event, userID, err)
		return
	}
	b.hub.Deliver(userID, frame)

	select {
	case b.outbox <- envelope{Origin: b.origin, UserID: userID, Frame: frame}:
	default:
		logger.Warn("Redis relay queue full, event %s for user %s stays local", event, userID)
	}
}

// Run relays frames in both directions until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	go b.forward(ctx)
	go b.listen(ctx)
}

func (b *Bridge) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.outbox:
			data, err := json.Marshal(env)
			if err != nil {
				logger.Error("Redis relay encode error: %v", err)
				continue
			}
			if err := b.pub.Publish(ctx, b.channel, data).Err(); err != nil {
				logger.Warn("Redis relay publish failed for user %s: %v", env.UserID, err)
			}
		}
	}
}

func (b *Bridge) listen(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg.Payload)
		}
	}
}

// handle delivers a relayed frame unless this instance produced it.
func (b *Bridge) handle(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		logger.Warn("Redis relay dropped malformed payload: %v", err)
		return
	}
	if env.Origin == b.origin || env.UserID == "" {
		return
	}
	b.hub.Deliver(env.UserID, env.Frame)
}
