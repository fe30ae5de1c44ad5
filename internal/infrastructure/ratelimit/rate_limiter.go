package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionDefault     = "default"
	ActionSendMessage = "send_message"
	ActionCreateChat  = "create_chat"
	ActionCreateOrder = "create_order"
)

// Policy is the sustained rate and burst of one action.
type Policy struct {
	Every time.Duration
	Burst int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user and action.
type RateLimiter struct {
	policies map[string]Policy
	buckets  map[string]*entry
	mutex    sync.Mutex
	now      func() time.Time
}

// NewRateLimiter builds a limiter whose default action allows perMinute
// requests per minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		policies: map[string]Policy{
			ActionDefault: {Every: time.Minute / time.Duration(perMinute), Burst: perMinute},
			// 10 messages per minute
			ActionSendMessage: {Every: 6 * time.Second, Burst: 10},
			// 5 new chats per hour
			ActionCreateChat:  {Every: 12 * time.Minute, Burst: 5},
			ActionCreateOrder: {Every: 30 * time.Second, Burst: 5},
		},
		buckets: make(map[string]*entry),
		now:     time.Now,
	}
}

// SetPolicy overrides the policy of one action.
func (rl *RateLimiter) SetPolicy(action string, p Policy) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.policies[action] = p
	for key := range rl.buckets {
		delete(rl.buckets, key)
	}
}

// Allow consumes a token for key/action. When none is available it returns
// false with the time until the next token.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	now := rl.now()
	bucket := rl.bucket(key, action, now)

	reservation := bucket.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) bucket(key, action string, now time.Time) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	id := key + ":" + action
	if e, ok := rl.buckets[id]; ok {
		e.lastSeen = now
		return e.limiter
	}

	p, ok := rl.policies[action]
	if !ok {
		p = rl.policies[ActionDefault]
	}
	e := &entry{limiter: rate.NewLimiter(rate.Every(p.Every), p.Burst), lastSeen: now}
	rl.buckets[id] = e
	return e.limiter
}

// Cleanup removes buckets idle for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, e := range rl.buckets {
		if now.Sub(e.lastSeen) > idle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine sweeps idle buckets until stop is closed.
func (rl *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-stop:
				return
			}
		}
	}()
}
