// Package notify holds transient notification banners.
package notify

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultTTL      = 5 * time.Second
	DefaultCapacity = 5
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a single banner.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Config struct {
	TTL      time.Duration
	Capacity int
	// OnChange is called after a banner is added or removed, outside the lock.
	OnChange func([]Notification)
}

type entry struct {
	n     Notification
	timer *time.Timer
}

// Center keeps the active banners for one session. Each banner removes itself
// when its own timer fires; when the center is full the oldest is evicted.
type Center struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	onChange func([]Notification)
	entries  []*entry
	entropy  *ulid.MonotonicEntropy
	closed   bool
}

func NewCenter(cfg Config) *Center {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Center{
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		onChange: cfg.OnChange,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// Notify adds a banner and schedules its removal.
func (c *Center) Notify(level Level, message string) {
	now := time.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	n := Notification{
		ID:        ulid.MustNew(ulid.Timestamp(now), c.entropy).String(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
	}
	e := &entry{n: n}
	e.timer = time.AfterFunc(c.ttl, func() { c.Dismiss(n.ID) })

	for len(c.entries) >= c.capacity {
		c.entries[0].timer.Stop()
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, e)
	active := c.activeLocked()
	c.mu.Unlock()

	c.changed(active)
}

// Dismiss removes a banner before its timer fires. Unknown IDs are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	idx := -1
	for i, e := range c.entries {
		if e.n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.entries[idx].timer.Stop()
	c.entries = append(c.entries[:idx:idx], c.entries[idx+1:]...)
	active := c.activeLocked()
	c.mu.Unlock()

	c.changed(active)
}

// Active returns the current banners, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

// Close stops all pending timers and drops every banner.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.timer.Stop()
	}
	c.entries = nil
	c.closed = true
}

func (c *Center) activeLocked() []Notification {
	out := make([]Notification, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.n
	}
	return out
}

func (c *Center) changed(active []Notification) {
	if c.onChange != nil {
		c.onChange(active)
	}
}
