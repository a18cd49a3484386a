// Package dedup suppresses near-simultaneous duplicate messages: the same
// content from the same author in the same channel within a short window.
// This catches proxy-system double-delivery and gateway event replays.
package dedup

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWindow is how recently an identical message must have been
	// recorded to count as a duplicate.
	DefaultWindow = 5 * time.Second

	// retentionFactor: entries older than retentionFactor × window are
	// removed by the opportunistic sweep.
	retentionFactor = 2
)

// Cache is a time-windowed duplicate suppressor keyed by content
// fingerprint. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithWindow overrides the duplicate window.
func WithWindow(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates a duplicate cache with the default 5s window.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]time.Time),
		window:  DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsDuplicate reports whether a fingerprint-equal message was recorded
// within the duplicate window. Empty content is never a duplicate.
func (c *Cache) IsDuplicate(content, authorLabel, channelID string) bool {
	if content == "" {
		return false
	}

	key := Fingerprint(content, authorLabel, channelID)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	seen, ok := c.entries[key]
	if !ok {
		return false
	}
	dup := now.Sub(seen) < c.window
	if dup {
		slog.Debug("duplicate message suppressed",
			"channel_id", channelID,
			"author", authorLabel,
			"age", now.Sub(seen),
		)
	}
	return dup
}

// Record stores the current timestamp for the message's fingerprint,
// overwriting any earlier sighting. Empty content is never recorded.
func (c *Cache) Record(content, authorLabel, channelID string) {
	if content == "" {
		return
	}

	key := Fingerprint(content, authorLabel, channelID)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = now
	c.sweepLocked(now)
}

// Size returns the number of live entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]time.Time)
}

// sweepLocked removes entries past retention. Runs opportunistically on
// each access instead of a dedicated timer.
func (c *Cache) sweepLocked(now time.Time) {
	maxAge := retentionFactor * c.window
	for key, seen := range c.entries {
		if now.Sub(seen) >= maxAge {
			delete(c.entries, key)
		}
	}
}
