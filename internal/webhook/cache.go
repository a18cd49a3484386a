// Package webhook caches per-channel webhook client handles. Webhook
// creation is a rate-limited platform write, so handles are reused across
// sends: LRU-bounded, TTL-expired, and evicted when their channel is
// deleted. Threads get their own cache entry backed by the parent
// channel's webhook.
package webhook

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultCapacity bounds the number of live handles.
	DefaultCapacity = 100

	// DefaultTTL expires handles a day after creation; webhook tokens are
	// long-lived but channels get reconfigured, so stale handles are
	// recreated rather than trusted forever.
	DefaultTTL = 24 * time.Hour
)

// ChannelInfo is the platform-agnostic channel shape the cache works with.
type ChannelInfo struct {
	ID       string
	GuildID  string
	ParentID string
	IsThread bool
	NSFW     bool
}

// Info holds raw webhook credentials returned by the platform.
type Info struct {
	ID    string
	Token string
	Name  string
}

// API is the platform surface the cache needs: list and create webhooks.
// Both calls are platform writes/reads whose errors propagate to callers.
type API interface {
	ChannelWebhooks(ctx context.Context, channelID string) ([]Info, error)
	CreateWebhook(ctx context.Context, channelID, name string) (Info, error)
}

// Client is a live webhook client. Destroy releases its resources
// immediately instead of waiting on garbage collection.
type Client interface {
	Destroy()
}

// ClientFactory wraps raw webhook credentials in a Client.
type ClientFactory func(channelID string, info Info) Client

// Handle is a cached webhook client for one channel or thread.
type Handle struct {
	ChannelID       string // cache key: the thread's own ID for threads
	TargetChannelID string // channel that owns the webhook (parent for threads)
	WebhookID       string
	Token           string
	Client          Client

	created    time.Time
	lastAccess time.Time
	destroy    sync.Once
}

// Destroy releases the underlying client exactly once.
func (h *Handle) Destroy() {
	h.destroy.Do(func() {
		if h.Client != nil {
			h.Client.Destroy()
		}
	})
}

// Cache is the LRU/TTL webhook handle cache. Safe for concurrent use;
// concurrent GetOrCreate calls for the same channel collapse into one
// platform round-trip.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	ttl      time.Duration
	now      func() time.Time

	api      API
	factory  ClientFactory
	resolver ParentResolver
	botName  string
	limiter  *rate.Limiter
	group    singleflight.Group
	onHandle func(webhookID string)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCapacity bounds the number of live handles.
func WithCapacity(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTTL overrides handle expiry.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHandleHook registers a callback invoked with the webhook ID of every
// handle the cache caches, so callers can track which webhooks are ours.
func WithHandleHook(fn func(webhookID string)) CacheOption {
	return func(c *Cache) {
		c.onHandle = fn
	}
}

// WithCreateLimit bounds webhook creation calls per second.
func WithCreateLimit(l *rate.Limiter) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.limiter = l
		}
	}
}

// NewCache creates a webhook cache. botName is the name given to webhooks
// the cache creates, and the name it looks for when reusing existing ones.
func NewCache(api API, factory ClientFactory, resolver ParentResolver, botName string, opts ...CacheOption) *Cache {
	c := &Cache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		now:      time.Now,
		api:      api,
		factory:  factory,
		resolver: resolver,
		botName:  botName,
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCreate returns a live handle for the channel, creating the platform
// webhook if necessary. For threads the webhook belongs to the parent
// channel, resolved through the parent resolver; an unresolvable parent is
// a configuration error and propagates.
func (c *Cache) GetOrCreate(ctx context.Context, ch ChannelInfo) (*Handle, error) {
	if h := c.lookup(ch.ID); h != nil {
		return h, nil
	}

	v, err, _ := c.group.Do(ch.ID, func() (interface{}, error) {
		// Re-check: another flight may have populated the entry.
		if h := c.lookup(ch.ID); h != nil {
			return h, nil
		}

		target, err := c.resolver.ResolveParent(ctx, ch)
		if err != nil {
			return nil, err
		}

		info, err := c.findOrCreateWebhook(ctx, target.ID)
		if err != nil {
			return nil, err
		}

		now := c.now()
		h := &Handle{
			ChannelID:       ch.ID,
			TargetChannelID: target.ID,
			WebhookID:       info.ID,
			Token:           info.Token,
			Client:          c.factory(target.ID, info),
			created:         now,
			lastAccess:      now,
		}
		c.insert(h)
		if c.onHandle != nil {
			c.onHandle(info.ID)
		}

		slog.Info("webhook handle cached",
			"channel_id", ch.ID,
			"target_channel_id", target.ID,
			"webhook_id", info.ID,
			"is_thread", ch.IsThread,
		)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Has reports whether a live (non-expired) handle exists. Expired entries
// are evicted on this access rather than by a proactive scan.
func (c *Cache) Has(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[channelID]
	if !ok {
		return false
	}
	h := el.Value.(*Handle)
	if c.expiredLocked(h) {
		c.removeLocked(el)
		h.Destroy()
		return false
	}
	return true
}

// Clear destroys and evicts one channel's handle. Thread and parent
// entries are independent: clearing one never clears the other.
func (c *Cache) Clear(channelID string) {
	c.mu.Lock()
	el, ok := c.items[channelID]
	var h *Handle
	if ok {
		h = el.Value.(*Handle)
		c.removeLocked(el)
	}
	c.mu.Unlock()

	if h != nil {
		h.Destroy()
		slog.Debug("webhook handle cleared", "channel_id", channelID)
	}
}

// ClearAll destroys and evicts every handle.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.items))
	for _, el := range c.items {
		handles = append(handles, el.Value.(*Handle))
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	for _, h := range handles {
		h.Destroy()
	}
}

// Len returns the number of cached handles, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// lookup returns a live handle and refreshes its recency, or nil.
func (c *Cache) lookup(channelID string) *Handle {
	c.mu.Lock()

	el, ok := c.items[channelID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	h := el.Value.(*Handle)
	if c.expiredLocked(h) {
		c.removeLocked(el)
		c.mu.Unlock()
		h.Destroy()
		slog.Debug("webhook handle expired", "channel_id", channelID)
		return nil
	}
	h.lastAccess = c.now()
	c.order.MoveToFront(el)
	c.mu.Unlock()
	return h
}

func (c *Cache) insert(h *Handle) {
	c.mu.Lock()
	var evicted *Handle
	if el, ok := c.items[h.ChannelID]; ok {
		evicted = el.Value.(*Handle)
		c.removeLocked(el)
	}
	c.items[h.ChannelID] = c.order.PushFront(h)

	var lru *Handle
	if len(c.items) > c.capacity {
		if back := c.order.Back(); back != nil {
			lru = back.Value.(*Handle)
			c.removeLocked(back)
		}
	}
	c.mu.Unlock()

	if evicted != nil {
		evicted.Destroy()
	}
	if lru != nil {
		lru.Destroy()
		slog.Debug("webhook handle evicted (capacity)", "channel_id", lru.ChannelID)
	}
}

func (c *Cache) expiredLocked(h *Handle) bool {
	return c.now().Sub(h.created) >= c.ttl
}

func (c *Cache) removeLocked(el *list.Element) {
	h := el.Value.(*Handle)
	delete(c.items, h.ChannelID)
	c.order.Remove(el)
}

// findOrCreateWebhook reuses an existing bot-named webhook on the target
// channel or creates one. Creation is rate-limited.
func (c *Cache) findOrCreateWebhook(ctx context.Context, channelID string) (Info, error) {
	hooks, err := c.api.ChannelWebhooks(ctx, channelID)
	if err != nil {
		return Info{}, fmt.Errorf("list webhooks for %s: %w", channelID, err)
	}
	for _, hook := range hooks {
		if hook.Name == c.botName && hook.Token != "" {
			return hook, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Info{}, fmt.Errorf("webhook create limiter: %w", err)
	}
	info, err := c.api.CreateWebhook(ctx, channelID, c.botName)
	if err != nil {
		return Info{}, fmt.Errorf("create webhook on %s: %w", channelID, err)
	}
	return info, nil
}
