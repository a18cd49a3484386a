package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type fakeAPI struct {
	mu       sync.Mutex
	existing map[string][]Info // channelID → webhooks already on the channel
	creates  int
	lists    int
	failList bool
}

func (a *fakeAPI) ChannelWebhooks(_ context.Context, channelID string) ([]Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lists++
	if a.failList {
		return nil, errors.New("list failed")
	}
	return a.existing[channelID], nil
}

func (a *fakeAPI) CreateWebhook(_ context.Context, channelID, name string) (Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creates++
	info := Info{ID: fmt.Sprintf("wh-%s-%d", channelID, a.creates), Token: "tok", Name: name}
	if a.existing == nil {
		a.existing = make(map[string][]Info)
	}
	a.existing[channelID] = append(a.existing[channelID], info)
	return info, nil
}

type fakeClient struct {
	destroyed atomic.Int32
}

func (c *fakeClient) Destroy() { c.destroyed.Add(1) }

type clientTracker struct {
	mu      sync.Mutex
	clients map[string]*fakeClient // webhook ID → client
}

func (t *clientTracker) factory(_ string, info Info) Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clients == nil {
		t.clients = make(map[string]*fakeClient)
	}
	c := &fakeClient{}
	t.clients[info.ID] = c
	return c
}

func passthroughResolver() ParentResolver {
	return NewChainResolver(Strategy{
		Name: "parent-id",
		Resolve: func(_ context.Context, ch ChannelInfo) (ChannelInfo, bool) {
			if ch.ParentID == "" {
				return ChannelInfo{}, false
			}
			return ChannelInfo{ID: ch.ParentID, GuildID: ch.GuildID}, true
		},
	})
}

func newTestCache(api *fakeAPI, ct *clientTracker, clock *fakeClock, opts ...CacheOption) *Cache {
	base := []CacheOption{
		WithClock(clock.Now),
		WithCreateLimit(rate.NewLimiter(rate.Inf, 1)),
	}
	return NewCache(api, ct.factory, passthroughResolver(), "Tzurot", append(base, opts...)...)
}

func TestGetOrCreate_CreatesThenReuses(t *testing.T) {
	api := &fakeAPI{}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock)

	ctx := context.Background()
	h1, err := c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1", GuildID: "g1"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	h2, err := c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1", GuildID: "g1"})
	if err != nil {
		t.Fatalf("GetOrCreate (second): %v", err)
	}

	if h1 != h2 {
		t.Error("second GetOrCreate returned a different handle")
	}
	if api.creates != 1 {
		t.Errorf("creates = %d, want 1", api.creates)
	}
}

func TestGetOrCreate_ReusesExistingBotWebhook(t *testing.T) {
	api := &fakeAPI{existing: map[string][]Info{
		"chan-1": {{ID: "wh-old", Token: "tok", Name: "Tzurot"}},
	}}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock)

	h, err := c.GetOrCreate(context.Background(), ChannelInfo{ID: "chan-1"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if h.WebhookID != "wh-old" {
		t.Errorf("webhook ID = %s, want wh-old (reuse)", h.WebhookID)
	}
	if api.creates != 0 {
		t.Errorf("creates = %d, want 0", api.creates)
	}
}

func TestLRUEviction_DestroysOldestOnce(t *testing.T) {
	api := &fakeAPI{}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock, WithCapacity(2))

	ctx := context.Background()
	c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1"})
	h2, _ := c.GetOrCreate(ctx, ChannelInfo{ID: "chan-2"})

	// Touch chan-1 so chan-2 is least-recently-used.
	c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1"})
	c.GetOrCreate(ctx, ChannelInfo{ID: "chan-3"})

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2 (capacity bound)", c.Len())
	}
	if c.Has("chan-2") {
		t.Error("least-recently-used entry chan-2 not evicted")
	}
	if !c.Has("chan-1") || !c.Has("chan-3") {
		t.Error("recently used entries evicted")
	}

	evicted := ct.clients[h2.WebhookID]
	if evicted == nil {
		t.Fatal("no client recorded for evicted channel")
	}
	if got := evicted.destroyed.Load(); got != 1 {
		t.Errorf("evicted client destroyed %d times, want exactly 1", got)
	}
}

func TestTTLExpiry_LazyEviction(t *testing.T) {
	api := &fakeAPI{}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock, WithTTL(time.Hour))

	ctx := context.Background()
	c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1"})

	clock.Advance(59 * time.Minute)
	if !c.Has("chan-1") {
		t.Error("entry just before TTL treated as absent")
	}

	clock.Advance(2 * time.Minute)
	if c.Has("chan-1") {
		t.Error("entry past TTL treated as present")
	}

	// Recreated on next access.
	if _, err := c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1"}); err != nil {
		t.Fatalf("GetOrCreate after expiry: %v", err)
	}
	if api.creates != 2 {
		t.Errorf("creates = %d, want 2 (recreate after expiry)", api.creates)
	}
}

func TestThreadHandles_IndependentOfParent(t *testing.T) {
	api := &fakeAPI{}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock)

	ctx := context.Background()
	parent, err := c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1"})
	if err != nil {
		t.Fatalf("parent GetOrCreate: %v", err)
	}
	thread, err := c.GetOrCreate(ctx, ChannelInfo{ID: "thread-1", ParentID: "chan-1", IsThread: true})
	if err != nil {
		t.Fatalf("thread GetOrCreate: %v", err)
	}

	// Thread entry is backed by the parent's webhook but cached under its own key.
	if thread.TargetChannelID != "chan-1" {
		t.Errorf("thread target = %s, want chan-1", thread.TargetChannelID)
	}
	if thread.WebhookID != parent.WebhookID {
		t.Errorf("thread webhook %s != parent webhook %s", thread.WebhookID, parent.WebhookID)
	}

	c.Clear("thread-1")
	if c.Has("thread-1") {
		t.Error("thread entry survived Clear")
	}
	if !c.Has("chan-1") {
		t.Error("clearing thread evicted the parent")
	}

	c.Clear("chan-1")
	if c.Has("chan-1") {
		t.Error("parent entry survived Clear")
	}
}

func TestThreadWithoutParent_Rejects(t *testing.T) {
	api := &fakeAPI{}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock)

	_, err := c.GetOrCreate(context.Background(), ChannelInfo{ID: "thread-x", IsThread: true})
	if !errors.Is(err, ErrNoParent) {
		t.Errorf("err = %v, want ErrNoParent", err)
	}
}

func TestConcurrentGetOrCreate_SingleCreate(t *testing.T) {
	api := &fakeAPI{}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1"})
		}()
	}
	wg.Wait()

	if api.creates != 1 {
		t.Errorf("creates = %d, want 1 (singleflight collapse)", api.creates)
	}
}

func TestClearAll(t *testing.T) {
	api := &fakeAPI{}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock)

	ctx := context.Background()
	c.GetOrCreate(ctx, ChannelInfo{ID: "chan-1"})
	c.GetOrCreate(ctx, ChannelInfo{ID: "chan-2"})

	c.ClearAll()
	if c.Len() != 0 {
		t.Errorf("Len after ClearAll = %d, want 0", c.Len())
	}
	for id, cl := range ct.clients {
		if cl.destroyed.Load() != 1 {
			t.Errorf("client %s destroyed %d times, want 1", id, cl.destroyed.Load())
		}
	}
}

func TestListFailure_Propagates(t *testing.T) {
	api := &fakeAPI{failList: true}
	ct := &clientTracker{}
	clock := newFakeClock()
	c := newTestCache(api, ct, clock)

	if _, err := c.GetOrCreate(context.Background(), ChannelInfo{ID: "chan-1"}); err == nil {
		t.Error("platform list failure did not propagate")
	}
}
