// Package tracker prevents double-handling of messages and operations.
// It is the generalized companion to the dedup cache: keys are
// (kind, channel, message-id-or-signature) composites rather than content
// fingerprints, so it can suppress double replies to one inbound message
// and echoes of the bot's own outbound sends.
package tracker

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a tracked operation.
type Kind string

const (
	KindMessage Kind = "inbound-message"
	KindCommand Kind = "command"
	KindBotEcho Kind = "bot-echo"
	KindReply   Kind = "outbound-reply"
	KindSend    Kind = "outbound-send"
	KindDeleted Kind = "deleted-message"
)

const (
	// DefaultMaxAge is the retention window for tracked message IDs.
	DefaultMaxAge = 15 * time.Minute

	// DefaultOperationWindow is the retention window for signature-keyed
	// operations (outbound sends, echoes).
	DefaultOperationWindow = 5 * time.Second

	// DefaultSweepInterval is how often the background sweep runs when
	// enabled via Start.
	DefaultSweepInterval = 10 * time.Minute
)

type entry struct {
	requestID   uuid.UUID
	firstSeen   time.Time
	expiresAt   time.Time
	completed   bool
	completedAt time.Time
}

// Tracker records operation sightings in a single composite-keyed map.
// All methods are tolerant of odd input: empty IDs are tracked like any
// other key, nothing panics. Callers that need guaranteed uniqueness must
// check the boolean return. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry

	maxAge    time.Duration
	opWindow  time.Duration
	now       func() time.Time
	lastSweep time.Time

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithMaxAge overrides the message-ID retention window.
func WithMaxAge(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.maxAge = d
		}
	}
}

// WithOperationWindow overrides the signature-keyed operation window.
func WithOperationWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.opWindow = d
		}
	}
}

// WithSweepInterval overrides how often the background sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.sweepInterval = d
		}
	}
}

// New creates a tracker. Call Start to enable the periodic sweep; the
// tracker also sweeps opportunistically on access either way.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		entries:       make(map[string]*entry),
		maxAge:        DefaultMaxAge,
		opWindow:      DefaultOperationWindow,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.lastSweep = t.now()
	return t
}

// Track records a message ID sighting. Returns true on the first sighting
// of (id, kind) within the retention window; false when already tracked,
// meaning the caller should abort.
func (t *Tracker) Track(id string, kind Kind) bool {
	if kind == "" {
		kind = KindMessage
	}
	return t.insert(string(kind)+":"+id, t.maxAge)
}

// TrackOperation records a signature-keyed operation (e.g. outbound
// message text) scoped to a channel, with the short operation window.
// Same first-sighting semantics as Track.
func (t *Tracker) TrackOperation(channelID string, kind Kind, signature string) bool {
	return t.insert(operationKey(channelID, kind, signature), t.opWindow)
}

// SeenOperation reports whether the signature-keyed operation is currently
// tracked and unexpired, without recording a sighting.
func (t *Tracker) SeenOperation(channelID string, kind Kind, signature string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[operationKey(channelID, kind, signature)]
	return ok && t.now().Before(e.expiresAt)
}

// Seen reports whether (id, kind) is currently tracked and unexpired.
func (t *Tracker) Seen(id string, kind Kind) bool {
	if kind == "" {
		kind = KindMessage
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[string(kind)+":"+id]
	return ok && t.now().Before(e.expiresAt)
}

// BeginRequest registers an in-flight request for an inbound message.
// Returns false if the request is already registered (duplicate handling).
func (t *Tracker) BeginRequest(channelID, messageID string) bool {
	return t.insert(requestKey(channelID, messageID), t.maxAge)
}

// CompleteRequest flips the completed flag on a registered request and
// records the completion time. Returns false when the request is unknown
// (already swept or never begun). The entry itself is write-once apart
// from this flag.
func (t *Tracker) CompleteRequest(channelID, messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[requestKey(channelID, messageID)]
	if !ok {
		return false
	}
	if !e.completed {
		e.completed = true
		e.completedAt = t.now()
		slog.Debug("request completed",
			"channel_id", channelID,
			"message_id", messageID,
			"request_id", e.requestID,
		)
	}
	return true
}

// IsCompleted reports whether a request has been completed.
func (t *Tracker) IsCompleted(channelID, messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[requestKey(channelID, messageID)]
	return ok && e.completed
}

// Size returns the number of live entries.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops all entries.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
}

// Start runs the periodic sweep until ctx-free Stop is called. Production
// uses real timers; tests drive expiry through the injected clock and the
// opportunistic sweep instead.
func (t *Tracker) Start() {
	go func() {
		ticker := time.NewTicker(t.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				removed := t.sweepLocked(t.now())
				t.mu.Unlock()
				if removed > 0 {
					slog.Debug("tracker sweep", "removed", removed)
				}
			}
		}
	}()
}

// Stop halts the periodic sweep. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) insert(key string, ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.maybeSweepLocked(now)

	if e, ok := t.entries[key]; ok && now.Before(e.expiresAt) {
		return false
	}

	t.entries[key] = &entry{
		requestID: uuid.New(),
		firstSeen: now,
		expiresAt: now.Add(ttl),
	}
	return true
}

// maybeSweepLocked sweeps at most once per sweep interval on the access
// path, so expiry works even when Start was never called.
func (t *Tracker) maybeSweepLocked(now time.Time) {
	if now.Sub(t.lastSweep) < t.sweepInterval {
		return
	}
	t.sweepLocked(now)
}

func (t *Tracker) sweepLocked(now time.Time) int {
	removed := 0
	for key, e := range t.entries {
		if now.After(e.expiresAt) {
			delete(t.entries, key)
			removed++
		}
	}
	t.lastSweep = now
	return removed
}

func requestKey(channelID, messageID string) string {
	return "req:" + channelID + ":" + messageID
}

func operationKey(channelID string, kind Kind, signature string) string {
	return "op:" + string(kind) + ":" + channelID + ":" + normalizeSignature(signature)
}

// normalizeSignature strips whitespace so reformatted echoes of the same
// outbound text still match.
func normalizeSignature(sig string) string {
	return strings.Join(strings.Fields(sig), "")
}
