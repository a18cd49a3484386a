// Package conversation tracks which personality a user is mid-dialogue
// with, so follow-up messages route without a fresh mention.
package conversation

import (
	"context"
	"time"

	"github.com/tzurot/tzurot/internal/store"
)

// DefaultTTL is how long a conversation stays active without a new turn.
const DefaultTTL = 30 * time.Minute

// Manager layers inactivity expiry over the conversation store. Expiry
// is checked on read: stale bindings are cleared when next consulted.
type Manager struct {
	store store.ConversationStore
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(s store.ConversationStore, opts ...Option) *Manager {
	m := &Manager{store: s, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Touch records a turn between the user and personality, starting or
// refreshing the active conversation.
func (m *Manager) Touch(ctx context.Context, userID, channelID, personalityName string) error {
	return m.store.SetActive(ctx, store.ActiveConversation{
		UserID:      userID,
		ChannelID:   channelID,
		Personality: personalityName,
		UpdatedAt:   m.now(),
	})
}

// Active returns the personality the user is in conversation with in
// this channel, if the binding is still fresh.
func (m *Manager) Active(ctx context.Context, userID, channelID string) (string, bool, error) {
	conv, ok, err := m.store.GetActive(ctx, userID, channelID)
	if err != nil || !ok {
		return "", false, err
	}
	if m.now().Sub(conv.UpdatedAt) > m.ttl {
		// Stale: clear so later reads skip the store round-trip.
		if err := m.store.ClearActive(ctx, userID, channelID); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return conv.Personality, true, nil
}

// End clears the user's active conversation in the channel.
func (m *Manager) End(ctx context.Context, userID, channelID string) error {
	return m.store.ClearActive(ctx, userID, channelID)
}

// ActivateChannel binds the channel itself to a personality. Channel
// activations do not expire; they are lifted explicitly.
func (m *Manager) ActivateChannel(ctx context.Context, channelID, personalityName, activatedBy string) error {
	return m.store.Activate(ctx, store.ChannelActivation{
		ChannelID:   channelID,
		Personality: personalityName,
		ActivatedBy: activatedBy,
		ActivatedAt: m.now(),
	})
}

// ChannelActivation returns the channel-wide personality binding, if any.
func (m *Manager) ChannelActivation(ctx context.Context, channelID string) (string, bool, error) {
	act, ok, err := m.store.GetActivation(ctx, channelID)
	if err != nil || !ok {
		return "", false, err
	}
	return act.Personality, true, nil
}

// DeactivateChannel lifts the channel-wide binding.
func (m *Manager) DeactivateChannel(ctx context.Context, channelID string) error {
	return m.store.Deactivate(ctx, channelID)
}
