package auth

import (
	"context"
	"testing"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/personality"
	"github.com/tzurot/tzurot/internal/proxy"
	"github.com/tzurot/tzurot/internal/store"
)

type memAuthStore struct {
	users   map[string]store.UserAuth
	proxies map[string]string
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{
		users:   make(map[string]store.UserAuth),
		proxies: make(map[string]string),
	}
}

func (m *memAuthStore) GetUserAuth(_ context.Context, userID string) (store.UserAuth, bool, error) {
	a, ok := m.users[userID]
	return a, ok, nil
}

func (m *memAuthStore) SetUserAuth(_ context.Context, auth store.UserAuth) error {
	m.users[auth.UserID] = auth
	return nil
}

func (m *memAuthStore) RevokeUserAuth(_ context.Context, userID string) error {
	delete(m.users, userID)
	return nil
}

func (m *memAuthStore) RecordProxyIdentity(_ context.Context, key, userID string) error {
	m.proxies[key] = userID
	return nil
}

func (m *memAuthStore) LookupProxyIdentity(_ context.Context, key string) (string, bool, error) {
	id, ok := m.proxies[key]
	return id, ok, nil
}

var (
	sfwPersona  = personality.Personality{Name: "cold-kerach-batuach"}
	nsfwPersona = personality.Personality{Name: "lilith-tzel-shani", NSFW: true}
)

func directMsg(userID string) bus.InboundMessage {
	return bus.InboundMessage{ID: "m1", ChannelID: "dm-1", AuthorID: userID, Content: "hi"}
}

func guildMsg(userID string, nsfw bool) bus.InboundMessage {
	return bus.InboundMessage{
		ID: "m1", ChannelID: "chan-1", GuildID: "guild-1",
		AuthorID: userID, Content: "hi", NSFWChannel: nsfw,
	}
}

func TestGateRequiresAuthentication(t *testing.T) {
	g := NewGate(newMemAuthStore(), nil)

	d := g.Check(context.Background(), guildMsg("user-1", false), sfwPersona)
	if d.Allowed {
		t.Fatal("unauthenticated user allowed")
	}
	if d.Reason != ReasonNotAuthenticated {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestGateAllowsAuthenticatedUser(t *testing.T) {
	s := newMemAuthStore()
	s.users["user-1"] = store.UserAuth{UserID: "user-1", Token: "tok"}
	g := NewGate(s, nil)

	d := g.Check(context.Background(), guildMsg("user-1", false), sfwPersona)
	if !d.Allowed {
		t.Fatalf("authenticated user denied: %s", d.Reason)
	}
	if d.UserID != "user-1" || d.IsDM || d.IsProxy || d.IsNSFWChannel {
		t.Errorf("decision flags wrong: %+v", d)
	}
}

func TestGateNSFWPersonalityChannels(t *testing.T) {
	s := newMemAuthStore()
	s.users["user-1"] = store.UserAuth{UserID: "user-1", Token: "tok", NSFWVerified: true}
	g := NewGate(s, nil)

	tests := []struct {
		name   string
		msg    bus.InboundMessage
		want   bool
		reason string
	}{
		{"sfw channel denied", guildMsg("user-1", false), false, ReasonNSFWChannelOnly},
		{"nsfw channel allowed", guildMsg("user-1", true), true, ""},
		{"dm allowed", directMsg("user-1"), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Check(context.Background(), tt.msg, nsfwPersona)
			if d.Allowed != tt.want {
				t.Errorf("Allowed = %v, want %v (reason %q)", d.Allowed, tt.want, d.Reason)
			}
			if !tt.want && d.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestGateNSFWChannelRequiresVerification(t *testing.T) {
	s := newMemAuthStore()
	s.users["user-1"] = store.UserAuth{UserID: "user-1", Token: "tok"}
	g := NewGate(s, nil)

	d := g.Check(context.Background(), guildMsg("user-1", true), sfwPersona)
	if d.Allowed {
		t.Fatal("unverified user allowed in NSFW channel")
	}
	if d.Reason != ReasonNSFWVerification {
		t.Errorf("reason = %q", d.Reason)
	}

	s.users["user-1"] = store.UserAuth{UserID: "user-1", Token: "tok", NSFWVerified: true}
	if d := g.Check(context.Background(), guildMsg("user-1", true), sfwPersona); !d.Allowed {
		t.Errorf("verification change not picked up on next message: %s", d.Reason)
	}
}

func TestGateProxyResolvesRealUser(t *testing.T) {
	s := newMemAuthStore()
	s.users["user-real"] = store.UserAuth{UserID: "user-real", Token: "tok", NSFWVerified: true}
	classifier := proxy.NewClassifier(s, nil)
	g := NewGate(s, classifier)

	msg := bus.InboundMessage{
		ID: "m1", ChannelID: "chan-1", GuildID: "guild-1",
		AuthorID: "synthetic", AuthorName: "Alice | PK",
		WebhookID: "wh-77", Content: "hi", NSFWChannel: true,
	}

	// No mapping yet: denied, never falling back to the synthetic ID.
	d := g.Check(context.Background(), msg, sfwPersona)
	if d.Allowed || d.Reason != ReasonUnresolvedProxy {
		t.Fatalf("unresolved proxy decision: %+v", d)
	}

	s.RecordProxyIdentity(context.Background(), "guild-1|alice | pk", "user-real")
	d = g.Check(context.Background(), msg, sfwPersona)
	if !d.Allowed {
		t.Fatalf("resolved proxy denied: %s", d.Reason)
	}
	if d.UserID != "user-real" || !d.IsProxy {
		t.Errorf("decision = %+v", d)
	}
}

func TestGateRevocationTakesEffectImmediately(t *testing.T) {
	s := newMemAuthStore()
	s.users["user-1"] = store.UserAuth{UserID: "user-1", Token: "tok"}
	g := NewGate(s, nil)

	if d := g.Check(context.Background(), guildMsg("user-1", false), sfwPersona); !d.Allowed {
		t.Fatalf("setup: %s", d.Reason)
	}

	s.RevokeUserAuth(context.Background(), "user-1")
	if d := g.Check(context.Background(), guildMsg("user-1", false), sfwPersona); d.Allowed {
		t.Error("revoked user still allowed")
	}
}
