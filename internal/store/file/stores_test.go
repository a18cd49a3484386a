package file

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tzurot/tzurot/internal/personality"
	"github.com/tzurot/tzurot/internal/store"
)

func TestPersonalityStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "personalities.json")

	s, err := NewPersonalityStore(path)
	if err != nil {
		t.Fatal(err)
	}

	p := personality.Personality{
		Name:        "cold-kerach-batuach",
		DisplayName: "Cold",
		Aliases:     []string{"cold", "kerach"},
		Model:       "gpt-4o-mini",
	}
	if err := s.Upsert(ctx, p); err != nil {
		t.Fatal(err)
	}

	// Survives a fresh open from the same file.
	reopened, err := NewPersonalityStore(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := reopened.Get(ctx, "cold-kerach-batuach")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got.DisplayName != "Cold" || len(got.Aliases) != 2 {
		t.Errorf("round trip mangled personality: %+v", got)
	}

	if err := reopened.Delete(ctx, "cold-kerach-batuach"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := reopened.Get(ctx, "cold-kerach-batuach"); ok {
		t.Error("personality still present after delete")
	}
}

func TestPersonalityStoreRejectsEmptyName(t *testing.T) {
	s, err := NewPersonalityStore(filepath.Join(t.TempDir(), "p.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(context.Background(), personality.Personality{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestAuthStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.json")

	s, err := NewAuthStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetUserAuth(ctx, store.UserAuth{
		UserID:       "user-1",
		Token:        "tok",
		NSFWVerified: true,
		VerifiedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordProxyIdentity(ctx, "guild-1|alice | pk", "user-1"); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewAuthStore(path)
	if err != nil {
		t.Fatal(err)
	}
	auth, ok, err := reopened.GetUserAuth(ctx, "user-1")
	if err != nil || !ok {
		t.Fatalf("GetUserAuth after reopen: ok=%v err=%v", ok, err)
	}
	if !auth.Authenticated() || !auth.NSFWVerified {
		t.Errorf("auth state lost: %+v", auth)
	}
	userID, ok, _ := reopened.LookupProxyIdentity(ctx, "guild-1|alice | pk")
	if !ok || userID != "user-1" {
		t.Errorf("proxy mapping lost: %q, %v", userID, ok)
	}

	if err := reopened.RevokeUserAuth(ctx, "user-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := reopened.GetUserAuth(ctx, "user-1"); ok {
		t.Error("auth still present after revoke")
	}
}

func TestConversationStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "conversations.json")

	s, err := NewConversationStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetActive(ctx, store.ActiveConversation{
		UserID:      "user-1",
		ChannelID:   "chan-1",
		Personality: "cold-kerach-batuach",
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Activate(ctx, store.ChannelActivation{
		ChannelID:   "chan-2",
		Personality: "lilith-tzel-shani",
		ActivatedBy: "user-1",
		ActivatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewConversationStore(path)
	if err != nil {
		t.Fatal(err)
	}
	conv, ok, _ := reopened.GetActive(ctx, "user-1", "chan-1")
	if !ok || conv.Personality != "cold-kerach-batuach" {
		t.Errorf("active conversation lost: %+v, %v", conv, ok)
	}
	act, ok, _ := reopened.GetActivation(ctx, "chan-2")
	if !ok || act.Personality != "lilith-tzel-shani" {
		t.Errorf("activation lost: %+v, %v", act, ok)
	}

	if err := reopened.ClearActive(ctx, "user-1", "chan-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := reopened.GetActive(ctx, "user-1", "chan-1"); ok {
		t.Error("conversation still present after clear")
	}
	if err := reopened.Deactivate(ctx, "chan-2"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := reopened.GetActivation(ctx, "chan-2"); ok {
		t.Error("activation still present after deactivate")
	}
}

func TestFileStoresFactory(t *testing.T) {
	dir := t.TempDir()
	stores, err := NewFileStores(store.StoreConfig{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if stores.Personalities == nil || stores.Auth == nil || stores.Conversations == nil {
		t.Fatal("factory returned nil store")
	}

	list, err := stores.Personalities.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("fresh data dir should have no personalities, got %d", len(list))
	}
}
