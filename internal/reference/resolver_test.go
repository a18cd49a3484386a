package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/personality"
)

type fakeFetcher struct {
	messages map[string]FetchedMessage
	errs     map[string]error
	calls    int
}

func (f *fakeFetcher) FetchMessage(_ context.Context, _, messageID string) (FetchedMessage, error) {
	f.calls++
	if err, ok := f.errs[messageID]; ok {
		return FetchedMessage{}, err
	}
	m, ok := f.messages[messageID]
	if !ok {
		return FetchedMessage{}, errors.New("not found")
	}
	return m, nil
}

type fakePersonas map[string]string

func (f fakePersonas) ResolveAlias(alias string) (personality.Personality, bool) {
	name, ok := f[alias]
	return personality.Personality{Name: name}, ok
}

type fakeWebhooks map[string]bool

func (f fakeWebhooks) IsOwnWebhookID(id string) bool { return f[id] }

func replyTo(refID string) bus.InboundMessage {
	return bus.InboundMessage{
		ID:           "msg-1",
		ChannelID:    "chan-1",
		AuthorID:     "user-1",
		Content:      "what did you mean?",
		ReferencedID: refID,
	}
}

func TestResolveNonReply(t *testing.T) {
	r := NewResolver(&fakeFetcher{}, fakePersonas{}, fakeWebhooks{})
	if got := r.Resolve(context.Background(), bus.InboundMessage{ID: "m", Content: "hi"}); got != nil {
		t.Errorf("non-reply resolved to %+v, want nil", got)
	}
}

func TestResolvePersonalityMessage(t *testing.T) {
	fetcher := &fakeFetcher{messages: map[string]FetchedMessage{
		"ref-1": {ID: "ref-1", ChannelID: "chan-1", AuthorName: "Cold", WebhookID: "wh-own", Content: "ice holds"},
	}}
	r := NewResolver(fetcher,
		fakePersonas{"Cold": "cold-kerach-batuach"},
		fakeWebhooks{"wh-own": true})

	res := r.Resolve(context.Background(), replyTo("ref-1"))
	if res == nil {
		t.Fatal("expected resolution")
	}
	if !res.IsPersonalityMessage || res.PersonalityName != "cold-kerach-batuach" {
		t.Errorf("got personality=%v name=%q", res.IsPersonalityMessage, res.PersonalityName)
	}
	if res.Referenced.Content != "ice holds" {
		t.Errorf("referenced content = %q", res.Referenced.Content)
	}
}

func TestResolveForeignWebhookNotPersonality(t *testing.T) {
	fetcher := &fakeFetcher{messages: map[string]FetchedMessage{
		"ref-1": {ID: "ref-1", ChannelID: "chan-1", AuthorName: "Cold", WebhookID: "wh-foreign", Content: "hi"},
	}}
	r := NewResolver(fetcher,
		fakePersonas{"Cold": "cold-kerach-batuach"},
		fakeWebhooks{"wh-own": true})

	res := r.Resolve(context.Background(), replyTo("ref-1"))
	if res == nil {
		t.Fatal("expected resolution")
	}
	if res.IsPersonalityMessage {
		t.Error("foreign webhook message classified as personality message")
	}
}

func TestResolveFetchErrorSwallowed(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"ref-1": errors.New("403")}}
	r := NewResolver(fetcher, fakePersonas{}, fakeWebhooks{})

	if got := r.Resolve(context.Background(), replyTo("ref-1")); got != nil {
		t.Errorf("fetch failure resolved to %+v, want nil", got)
	}
}

func TestResolveNestedOneLevelOnly(t *testing.T) {
	fetcher := &fakeFetcher{messages: map[string]FetchedMessage{
		"ref-1": {ID: "ref-1", ChannelID: "chan-1", Content: "middle", ReferencedID: "ref-2"},
		"ref-2": {ID: "ref-2", ChannelID: "chan-1", AuthorName: "Cold", WebhookID: "wh-own", Content: "origin", ReferencedID: "ref-3"},
		"ref-3": {ID: "ref-3", ChannelID: "chan-1", Content: "too deep"},
	}}
	r := NewResolver(fetcher,
		fakePersonas{"Cold": "cold-kerach-batuach"},
		fakeWebhooks{"wh-own": true})

	res := r.Resolve(context.Background(), replyTo("ref-1"))
	if res == nil || res.Nested == nil {
		t.Fatal("expected nested resolution")
	}
	if res.Nested.PersonalityName != "cold-kerach-batuach" {
		t.Errorf("nested personality = %q", res.Nested.PersonalityName)
	}
	if res.Nested.Nested != nil {
		t.Error("resolution went deeper than one nested level")
	}
	if fetcher.calls != 2 {
		t.Errorf("fetcher called %d times, want 2", fetcher.calls)
	}
}

func TestResolveNestedFetchErrorDegrades(t *testing.T) {
	fetcher := &fakeFetcher{
		messages: map[string]FetchedMessage{
			"ref-1": {ID: "ref-1", ChannelID: "chan-1", Content: "middle", ReferencedID: "ref-2"},
		},
		errs: map[string]error{"ref-2": errors.New("deleted")},
	}
	r := NewResolver(fetcher, fakePersonas{}, fakeWebhooks{})

	res := r.Resolve(context.Background(), replyTo("ref-1"))
	if res == nil {
		t.Fatal("expected top-level resolution despite nested failure")
	}
	if res.Nested != nil {
		t.Error("failed nested fetch should leave Nested nil")
	}
}
