package discord

import (
	"context"
	"strings"
	"testing"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/tracker"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"short message", "hello", 1},
		{"exactly at limit", strings.Repeat("a", maxMessageLen), 1},
		{"just over limit", strings.Repeat("a", maxMessageLen+1), 2},
		{"three chunks", strings.Repeat("a", 2*maxMessageLen+5), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitChunks(tt.content)
			if len(chunks) != tt.want {
				t.Fatalf("chunks = %d, want %d", len(chunks), tt.want)
			}
			var total int
			for _, ch := range chunks {
				if len(ch) > maxMessageLen {
					t.Errorf("chunk of %d chars exceeds the limit", len(ch))
				}
				total += len(ch)
			}
			if total != len(tt.content) {
				t.Errorf("chunks lose content: %d of %d chars", total, len(tt.content))
			}
		})
	}
}

func TestSplitChunksPrefersNewlineBreak(t *testing.T) {
	head := strings.Repeat("a", 1500) + "\n"
	content := head + strings.Repeat("b", 1000)

	chunks := splitChunks(content)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0] != head {
		t.Errorf("first chunk did not break at the newline (len %d)", len(chunks[0]))
	}
}

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	c, err := New(Config{Token: "test-token", BotName: "Tzurot"},
		bus.New(), tracker.New())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestTrackedSendWhileStopped(t *testing.T) {
	c := newTestChannel(t)

	_, err := c.TrackedSend(context.Background(), bus.OutboundMessage{
		ChannelID: "chan-1", Content: "hi",
	})
	if err == nil {
		t.Fatal("send on a stopped adapter should fail")
	}
}

func TestTrackedSendEmptyContent(t *testing.T) {
	c := newTestChannel(t)
	c.SetRunning(true)

	res, err := c.TrackedSend(context.Background(), bus.OutboundMessage{ChannelID: "chan-1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent || res.Reason != "empty content" {
		t.Errorf("result = %+v", res)
	}
}

func TestTrackedSendSuppressesDuplicate(t *testing.T) {
	c := newTestChannel(t)
	c.SetRunning(true)

	// The signature was already delivered moments ago.
	c.tracker.TrackOperation("chan-1", tracker.KindSend, "Cold|the ice holds")

	res, err := c.TrackedSend(context.Background(), bus.OutboundMessage{
		ChannelID: "chan-1", Content: "the ice holds", PersonaName: "Cold",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent || res.Reason != "duplicate send suppressed" {
		t.Errorf("result = %+v", res)
	}
}
