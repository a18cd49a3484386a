// Package reference resolves reply chains: when a message replies to
// another, the resolver fetches the referenced message and determines
// whether it was spoken by one of the bot's personalities.
package reference

import (
	"context"
	"log/slog"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/personality"
)

// FetchedMessage is the subset of a platform message the resolver needs.
type FetchedMessage struct {
	ID           string
	ChannelID    string
	AuthorID     string
	AuthorName   string
	AuthorIsBot  bool
	WebhookID    string
	Content      string
	ReferencedID string
}

// MessageFetcher retrieves a message by channel and ID from the platform.
type MessageFetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (FetchedMessage, error)
}

// PersonaResolver maps a display name or alias back to a personality.
// The in-memory registry satisfies this.
type PersonaResolver interface {
	ResolveAlias(alias string) (personality.Personality, bool)
}

// WebhookChecker reports whether a webhook ID belongs to this bot.
type WebhookChecker interface {
	IsOwnWebhookID(webhookID string) bool
}

// Resolution is the structured context extracted from a reply chain.
// The original message content is never rewritten; callers attach this
// alongside it.
type Resolution struct {
	Referenced           FetchedMessage
	IsPersonalityMessage bool
	PersonalityName      string
	Nested               *Resolution
}

// Resolver walks reply references, at most one nested level deep.
type Resolver struct {
	fetcher  MessageFetcher
	personas PersonaResolver
	webhooks WebhookChecker
}

func NewResolver(fetcher MessageFetcher, personas PersonaResolver, webhooks WebhookChecker) *Resolver {
	return &Resolver{fetcher: fetcher, personas: personas, webhooks: webhooks}
}

// Resolve fetches the message msg replies to. Fetch failures are logged
// and swallowed: a broken reference degrades to "no reference", the
// message itself still routes.
func (r *Resolver) Resolve(ctx context.Context, msg bus.InboundMessage) *Resolution {
	if !msg.IsReply() {
		return nil
	}
	res := r.resolveOne(ctx, msg.ChannelID, msg.ReferencedID)
	if res == nil {
		return nil
	}

	// One nested level: if the referenced message itself is a reply,
	// resolve its target too, without recursing further.
	if res.Referenced.ReferencedID != "" {
		res.Nested = r.resolveOne(ctx, res.Referenced.ChannelID, res.Referenced.ReferencedID)
	}
	return res
}

func (r *Resolver) resolveOne(ctx context.Context, channelID, messageID string) *Resolution {
	fetched, err := r.fetcher.FetchMessage(ctx, channelID, messageID)
	if err != nil {
		slog.Warn("referenced message fetch failed",
			"channel", channelID, "message", messageID, "error", err)
		return nil
	}

	res := &Resolution{Referenced: fetched}
	if r.isOwnWebhook(fetched.WebhookID) {
		if p, ok := r.personas.ResolveAlias(fetched.AuthorName); ok {
			res.IsPersonalityMessage = true
			res.PersonalityName = p.Name
		}
	}
	return res
}

func (r *Resolver) isOwnWebhook(webhookID string) bool {
	return webhookID != "" && r.webhooks != nil && r.webhooks.IsOwnWebhookID(webhookID)
}
