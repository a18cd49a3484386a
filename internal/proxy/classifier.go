// Package proxy classifies webhook messages from third-party proxy
// systems (PluralKit-style) and resolves the real user behind them.
package proxy

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/store"
)

// Default marker patterns matched against webhook display names and
// content. Proxy systems tag their output in recognizable ways.
var defaultMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpluralkit\b`),
	regexp.MustCompile(`(?i)\btupperbox\b`),
	regexp.MustCompile(`(?i)\| *pk\b`),
	regexp.MustCompile(`(?i)\(pk\)`),
}

// UserResolver answers platform-side user lookups the classifier cannot
// make from the message alone.
type UserResolver interface {
	// IsKnownWebhookUser reports whether the author behind the webhook
	// maps to a member of the guild.
	IsKnownWebhookUser(ctx context.Context, guildID, authorName string) (userID string, ok bool)
}

// Classifier identifies proxy-system webhook traffic and maps display
// identities back to real users via recorded mappings.
type Classifier struct {
	auth     store.AuthStore
	resolver UserResolver
	markers  []*regexp.Regexp

	mu     sync.RWMutex
	ownIDs map[string]struct{} // webhook IDs this bot created
}

// NewClassifier builds a classifier. ownWebhookID registration happens
// later via RegisterOwnWebhook as the webhook cache creates handles.
func NewClassifier(auth store.AuthStore, resolver UserResolver) *Classifier {
	return &Classifier{
		auth:     auth,
		resolver: resolver,
		ownIDs:   make(map[string]struct{}),
		markers:  defaultMarkers,
	}
}

// RegisterOwnWebhook marks a webhook ID as created by this bot, so its
// messages are recognized as self-traffic rather than proxy traffic.
func (c *Classifier) RegisterOwnWebhook(webhookID string) {
	if webhookID == "" {
		return
	}
	c.mu.Lock()
	c.ownIDs[webhookID] = struct{}{}
	c.mu.Unlock()
}

// IsOwnWebhookID reports whether the webhook ID was created by this bot.
func (c *Classifier) IsOwnWebhookID(webhookID string) bool {
	if webhookID == "" {
		return false
	}
	c.mu.RLock()
	_, ok := c.ownIDs[webhookID]
	c.mu.RUnlock()
	return ok
}

// IsOwnWebhook reports whether the message was sent through one of this
// bot's webhooks.
func (c *Classifier) IsOwnWebhook(msg bus.InboundMessage) bool {
	return c.IsOwnWebhookID(msg.WebhookID)
}

// IsProxySystemWebhook reports whether the message looks like output
// from a third-party proxy system. Only real webhook messages qualify:
// a missing webhook ID is never treated as one, regardless of markers.
func (c *Classifier) IsProxySystemWebhook(msg bus.InboundMessage) bool {
	if msg.WebhookID == "" {
		return false
	}
	if c.IsOwnWebhook(msg) {
		return false
	}
	for _, re := range c.markers {
		if re.MatchString(msg.AuthorName) || re.MatchString(msg.Content) {
			return true
		}
	}
	// Webhook traffic without system tags from an unknown webhook still
	// counts: proxy systems often strip their markers per-member.
	return true
}

// identityKey builds the lookup key for a proxied display identity.
func identityKey(guildID, authorName string) string {
	return guildID + "|" + strings.ToLower(strings.TrimSpace(authorName))
}

// RealUserID resolves the real platform user behind a proxied message.
// Recorded mappings win; otherwise the platform resolver is consulted
// and a successful hit is recorded for next time.
func (c *Classifier) RealUserID(ctx context.Context, msg bus.InboundMessage) (string, bool) {
	key := identityKey(msg.GuildID, msg.AuthorName)

	if userID, ok, err := c.auth.LookupProxyIdentity(ctx, key); err == nil && ok {
		return userID, true
	} else if err != nil {
		slog.Warn("proxy identity lookup failed", "key", key, "error", err)
	}

	if c.resolver == nil {
		return "", false
	}
	userID, ok := c.resolver.IsKnownWebhookUser(ctx, msg.GuildID, msg.AuthorName)
	if !ok {
		return "", false
	}
	if err := c.auth.RecordProxyIdentity(ctx, key, userID); err != nil {
		slog.Warn("proxy identity record failed", "key", key, "error", err)
	}
	return userID, true
}

// CheckAuthentication resolves the proxied message to a real user and
// reports that user's auth state. An unresolvable identity is treated
// as unauthenticated: the synthetic webhook author ID must never be
// used as a user identity.
func (c *Classifier) CheckAuthentication(ctx context.Context, msg bus.InboundMessage) (userID string, authed bool) {
	userID, ok := c.RealUserID(ctx, msg)
	if !ok {
		return "", false
	}
	auth, found, err := c.auth.GetUserAuth(ctx, userID)
	if err != nil {
		slog.Warn("auth lookup failed", "user", userID, "error", err)
		return userID, false
	}
	return userID, found && auth.Authenticated()
}

// ShouldBypassNSFWVerification reports whether the resolved real user
// already passed age verification, letting proxied messages through the
// NSFW gate on the strength of the real user's status.
func (c *Classifier) ShouldBypassNSFWVerification(ctx context.Context, msg bus.InboundMessage) bool {
	userID, ok := c.RealUserID(ctx, msg)
	if !ok {
		return false
	}
	auth, found, err := c.auth.GetUserAuth(ctx, userID)
	if err != nil || !found {
		return false
	}
	return auth.NSFWVerified
}
