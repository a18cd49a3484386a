// Package discord adapts the Discord gateway to the message bus:
// inbound events are normalized, outbound replies are delivered through
// impersonation webhooks.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/channels"
	"github.com/tzurot/tzurot/internal/reference"
	"github.com/tzurot/tzurot/internal/tracker"
	"github.com/tzurot/tzurot/internal/webhook"
)

// Config carries the adapter's construction inputs.
type Config struct {
	Token   string
	BotName string // name given to impersonation webhooks
}

// Channel is the Discord platform adapter.
type Channel struct {
	*channels.BaseChannel
	session  *discordgo.Session
	config   Config
	tracker  *tracker.Tracker
	webhooks *webhook.Cache

	botUserID string

	// deleteListener is invoked for platform message deletions, so
	// pending delayed dispatches can observe them. Registered after
	// construction and read from discordgo's event goroutines, hence
	// the lock.
	listenerMu     sync.RWMutex
	deleteListener func(messageID string)
}

// New creates the adapter. The webhook cache is built here so its parent
// resolution and API calls share the session.
func New(cfg Config, msgBus bus.MessageRouter, trk *tracker.Tracker, webhookOpts ...webhook.CacheOption) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	c := &Channel{
		BaseChannel: channels.NewBaseChannel("discord", msgBus),
		session:     session,
		config:      cfg,
		tracker:     trk,
	}

	c.webhooks = webhook.NewCache(
		&sessionAPI{session: session},
		newWebhookClient(session),
		newParentResolver(session),
		cfg.BotName,
		webhookOpts...,
	)
	return c, nil
}

// Webhooks exposes the adapter's webhook cache for wiring (own-webhook
// registration, shutdown cleanup).
func (c *Channel) Webhooks() *webhook.Cache { return c.webhooks }

// SetDeleteListener registers the message-deletion callback. Safe to
// call while the gateway connection is live; deletions arriving before
// registration are dropped.
func (c *Channel) SetDeleteListener(fn func(messageID string)) {
	c.listenerMu.Lock()
	c.deleteListener = fn
	c.listenerMu.Unlock()
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting discord adapter")

	c.session.AddHandler(c.handleMessageCreate)
	c.session.AddHandler(c.handleMessageDelete)
	c.session.AddHandler(c.handleChannelDelete)
	c.session.AddHandler(c.handleThreadDelete)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord adapter connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection and destroys cached webhooks.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord adapter")
	c.SetRunning(false)
	c.webhooks.ClearAll()
	return c.session.Close()
}

// BotUserID returns the connected bot account's user ID.
func (c *Channel) BotUserID() string { return c.botUserID }

// handleMessageCreate normalizes a gateway message event onto the bus.
func (c *Channel) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	msg := bus.InboundMessage{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		AuthorID:    m.Author.ID,
		AuthorName:  resolveDisplayName(m),
		AuthorIsBot: m.Author.Bot,
		WebhookID:   m.WebhookID,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
	}
	if m.MessageReference != nil {
		msg.ReferencedID = m.MessageReference.MessageID
	}

	if ch := c.channelState(m.ChannelID); ch != nil {
		msg.NSFWChannel = ch.NSFW
		if ch.IsThread() {
			msg.ThreadParentID = ch.ParentID
		}
	}

	c.Bus().PublishInbound(msg)
}

func (c *Channel) handleMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	c.listenerMu.RLock()
	fn := c.deleteListener
	c.listenerMu.RUnlock()
	if fn != nil {
		fn(m.ID)
	}
}

// handleChannelDelete evicts the deleted channel's webhook handle.
func (c *Channel) handleChannelDelete(_ *discordgo.Session, ev *discordgo.ChannelDelete) {
	c.webhooks.Clear(ev.ID)
}

func (c *Channel) handleThreadDelete(_ *discordgo.Session, ev *discordgo.ThreadDelete) {
	c.webhooks.Clear(ev.ID)
}

// channelState returns channel metadata, preferring the gateway state
// cache over a REST call.
func (c *Channel) channelState(channelID string) *discordgo.Channel {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch
	}
	ch, err := c.session.Channel(channelID)
	if err != nil {
		slog.Warn("channel fetch failed", "channel_id", channelID, "error", err)
		return nil
	}
	return ch
}

// FetchMessage implements reference.MessageFetcher.
func (c *Channel) FetchMessage(_ context.Context, channelID, messageID string) (reference.FetchedMessage, error) {
	m, err := c.session.ChannelMessage(channelID, messageID)
	if err != nil {
		return reference.FetchedMessage{}, fmt.Errorf("fetch message %s: %w", messageID, err)
	}

	fetched := reference.FetchedMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		WebhookID: m.WebhookID,
		Content:   m.Content,
	}
	if m.Author != nil {
		fetched.AuthorID = m.Author.ID
		fetched.AuthorName = m.Author.Username
		fetched.AuthorIsBot = m.Author.Bot
	}
	if m.MessageReference != nil {
		fetched.ReferencedID = m.MessageReference.MessageID
	}
	return fetched, nil
}

// IsKnownWebhookUser implements proxy.UserResolver: a proxied display
// name maps to a guild member when the member search finds a matching
// nick or username.
func (c *Channel) IsKnownWebhookUser(_ context.Context, guildID, authorName string) (string, bool) {
	query := authorName
	if idx := strings.IndexAny(query, "|("); idx > 0 {
		query = strings.TrimSpace(query[:idx])
	}
	if query == "" || guildID == "" {
		return "", false
	}

	members, err := c.session.GuildMembersSearch(guildID, query, 5)
	if err != nil {
		slog.Warn("guild member search failed", "guild_id", guildID, "error", err)
		return "", false
	}
	for _, member := range members {
		if member.User == nil {
			continue
		}
		if strings.EqualFold(member.Nick, query) || strings.EqualFold(member.User.Username, query) {
			return member.User.ID, true
		}
	}
	return "", false
}

func resolveDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
