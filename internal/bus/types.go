package bus

import (
	"context"
	"time"
)

// InboundMessage is the normalized view of a platform message event.
// Immutable once received: the pipeline only reads it.
type InboundMessage struct {
	ID             string            `json:"id"`
	ChannelID      string            `json:"channel_id"`
	GuildID        string            `json:"guild_id,omitempty"` // empty for direct messages
	AuthorID       string            `json:"author_id"`
	AuthorName     string            `json:"author_name"`
	AuthorIsBot    bool              `json:"author_is_bot"`
	WebhookID      string            `json:"webhook_id,omitempty"`
	Content        string            `json:"content"`
	ReferencedID   string            `json:"referenced_id,omitempty"` // reply target message ID
	NSFWChannel    bool              `json:"nsfw_channel"`
	ThreadParentID string            `json:"thread_parent_id,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// IsDM reports whether the message arrived outside any guild.
func (m *InboundMessage) IsDM() bool { return m.GuildID == "" }

// IsReply reports whether the message references another message.
func (m *InboundMessage) IsReply() bool { return m.ReferencedID != "" }

// OutboundMessage is a message to deliver to the platform, impersonating
// a personality via webhook when PersonaName is set.
type OutboundMessage struct {
	ChannelID   string            `json:"channel_id"`
	Content     string            `json:"content"`
	PersonaName string            `json:"persona_name,omitempty"`
	AvatarURL   string            `json:"avatar_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MessageRouter abstracts inbound/outbound message routing between the
// platform adapter and the interaction runtime.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
