package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/tracker"
	"github.com/tzurot/tzurot/internal/webhook"
)

// maxMessageLen is Discord's message length limit.
const maxMessageLen = 2000

// SendResult reports what a tracked send did. A suppressed send is not
// an error: the wrapper's whole point is refusing to deliver the same
// content twice.
type SendResult struct {
	Sent      bool
	MessageID string // first delivered message's ID when Sent
	Reason    string // why nothing was sent
}

// Send implements channels.Channel.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, err := c.TrackedSend(ctx, msg)
	return err
}

// TrackedSend delivers an outbound message once: the content signature
// is registered with the tracker and a repeat within the operation
// window is suppressed rather than delivered again.
func (c *Channel) TrackedSend(ctx context.Context, msg bus.OutboundMessage) (SendResult, error) {
	if !c.IsRunning() {
		return SendResult{}, fmt.Errorf("discord adapter not running")
	}
	if msg.ChannelID == "" {
		return SendResult{}, fmt.Errorf("empty channel id for discord send")
	}
	if msg.Content == "" {
		return SendResult{Reason: "empty content"}, nil
	}

	signature := msg.PersonaName + "|" + msg.Content
	if !c.tracker.TrackOperation(msg.ChannelID, tracker.KindSend, signature) {
		slog.Debug("duplicate send suppressed",
			"channel_id", msg.ChannelID, "persona", msg.PersonaName)
		return SendResult{Reason: "duplicate send suppressed"}, nil
	}

	if msg.PersonaName == "" {
		return c.sendPlain(msg.ChannelID, msg.Content)
	}
	return c.sendAsPersona(ctx, msg)
}

// sendAsPersona delivers through the channel's impersonation webhook,
// chunked at the platform limit.
func (c *Channel) sendAsPersona(ctx context.Context, msg bus.OutboundMessage) (SendResult, error) {
	info := webhook.ChannelInfo{ID: msg.ChannelID}
	if ch := c.channelState(msg.ChannelID); ch != nil {
		info = webhook.ChannelInfo{
			ID:       ch.ID,
			GuildID:  ch.GuildID,
			ParentID: ch.ParentID,
			IsThread: ch.IsThread(),
			NSFW:     ch.NSFW,
		}
	}

	handle, err := c.webhooks.GetOrCreate(ctx, info)
	if err != nil {
		return SendResult{}, fmt.Errorf("webhook for %s: %w", msg.ChannelID, err)
	}

	result := SendResult{Sent: true}
	for _, chunk := range splitChunks(msg.Content) {
		params := &discordgo.WebhookParams{
			Content:   chunk,
			Username:  msg.PersonaName,
			AvatarURL: msg.AvatarURL,
		}

		var sent *discordgo.Message
		if handle.ChannelID != handle.TargetChannelID {
			// Thread: the webhook belongs to the parent channel.
			sent, err = c.session.WebhookThreadExecute(handle.WebhookID, handle.Token, true, handle.ChannelID, params)
		} else {
			sent, err = c.session.WebhookExecute(handle.WebhookID, handle.Token, true, params)
		}
		if err != nil {
			return SendResult{}, fmt.Errorf("webhook execute in %s: %w", msg.ChannelID, err)
		}
		if result.MessageID == "" && sent != nil {
			result.MessageID = sent.ID
		}
	}
	return result, nil
}

// sendPlain delivers as the bot account, chunked at the platform limit.
func (c *Channel) sendPlain(channelID, content string) (SendResult, error) {
	result := SendResult{Sent: true}
	for _, chunk := range splitChunks(content) {
		sent, err := c.session.ChannelMessageSend(channelID, chunk)
		if err != nil {
			return SendResult{}, fmt.Errorf("send discord message: %w", err)
		}
		if result.MessageID == "" && sent != nil {
			result.MessageID = sent.ID
		}
	}
	return result, nil
}

// splitChunks splits content at the platform limit, preferring to break
// at a newline in the back half of the chunk.
func splitChunks(content string) []string {
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxMessageLen {
			chunks = append(chunks, content)
			break
		}
		cutAt := maxMessageLen
		if idx := lastIndexByte(content[:maxMessageLen], '\n'); idx > maxMessageLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, content[:cutAt])
		content = content[cutAt:]
	}
	return chunks
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
