// Package respond turns routed interactions into personality replies:
// prompt assembly, the backend call, echo tracking, outbound publish.
package respond

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tzurot/tzurot/internal/auth"
	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/conversation"
	"github.com/tzurot/tzurot/internal/personality"
	"github.com/tzurot/tzurot/internal/providers"
	"github.com/tzurot/tzurot/internal/reference"
	"github.com/tzurot/tzurot/internal/router"
	"github.com/tzurot/tzurot/internal/store"
	"github.com/tzurot/tzurot/internal/tracker"
)

const defaultErrorReply = "Something went wrong talking to the backend. Try again in a moment."

// Responder implements router.Handler and router.Commands.
type Responder struct {
	provider      providers.Provider
	bus           bus.MessageRouter
	tracker       *tracker.Tracker
	conversations *conversation.Manager
	registry      *personality.Registry
	auth          store.AuthStore
	log           *slog.Logger
}

func New(
	provider providers.Provider,
	messageBus bus.MessageRouter,
	trk *tracker.Tracker,
	conversations *conversation.Manager,
	registry *personality.Registry,
	authStore store.AuthStore,
) *Responder {
	return &Responder{
		provider:      provider,
		bus:           messageBus,
		tracker:       trk,
		conversations: conversations,
		registry:      registry,
		auth:          authStore,
		log:           slog.Default(),
	}
}

// HandleInteraction generates and publishes the personality's reply.
func (r *Responder) HandleInteraction(ctx context.Context, in router.Interaction) {
	msg := in.Message
	p := in.Personality

	req := providers.ChatRequest{
		Model:     p.Model,
		Messages:  buildMessages(p, in.Prompt, in.Reference),
		UserToken: r.userToken(ctx, in.ActingUserID),
	}

	resp, err := r.provider.Chat(ctx, req)
	if err != nil {
		r.log.Error("backend call failed",
			"message_id", msg.ID,
			"channel_id", msg.ChannelID,
			"personality", p.Name,
			"error", err,
		)
		r.publishPersona(p, msg.ChannelID, errorReply(p))
		r.tracker.CompleteRequest(msg.ChannelID, msg.ID)
		return
	}

	// Record the outbound signature so the webhook echo of this reply is
	// recognized and dropped when it comes back through the gateway.
	r.tracker.TrackOperation(msg.ChannelID, tracker.KindBotEcho, resp.Content)

	if err := r.conversations.Touch(ctx, in.ActingUserID, msg.ChannelID, p.Name); err != nil {
		r.log.Warn("conversation touch failed",
			"user", in.ActingUserID, "channel_id", msg.ChannelID, "error", err)
	}

	r.publishPersona(p, msg.ChannelID, resp.Content)
	r.tracker.CompleteRequest(msg.ChannelID, msg.ID)
}

// HandleDenied tells the user why nothing answered.
func (r *Responder) HandleDenied(_ context.Context, msg bus.InboundMessage, d auth.Decision) {
	r.bus.PublishOutbound(bus.OutboundMessage{
		ChannelID: msg.ChannelID,
		Content:   d.Reason,
	})
}

func (r *Responder) publishPersona(p personality.Personality, channelID, content string) {
	r.bus.PublishOutbound(bus.OutboundMessage{
		ChannelID:   channelID,
		Content:     content,
		PersonaName: p.EffectiveDisplayName(),
		AvatarURL:   p.AvatarURL,
	})
}

func (r *Responder) userToken(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	a, ok, err := r.auth.GetUserAuth(ctx, userID)
	if err != nil || !ok {
		return ""
	}
	return a.Token
}

// buildMessages assembles the chat transcript: system prompt, then
// referenced context as conversation history, then the user's prompt.
func buildMessages(p personality.Personality, prompt string, ref *reference.Resolution) []providers.Message {
	msgs := make([]providers.Message, 0, 4)
	if p.SystemPrompt != "" {
		msgs = append(msgs, providers.Message{Role: "system", Content: p.SystemPrompt})
	}

	if ref != nil {
		if ref.Nested != nil && ref.Nested.Referenced.Content != "" {
			msgs = append(msgs, providers.Message{
				Role:    "user",
				Content: fmt.Sprintf("[earlier message from %s] %s", ref.Nested.Referenced.AuthorName, ref.Nested.Referenced.Content),
			})
		}
		if ref.IsPersonalityMessage {
			msgs = append(msgs, providers.Message{Role: "assistant", Content: ref.Referenced.Content})
		} else if ref.Referenced.Content != "" {
			msgs = append(msgs, providers.Message{
				Role:    "user",
				Content: fmt.Sprintf("[replying to %s] %s", ref.Referenced.AuthorName, ref.Referenced.Content),
			})
		}
	}

	msgs = append(msgs, providers.Message{Role: "user", Content: prompt})
	return msgs
}

func errorReply(p personality.Personality) string {
	if p.ErrorMessage != "" {
		return p.ErrorMessage
	}
	return defaultErrorReply
}
