// Package router decides which handler, if any, processes an inbound
// message. The pipeline is a fixed sequence of gates; the first gate
// that accepts is terminal.
package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tzurot/tzurot/internal/auth"
	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/conversation"
	"github.com/tzurot/tzurot/internal/dedup"
	"github.com/tzurot/tzurot/internal/personality"
	"github.com/tzurot/tzurot/internal/proxy"
	"github.com/tzurot/tzurot/internal/reference"
	"github.com/tzurot/tzurot/internal/tracker"
)

// DefaultMentionDelay is how long guild mention dispatch waits for a
// cooperating proxy system's webhook resend to land first.
const DefaultMentionDelay = 2500 * time.Millisecond

// Trigger names which gate accepted a message.
type Trigger string

const (
	TriggerDMReply      Trigger = "dm-reply"
	TriggerMention      Trigger = "mention"
	TriggerReference    Trigger = "reference"
	TriggerConversation Trigger = "conversation"
	TriggerActivation   Trigger = "activation"
	TriggerDMDefault    Trigger = "dm-default"
)

// Action summarizes the pipeline outcome for one message.
type Action string

const (
	ActionIgnoredSelf Action = "ignored-self"
	ActionIgnoredBot  Action = "ignored-bot"
	ActionDuplicate   Action = "duplicate"
	ActionCommand     Action = "command"
	ActionDispatched  Action = "dispatched"
	ActionScheduled   Action = "scheduled"
	ActionDenied      Action = "denied"
	ActionNoRoute     Action = "no-route"
)

// Outcome reports what the pipeline did with a message.
type Outcome struct {
	Action      Action
	Trigger     Trigger
	Personality string
	Reason      string
}

// Interaction is the resolved tuple handed to the interaction handler.
type Interaction struct {
	Message      bus.InboundMessage
	Personality  personality.Personality
	ActingUserID string
	Trigger      Trigger
	Prompt       string // content with any mention stripped
	Reference    *reference.Resolution
}

// Handler consumes accepted interactions and authorization denials.
type Handler interface {
	HandleInteraction(ctx context.Context, in Interaction)
	HandleDenied(ctx context.Context, msg bus.InboundMessage, d auth.Decision)
}

// Commands receives messages that start with the command prefix,
// already stripped of it.
type Commands interface {
	HandleCommand(ctx context.Context, msg bus.InboundMessage, args []string)
}

// Router runs the routing decision pipeline.
type Router struct {
	botUserID      string
	prefix         string
	defaultPersona string
	allowedBots    map[string]struct{}

	tracker       *tracker.Tracker
	dedup         *dedup.Cache
	registry      *personality.Registry
	classifier    *proxy.Classifier
	references    *reference.Resolver
	conversations *conversation.Manager
	gate          *auth.Gate
	handler       Handler
	commands      Commands

	mentionDelay time.Duration
	after        func(d time.Duration, f func())

	log *slog.Logger
}

// Config carries the router's construction inputs.
type Config struct {
	BotUserID          string
	CommandPrefix      string
	DefaultPersonality string   // DM fallthrough target, may be empty
	AllowedBots        []string // bot user IDs exempt from the bot filter
	MentionDelay       time.Duration

	Tracker       *tracker.Tracker
	Dedup         *dedup.Cache
	Registry      *personality.Registry
	Classifier    *proxy.Classifier
	References    *reference.Resolver
	Conversations *conversation.Manager
	Gate          *auth.Gate
	Handler       Handler
	Commands      Commands
}

// Option configures a Router beyond its Config.
type Option func(*Router)

// WithAfter injects the delayed-dispatch scheduler for tests.
func WithAfter(after func(d time.Duration, f func())) Option {
	return func(r *Router) {
		if after != nil {
			r.after = after
		}
	}
}

func New(cfg Config, opts ...Option) *Router {
	allowed := make(map[string]struct{}, len(cfg.AllowedBots))
	for _, id := range cfg.AllowedBots {
		allowed[id] = struct{}{}
	}

	delay := cfg.MentionDelay
	if delay <= 0 {
		delay = DefaultMentionDelay
	}

	r := &Router{
		botUserID:      cfg.BotUserID,
		prefix:         cfg.CommandPrefix,
		defaultPersona: cfg.DefaultPersonality,
		allowedBots:    allowed,
		tracker:        cfg.Tracker,
		dedup:          cfg.Dedup,
		registry:       cfg.Registry,
		classifier:     cfg.Classifier,
		references:     cfg.References,
		conversations:  cfg.Conversations,
		gate:           cfg.Gate,
		handler:        cfg.Handler,
		commands:       cfg.Commands,
		mentionDelay:   delay,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NoteDeleted records a platform message deletion. A pending delayed
// mention dispatch for that message will observe it and abort.
func (r *Router) NoteDeleted(messageID string) {
	r.tracker.Track(messageID, tracker.KindDeleted)
}

// Route runs the gate sequence for one message.
func (r *Router) Route(ctx context.Context, msg bus.InboundMessage) Outcome {
	// Gate 1: self and bot filter.
	if msg.AuthorID == r.botUserID || r.classifier.IsOwnWebhook(msg) {
		return Outcome{Action: ActionIgnoredSelf}
	}
	// A webhook message whose content matches a reply sent moments ago is
	// our own echo even when the webhook ID was never registered, as after
	// a restart with warm webhooks.
	if msg.WebhookID != "" && r.tracker.SeenOperation(msg.ChannelID, tracker.KindBotEcho, msg.Content) {
		return Outcome{Action: ActionIgnoredSelf, Reason: "echo of own reply"}
	}
	if msg.AuthorIsBot && msg.WebhookID == "" {
		if _, ok := r.allowedBots[msg.AuthorID]; !ok {
			return Outcome{Action: ActionIgnoredBot}
		}
	}

	// Gate 2: duplicate filter, message ID first, then content fingerprint.
	if !r.tracker.Track(msg.ID, tracker.KindMessage) {
		return Outcome{Action: ActionDuplicate, Reason: "message id already tracked"}
	}
	authorLabel := msg.AuthorID
	if msg.WebhookID != "" {
		authorLabel = msg.AuthorName
	}
	if r.dedup.IsDuplicate(msg.Content, authorLabel, msg.ChannelID) {
		return Outcome{Action: ActionDuplicate, Reason: "content fingerprint within window"}
	}
	r.dedup.Record(msg.Content, authorLabel, msg.ChannelID)

	// Parsed once; consulted by gates 3 and 5. An explicit mention
	// outranks whatever the message replies to, so the DM-reply
	// short-circuit steps aside when one is present.
	mention, mentioned := ParseMention(msg.Content, r.registry)

	// Gate 3: DM replies short-circuit to the referenced personality.
	if msg.IsDM() && msg.IsReply() && !mentioned {
		if res := r.references.Resolve(ctx, msg); res != nil && res.IsPersonalityMessage {
			if p, ok := r.registry.Get(res.PersonalityName); ok {
				return r.dispatch(ctx, Interaction{
					Message:     msg,
					Personality: p,
					Trigger:     TriggerDMReply,
					Prompt:      msg.Content,
					Reference:   res,
				})
			}
		}
	}

	// Gate 4: command prefix.
	if r.prefix != "" && strings.HasPrefix(msg.Content, r.prefix) {
		rest := strings.TrimPrefix(msg.Content, r.prefix)
		if rest == "" || rest[0] == ' ' {
			r.tracker.Track(msg.ID, tracker.KindCommand)
			if r.commands != nil {
				r.commands.HandleCommand(ctx, msg, strings.Fields(rest))
			}
			return Outcome{Action: ActionCommand}
		}
	}

	// Gate 5: explicit mention.
	if mentioned {
		in := Interaction{
			Message:     msg,
			Personality: mention.Personality,
			Trigger:     TriggerMention,
			Prompt:      mention.Rest,
		}
		if msg.IsDM() {
			return r.dispatch(ctx, in)
		}
		return r.scheduleMention(ctx, in)
	}

	// Gate 6: reply to a personality message.
	if msg.IsReply() {
		if res := r.references.Resolve(ctx, msg); res != nil && res.IsPersonalityMessage {
			if p, ok := r.registry.Get(res.PersonalityName); ok {
				return r.dispatch(ctx, Interaction{
					Message:     msg,
					Personality: p,
					Trigger:     TriggerReference,
					Prompt:      msg.Content,
					Reference:   res,
				})
			}
		}
	}

	actingUserID := r.actingUserID(ctx, msg)

	// Gate 7: active conversation for (user, channel).
	if name, ok, err := r.conversations.Active(ctx, actingUserID, msg.ChannelID); err != nil {
		r.log.Warn("active conversation lookup failed",
			"message_id", msg.ID, "channel_id", msg.ChannelID, "error", err)
	} else if ok {
		if p, found := r.registry.Get(name); found {
			return r.dispatch(ctx, Interaction{
				Message:      msg,
				Personality:  p,
				ActingUserID: actingUserID,
				Trigger:      TriggerConversation,
				Prompt:       msg.Content,
			})
		}
	}

	// Gate 8: channel-wide activation, NSFW-gated outside DMs.
	if name, ok, err := r.conversations.ChannelActivation(ctx, msg.ChannelID); err != nil {
		r.log.Warn("channel activation lookup failed",
			"message_id", msg.ID, "channel_id", msg.ChannelID, "error", err)
	} else if ok {
		if p, found := r.registry.Get(name); found {
			if p.NSFW && !msg.IsDM() && !msg.NSFWChannel {
				return Outcome{Action: ActionNoRoute, Reason: "nsfw activation in sfw channel"}
			}
			return r.dispatch(ctx, Interaction{
				Message:      msg,
				Personality:  p,
				ActingUserID: actingUserID,
				Trigger:      TriggerActivation,
				Prompt:       msg.Content,
			})
		}
	}

	// Gate 9: DM fallthrough to the default personality.
	if msg.IsDM() && r.defaultPersona != "" {
		if p, ok := r.registry.Get(r.defaultPersona); ok {
			return r.dispatch(ctx, Interaction{
				Message:      msg,
				Personality:  p,
				ActingUserID: actingUserID,
				Trigger:      TriggerDMDefault,
				Prompt:       msg.Content,
			})
		}
	}

	return Outcome{Action: ActionNoRoute}
}

// actingUserID resolves proxied messages to the real user where
// possible; everything else acts as the platform author.
func (r *Router) actingUserID(ctx context.Context, msg bus.InboundMessage) string {
	if r.classifier.IsProxySystemWebhook(msg) {
		if userID, ok := r.classifier.RealUserID(ctx, msg); ok {
			return userID
		}
	}
	return msg.AuthorID
}

// scheduleMention delays guild mention dispatch so a proxy system that
// deletes and resends the message via webhook wins the race. The delayed
// callback re-checks tracker state and aborts instead of being cancelled.
func (r *Router) scheduleMention(ctx context.Context, in Interaction) Outcome {
	msg := in.Message
	r.after(r.mentionDelay, func() {
		if r.tracker.Seen(msg.ID, tracker.KindDeleted) {
			r.log.Debug("delayed mention aborted, original deleted",
				"message_id", msg.ID, "channel_id", msg.ChannelID)
			return
		}
		if r.tracker.IsCompleted(msg.ChannelID, msg.ID) {
			return
		}
		r.dispatch(ctx, in)
	})
	return Outcome{
		Action:      ActionScheduled,
		Trigger:     TriggerMention,
		Personality: in.Personality.Name,
	}
}

// dispatch runs the authorization gate and hands the interaction to the
// handler. One dispatch per message id within retention.
func (r *Router) dispatch(ctx context.Context, in Interaction) Outcome {
	msg := in.Message
	if !r.tracker.BeginRequest(msg.ChannelID, msg.ID) {
		return Outcome{Action: ActionDuplicate, Reason: "request already in flight"}
	}

	d := r.gate.Check(ctx, msg, in.Personality)
	if !d.Allowed {
		r.log.Info("interaction denied",
			"message_id", msg.ID,
			"channel_id", msg.ChannelID,
			"personality", in.Personality.Name,
			"reason", d.Reason,
		)
		r.tracker.CompleteRequest(msg.ChannelID, msg.ID)
		r.handler.HandleDenied(ctx, msg, d)
		return Outcome{Action: ActionDenied, Personality: in.Personality.Name, Reason: d.Reason}
	}

	in.ActingUserID = d.UserID
	r.log.Info("interaction dispatched",
		"message_id", msg.ID,
		"channel_id", msg.ChannelID,
		"personality", in.Personality.Name,
		"trigger", string(in.Trigger),
	)
	r.handler.HandleInteraction(ctx, in)
	return Outcome{Action: ActionDispatched, Trigger: in.Trigger, Personality: in.Personality.Name}
}
