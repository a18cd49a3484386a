package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/tzurot/tzurot/internal/bus"
)

const helpText = "Commands: activate <personality>, deactivate, reset, list, help"

// HandleCommand implements the prefix command surface.
func (r *Responder) HandleCommand(ctx context.Context, msg bus.InboundMessage, args []string) {
	reply := func(text string) {
		r.bus.PublishOutbound(bus.OutboundMessage{ChannelID: msg.ChannelID, Content: text})
	}

	if len(args) == 0 {
		reply(helpText)
		return
	}

	switch args[0] {
	case "activate":
		if len(args) < 2 {
			reply("Usage: activate <personality>")
			return
		}
		alias := strings.Join(args[1:], " ")
		p, ok := r.registry.ResolveAlias(alias)
		if !ok {
			reply(fmt.Sprintf("No personality matches %q.", alias))
			return
		}
		if err := r.conversations.ActivateChannel(ctx, msg.ChannelID, p.Name, msg.AuthorID); err != nil {
			r.log.Warn("channel activation failed", "channel_id", msg.ChannelID, "error", err)
			reply("Could not activate, try again.")
			return
		}
		reply(fmt.Sprintf("%s is now active in this channel.", p.EffectiveDisplayName()))

	case "deactivate":
		if err := r.conversations.DeactivateChannel(ctx, msg.ChannelID); err != nil {
			r.log.Warn("channel deactivation failed", "channel_id", msg.ChannelID, "error", err)
			reply("Could not deactivate, try again.")
			return
		}
		reply("Channel activation lifted.")

	case "reset":
		if err := r.conversations.End(ctx, msg.AuthorID, msg.ChannelID); err != nil {
			r.log.Warn("conversation reset failed", "channel_id", msg.ChannelID, "error", err)
			reply("Could not reset, try again.")
			return
		}
		reply("Your conversation here has been reset.")

	case "list":
		names := r.registry.Names()
		if len(names) == 0 {
			reply("No personalities are registered.")
			return
		}
		reply("Personalities: " + strings.Join(names, ", "))

	case "help":
		reply(helpText)

	default:
		reply(fmt.Sprintf("Unknown command %q. %s", args[0], helpText))
	}
}
