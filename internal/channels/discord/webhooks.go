package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/tzurot/tzurot/internal/webhook"
)

// sessionAPI implements webhook.API over a discordgo session.
type sessionAPI struct {
	session *discordgo.Session
}

func (a *sessionAPI) ChannelWebhooks(_ context.Context, channelID string) ([]webhook.Info, error) {
	hooks, err := a.session.ChannelWebhooks(channelID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for %s: %w", channelID, err)
	}
	infos := make([]webhook.Info, 0, len(hooks))
	for _, h := range hooks {
		infos = append(infos, webhook.Info{ID: h.ID, Token: h.Token, Name: h.Name})
	}
	return infos, nil
}

func (a *sessionAPI) CreateWebhook(_ context.Context, channelID, name string) (webhook.Info, error) {
	h, err := a.session.WebhookCreate(channelID, name, "")
	if err != nil {
		return webhook.Info{}, fmt.Errorf("create webhook in %s: %w", channelID, err)
	}
	return webhook.Info{ID: h.ID, Token: h.Token, Name: h.Name}, nil
}

// webhookClient is the live client handle the cache manages. Discord
// webhooks need no teardown call; Destroy just marks the handle dead.
type webhookClient struct {
	channelID string
	webhookID string
}

func (c *webhookClient) Destroy() {
	slog.Debug("webhook client destroyed", "channel_id", c.channelID, "webhook_id", c.webhookID)
}

func newWebhookClient(_ *discordgo.Session) webhook.ClientFactory {
	return func(channelID string, info webhook.Info) webhook.Client {
		return &webhookClient{channelID: channelID, webhookID: info.ID}
	}
}

// newParentResolver builds the thread-parent resolution chain: gateway
// state cache, then the parent ID carried on the event, then a REST
// fetch as the last resort.
func newParentResolver(session *discordgo.Session) webhook.ParentResolver {
	toInfo := func(ch *discordgo.Channel) webhook.ChannelInfo {
		return webhook.ChannelInfo{
			ID:       ch.ID,
			GuildID:  ch.GuildID,
			ParentID: ch.ParentID,
			IsThread: ch.IsThread(),
			NSFW:     ch.NSFW,
		}
	}

	return webhook.NewChainResolver(
		webhook.Strategy{
			Name: "state-cache",
			Resolve: func(_ context.Context, ch webhook.ChannelInfo) (webhook.ChannelInfo, bool) {
				thread, err := session.State.Channel(ch.ID)
				if err != nil || thread.ParentID == "" {
					return webhook.ChannelInfo{}, false
				}
				parent, err := session.State.Channel(thread.ParentID)
				if err != nil {
					return webhook.ChannelInfo{}, false
				}
				return toInfo(parent), true
			},
		},
		webhook.Strategy{
			Name: "event-parent-id",
			Resolve: func(_ context.Context, ch webhook.ChannelInfo) (webhook.ChannelInfo, bool) {
				if ch.ParentID == "" {
					return webhook.ChannelInfo{}, false
				}
				return webhook.ChannelInfo{ID: ch.ParentID, GuildID: ch.GuildID}, true
			},
		},
		webhook.Strategy{
			Name: "api-fetch",
			Resolve: func(_ context.Context, ch webhook.ChannelInfo) (webhook.ChannelInfo, bool) {
				thread, err := session.Channel(ch.ID)
				if err != nil || thread.ParentID == "" {
					return webhook.ChannelInfo{}, false
				}
				parent, err := session.Channel(thread.ParentID)
				if err != nil {
					return webhook.ChannelInfo{}, false
				}
				return toInfo(parent), true
			},
		},
	)
}
