package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tzurot/tzurot/internal/auth"
	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/channels/discord"
	"github.com/tzurot/tzurot/internal/config"
	"github.com/tzurot/tzurot/internal/conversation"
	"github.com/tzurot/tzurot/internal/dedup"
	"github.com/tzurot/tzurot/internal/personality"
	"github.com/tzurot/tzurot/internal/providers"
	"github.com/tzurot/tzurot/internal/proxy"
	"github.com/tzurot/tzurot/internal/reference"
	"github.com/tzurot/tzurot/internal/respond"
	"github.com/tzurot/tzurot/internal/router"
	"github.com/tzurot/tzurot/internal/store"
	"github.com/tzurot/tzurot/internal/store/file"
	"github.com/tzurot/tzurot/internal/store/pg"
	"github.com/tzurot/tzurot/internal/tracker"
	"github.com/tzurot/tzurot/internal/webhook"
)

func runGateway() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Standalone mode (JSON files) unless a Postgres DSN is configured.
	storeCfg := store.StoreConfig{
		PostgresDSN:       cfg.Store.PostgresDSN,
		DataDir:           cfg.Store.DataDir,
		PersonalitiesFile: cfg.Store.PersonalitiesFile,
	}
	var stores *store.Stores
	if storeCfg.PostgresDSN != "" {
		stores, err = pg.NewPGStores(storeCfg)
		slog.Info("storage mode", "backend", "postgres")
	} else {
		stores, err = file.NewFileStores(storeCfg)
		slog.Info("storage mode", "backend", "file", "data_dir", cfg.Store.DataDir)
	}
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}

	registry := personality.NewRegistry()
	reloadRegistry := func() {
		list, err := stores.Personalities.List(context.Background())
		if err != nil {
			slog.Error("personality reload failed", "error", err)
			return
		}
		registry.Replace(list)
	}
	reloadRegistry()
	if registry.Len() == 0 {
		slog.Warn("no personalities loaded, the bot will answer nothing",
			"hint", "add entries to the personalities file or table")
	}

	stopWatch, err := stores.Personalities.Watch(reloadRegistry)
	if err != nil {
		return fmt.Errorf("watch personalities: %w", err)
	}
	defer stopWatch()

	trk := tracker.New()
	trk.Start()
	defer trk.Stop()

	dedupCache := dedup.NewCache(dedup.WithWindow(cfg.Dedup.Window()))
	msgBus := bus.New()

	// The classifier is constructed after the Discord adapter (it needs
	// the adapter as its user resolver) but read from the handle hook.
	// The hook only fires on the outbound send path, whose goroutine is
	// started below, after the assignment.
	var classifier *proxy.Classifier

	channel, err := discord.New(
		discord.Config{Token: cfg.Discord.Token, BotName: cfg.Discord.BotName},
		msgBus,
		trk,
		webhook.WithCapacity(cfg.Webhooks.Capacity),
		webhook.WithTTL(cfg.Webhooks.TTL()),
		webhook.WithHandleHook(func(webhookID string) {
			classifier.RegisterOwnWebhook(webhookID)
		}),
	)
	if err != nil {
		return fmt.Errorf("create discord adapter: %w", err)
	}

	classifier = proxy.NewClassifier(stores.Auth, channel)
	references := reference.NewResolver(channel, registry, classifier)
	conversations := conversation.NewManager(stores.Conversations,
		conversation.WithTTL(cfg.Routing.ConversationTTL()))
	gate := auth.NewGate(stores.Auth, classifier)

	provider := providers.NewOpenAIProvider(
		cfg.Provider.Name,
		cfg.Provider.APIKey,
		cfg.Provider.APIBase,
		cfg.Provider.DefaultModel,
	)
	responder := respond.New(provider, msgBus, trk, conversations, registry, stores.Auth)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := channel.Start(ctx); err != nil {
		return fmt.Errorf("start discord adapter: %w", err)
	}
	defer channel.Stop(context.Background())

	rtr := router.New(router.Config{
		BotUserID:          channel.BotUserID(),
		CommandPrefix:      cfg.Routing.CommandPrefix,
		DefaultPersonality: cfg.Routing.DefaultPersonality,
		AllowedBots:        cfg.Discord.AllowedBots,
		MentionDelay:       cfg.Routing.MentionDelay(),
		Tracker:            trk,
		Dedup:              dedupCache,
		Registry:           registry,
		Classifier:         classifier,
		References:         references,
		Conversations:      conversations,
		Gate:               gate,
		Handler:            responder,
		Commands:           responder,
	})

	// Deletions feed the router's pending delayed dispatches. Registered
	// through the adapter's locked setter; deletions that land before
	// this point have nothing pending to abort.
	channel.SetDeleteListener(rtr.NoteDeleted)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			msg, ok := msgBus.ConsumeInbound(gctx)
			if !ok {
				return nil
			}
			rtr.Route(gctx, msg)
		}
	})

	g.Go(func() error {
		for {
			msg, ok := msgBus.SubscribeOutbound(gctx)
			if !ok {
				return nil
			}
			if err := channel.Send(gctx, msg); err != nil {
				slog.Error("outbound send failed", "channel_id", msg.ChannelID, "error", err)
			}
		}
	})

	slog.Info("tzurot gateway started",
		"version", Version,
		"bot_name", cfg.Discord.BotName,
		"personalities", registry.Len(),
		"default_personality", cfg.Routing.DefaultPersonality,
	)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	slog.Info("tzurot gateway stopped")
	return nil
}

// setupLogging installs the default slog handler. The --verbose flag
// wins over the configured level.
func setupLogging(configured string) {
	level := slog.LevelInfo
	switch configured {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
}
