package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Discord: DiscordConfig{
			BotName: "Tzurot",
		},
		Provider: ProviderConfig{
			Name:         "openai",
			DefaultModel: "gpt-4o-mini",
		},
		Store: StoreConfig{
			DataDir: "data",
		},
		Routing: RoutingConfig{
			CommandPrefix:      "!tz",
			MentionDelayMS:     2500,
			ConversationTTLMin: 30,
		},
		Webhooks: WebhookConfig{
			Capacity: 100,
			TTLHours: 24,
		},
		Dedup: DedupConfig{
			WindowMS: 5000,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is fine: defaults plus environment is a complete configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Secrets only
// exist here.
func (c *Config) applyEnvOverrides() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr(&c.LogLevel, "TZUROT_LOG_LEVEL")

	setStr(&c.Discord.Token, "TZUROT_DISCORD_TOKEN")
	setStr(&c.Discord.BotName, "TZUROT_BOT_NAME")

	setStr(&c.Provider.Name, "TZUROT_LLM_PROVIDER")
	setStr(&c.Provider.APIBase, "TZUROT_LLM_API_BASE")
	setStr(&c.Provider.APIKey, "TZUROT_LLM_API_KEY")
	setStr(&c.Provider.DefaultModel, "TZUROT_LLM_MODEL")

	setStr(&c.Store.PostgresDSN, "TZUROT_POSTGRES_DSN")
	setStr(&c.Store.DataDir, "TZUROT_DATA_DIR")
	setStr(&c.Store.PersonalitiesFile, "TZUROT_PERSONALITIES_FILE")

	setStr(&c.Routing.CommandPrefix, "TZUROT_COMMAND_PREFIX")
	setStr(&c.Routing.DefaultPersonality, "TZUROT_DEFAULT_PERSONALITY")
	setInt(&c.Routing.MentionDelayMS, "TZUROT_MENTION_DELAY_MS")
	setInt(&c.Routing.ConversationTTLMin, "TZUROT_CONVERSATION_TTL_MIN")

	setInt(&c.Webhooks.Capacity, "TZUROT_WEBHOOK_CAPACITY")
	setInt(&c.Webhooks.TTLHours, "TZUROT_WEBHOOK_TTL_HOURS")
	setInt(&c.Dedup.WindowMS, "TZUROT_DEDUP_WINDOW_MS")
}

// Validate checks required settings for running the gateway.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (set TZUROT_DISCORD_TOKEN)")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("LLM API key is required (set TZUROT_LLM_API_KEY)")
	}
	return nil
}
