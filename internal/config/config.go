// Package config holds the process configuration: a JSON5 file overlaid
// with environment variables. Secrets (bot token, API keys, database
// DSN) come from the environment only, never from the file.
package config

import "time"

// Config is the root configuration.
type Config struct {
	LogLevel string `json:"log_level"` // debug, info, warn, error

	Discord  DiscordConfig  `json:"discord"`
	Provider ProviderConfig `json:"provider"`
	Store    StoreConfig    `json:"store"`
	Routing  RoutingConfig  `json:"routing"`
	Webhooks WebhookConfig  `json:"webhooks"`
	Dedup    DedupConfig    `json:"dedup"`
}

// DiscordConfig configures the platform adapter.
type DiscordConfig struct {
	Token       string   `json:"-"` // TZUROT_DISCORD_TOKEN only
	BotName     string   `json:"bot_name"`
	AllowedBots []string `json:"allowed_bots"` // bot accounts exempt from the bot filter
}

// ProviderConfig configures the LLM backend.
type ProviderConfig struct {
	Name         string `json:"name"`
	APIBase      string `json:"api_base"`
	APIKey       string `json:"-"` // TZUROT_LLM_API_KEY only
	DefaultModel string `json:"default_model"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	PostgresDSN       string `json:"-"` // TZUROT_POSTGRES_DSN only; managed mode when set
	DataDir           string `json:"data_dir"`
	PersonalitiesFile string `json:"personalities_file"` // overrides <data_dir>/personalities.json
}

// RoutingConfig tunes the decision pipeline.
type RoutingConfig struct {
	CommandPrefix      string `json:"command_prefix"`
	DefaultPersonality string `json:"default_personality"`
	MentionDelayMS     int    `json:"mention_delay_ms"`
	ConversationTTLMin int    `json:"conversation_ttl_min"`
}

// MentionDelay returns the guild mention debounce as a duration.
func (r RoutingConfig) MentionDelay() time.Duration {
	return time.Duration(r.MentionDelayMS) * time.Millisecond
}

// ConversationTTL returns the conversation inactivity window.
func (r RoutingConfig) ConversationTTL() time.Duration {
	return time.Duration(r.ConversationTTLMin) * time.Minute
}

// WebhookConfig tunes the webhook identity cache.
type WebhookConfig struct {
	Capacity int `json:"capacity"`
	TTLHours int `json:"ttl_hours"`
}

// TTL returns handle expiry as a duration.
func (w WebhookConfig) TTL() time.Duration {
	return time.Duration(w.TTLHours) * time.Hour
}

// DedupConfig tunes the duplicate suppression window.
type DedupConfig struct {
	WindowMS int `json:"window_ms"`
}

// Window returns the duplicate window as a duration.
func (d DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowMS) * time.Millisecond
}
