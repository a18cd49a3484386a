package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Routing.CommandPrefix != "!tz" {
		t.Errorf("prefix = %q", cfg.Routing.CommandPrefix)
	}
	if cfg.Webhooks.Capacity != 100 || cfg.Dedup.WindowMS != 5000 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadJSON5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	content := `{
		// comments are allowed
		log_level: "debug",
		routing: {
			command_prefix: "!tz",
			default_personality: "cold-kerach-batuach",
			mention_delay_ms: 1000,
		},
		webhooks: { capacity: 50 },
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.Routing.DefaultPersonality != "cold-kerach-batuach" {
		t.Errorf("default personality = %q", cfg.Routing.DefaultPersonality)
	}
	if cfg.Routing.MentionDelayMS != 1000 {
		t.Errorf("mention delay = %d", cfg.Routing.MentionDelayMS)
	}
	if cfg.Webhooks.Capacity != 50 {
		t.Errorf("capacity = %d", cfg.Webhooks.Capacity)
	}
	// Untouched sections keep their defaults.
	if cfg.Dedup.WindowMS != 5000 {
		t.Errorf("dedup window = %d", cfg.Dedup.WindowMS)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("TZUROT_DISCORD_TOKEN", "secret-token")
	t.Setenv("TZUROT_COMMAND_PREFIX", "!alt")
	t.Setenv("TZUROT_MENTION_DELAY_MS", "750")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Discord.Token != "secret-token" {
		t.Errorf("token = %q", cfg.Discord.Token)
	}
	if cfg.Routing.CommandPrefix != "!alt" {
		t.Errorf("prefix = %q", cfg.Routing.CommandPrefix)
	}
	if cfg.Routing.MentionDelayMS != 750 {
		t.Errorf("delay = %d", cfg.Routing.MentionDelayMS)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("empty secrets should not validate")
	}
	cfg.Discord.Token = "t"
	cfg.Provider.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
