// Package config loads the bot configuration from a YAML file with
// environment variable expansion and environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Discord       DiscordConfig       `yaml:"discord"`
	Cooldowns     CooldownConfig      `yaml:"cooldowns"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type DiscordConfig struct {
	// Token is the bot token. Required.
	Token string `yaml:"token" env:"DISCORD_TOKEN"`

	// AppID is the application ID used for slash command registration.
	AppID string `yaml:"app_id" env:"DISCORD_APP_ID"`

	// GuildID scopes slash command registration to one guild. Empty
	// registers globally (propagation can take up to an hour).
	GuildID string `yaml:"guild_id" env:"DISCORD_GUILD_ID"`

	// Owners are user IDs allowed to run owner-only commands.
	Owners []string `yaml:"owners" env:"BOT_OWNERS" envSeparator:","`

	// Prefixes trigger text-command parsing ("!" when empty).
	Prefixes []string `yaml:"prefixes" env:"BOT_PREFIXES" envSeparator:","`
}

type CooldownConfig struct {
	// StorePath is the SQLite file cooldown stamps persist to across
	// restarts. Empty disables persistence.
	StorePath string `yaml:"store_path" env:"COOLDOWN_STORE_PATH"`

	// EvictionSchedule is a cron expression for the stale-stamp sweep.
	EvictionSchedule string `yaml:"eviction_schedule"`

	// EvictOlderThan is the stamp age at which the sweep removes entries.
	EvictOlderThan time.Duration `yaml:"evict_older_than"`
}

type ObservabilityConfig struct {
	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables
	// trace export.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// SamplingRate is the trace sampling ratio in [0, 1].
	SamplingRate float64 `yaml:"sampling_rate"`

	// Insecure disables TLS on the OTLP connection.
	Insecure bool `yaml:"insecure"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LOG_LEVEL"`

	// Format is "json" or "text".
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load reads the configuration file at path, expands ${VAR} references,
// applies environment overrides, and fills defaults. A missing file is not
// an error: the configuration then comes entirely from the environment. A
// .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Discord.Prefixes) == 0 {
		cfg.Discord.Prefixes = []string{"!"}
	}
	if cfg.Cooldowns.EvictionSchedule == "" {
		cfg.Cooldowns.EvictionSchedule = "@every 10m"
	}
	if cfg.Cooldowns.EvictOlderThan == 0 {
		cfg.Cooldowns.EvictOlderThan = 24 * time.Hour
	}
	if cfg.Observability.SamplingRate == 0 {
		cfg.Observability.SamplingRate = 1.0
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks that the configuration is complete enough to run the bot.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (discord.token or DISCORD_TOKEN)")
	}
	if c.Discord.AppID == "" {
		return fmt.Errorf("application ID is required (discord.app_id or DISCORD_APP_ID)")
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be within [0, 1], got %v", c.Observability.SamplingRate)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// LogLevel converts the configured level name to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
