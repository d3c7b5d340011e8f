// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/inkwheel/pressroom/internal/domain"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	CORS      CORSConfig      `koanf:"cors"`
	JWT       JWTConfig       `koanf:"jwt"`
	Platforms PlatformsConfig `koanf:"platforms"`
	Publisher PublisherConfig `koanf:"publisher"`
	Generator GeneratorConfig `koanf:"generator"`
	Voice     VoiceConfig     `koanf:"voice"`
	Trial     TrialConfig     `koanf:"trial"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// JWTConfig holds token settings for operator auth.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration"`
}

// PlatformOverride overrides built-in platform capabilities.
type PlatformOverride struct {
	DailyLimit  int    `koanf:"daily_limit"`
	WarmupLimit int    `koanf:"warmup_limit"`
	CharLimit   int    `koanf:"char_limit"`
	PublishMode string `koanf:"publish_mode"`
}

// PlatformsConfig holds the capability table overrides and warmup flag.
type PlatformsConfig struct {
	WarmupMode bool                        `koanf:"warmup_mode"`
	Overrides  map[string]PlatformOverride `koanf:"overrides"`
}

// Capabilities builds the effective platform capability table.
func (c PlatformsConfig) Capabilities() *domain.Capabilities {
	overrides := make(map[domain.Platform]domain.Capability, len(c.Overrides))
	for name, o := range c.Overrides {
		p := domain.Platform(name)
		entry := domain.DefaultCapability[p]
		if o.DailyLimit > 0 {
			entry.DailyLimit = o.DailyLimit
		}
		if o.WarmupLimit > 0 {
			entry.WarmupLimit = o.WarmupLimit
		}
		if o.CharLimit > 0 {
			entry.CharLimit = o.CharLimit
		}
		if o.PublishMode != "" {
			entry.PublishMode = domain.PublishMode(o.PublishMode)
		}
		overrides[p] = entry
	}
	return domain.NewCapabilities(overrides, c.WarmupMode)
}

// PublisherConfig holds publisher gateway settings.
type PublisherConfig struct {
	Enabled   bool              `koanf:"enabled"`
	Endpoints map[string]string `koanf:"endpoints"`
	RateLimit float64           `koanf:"rate_limit"`
	Timeout   time.Duration     `koanf:"timeout"`
}

// GeneratorConfig holds content generator collaborator settings.
type GeneratorConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// VoiceConfig holds voice/quality checker collaborator settings.
type VoiceConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// TrialConfig holds trial scheduler settings. Platforms maps item kinds
// to the platform new trial candidates are queued for.
type TrialConfig struct {
	SchedulerEnabled bool              `koanf:"scheduler_enabled"`
	TickInterval     time.Duration     `koanf:"tick_interval"`
	Platforms        map[string]string `koanf:"platforms"`
}

// CandidatePlatforms resolves the kind-to-platform mapping with defaults.
func (c TrialConfig) CandidatePlatforms() map[domain.ItemKind]domain.Platform {
	mapping := map[domain.ItemKind]domain.Platform{
		domain.ItemKindPost:           domain.PlatformBluesky,
		domain.ItemKindReply:          domain.PlatformBluesky,
		domain.ItemKindComment:        domain.PlatformBluesky,
		domain.ItemKindEngagement:     domain.PlatformBluesky,
		domain.ItemKindPodcastEpisode: domain.PlatformPodcast,
	}
	for kind, platform := range c.Platforms {
		mapping[domain.ItemKind(kind)] = domain.Platform(platform)
	}
	return mapping
}

const envPrefix = "PRESSROOM_"

// Load reads configuration from an optional YAML file and the environment.
// Environment variables use the PRESSROOM_ prefix with underscores as
// section separators, e.g. PRESSROOM_DATABASE__URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("jwt.secret_key is required")
	}

	return cfg, nil
}

// Default returns the built-in defaults applied before file/env overlays.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		JWT: JWTConfig{
			AccessTokenDuration: 12 * time.Hour,
		},
		Publisher: PublisherConfig{
			RateLimit: 1,
			Timeout:   30 * time.Second,
		},
		Generator: GeneratorConfig{
			Timeout: 60 * time.Second,
		},
		Voice: VoiceConfig{
			Timeout: 30 * time.Second,
		},
		Trial: TrialConfig{
			SchedulerEnabled: true,
			TickInterval:     time.Minute,
		},
	}
}
