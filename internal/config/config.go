// Package config loads runtime settings for the roomchat server from the
// environment and command-line flags, then applies defaults and validation.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Tyrowin/roomchat/internal/room"
)

// Defaults applied when a setting is missing or out of range.
const (
	DefaultPort            = "3000"
	DefaultMaxMessageSize  = 5_000_000
	DefaultRateLimitBurst  = 20
	DefaultRefillInterval  = time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultShutdownTimeout = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// Config holds the server configuration.
type Config struct {
	Port            string               `env:"PORT" envDefault:"3000"`
	AllowedOrigins  []string             `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MaxMessageSize  int64                `env:"MAX_MESSAGE_SIZE" envDefault:"5000000"`
	RateLimit       RateLimitConfig
	DuplicatePolicy room.DuplicatePolicy `env:"DUPLICATE_USER_POLICY" envDefault:"replace"`
	EvictEmptyRooms bool                 `env:"EVICT_EMPTY_ROOMS" envDefault:"true"`
	AckEvents       bool                 `env:"ACK_EVENTS" envDefault:"true"`
	StaticDir       string               `env:"STATIC_DIR"`
	LogLevel        string               `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string               `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration        `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var cfg Config
	// The tag defaults are static, so parsing an empty environment cannot fail.
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Load reads the environment, applies flag overrides from args and sanitizes
// the result.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	origins := strings.Join(cfg.AllowedOrigins, ",")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port or address")
	fs.StringVar(&origins, "allowed-origins", origins, "comma-separated WebSocket origins; * allows all")
	fs.Int64Var(&cfg.MaxMessageSize, "max-message-size", cfg.MaxMessageSize, "maximum inbound WebSocket message size in bytes")
	fs.TextVar(&cfg.DuplicatePolicy, "duplicate-user-policy", cfg.DuplicatePolicy, "replace or reject a join for a user id bound to another connection")
	fs.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "directory served under /static/ (disabled when empty)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console or json)")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	cfg.AllowedOrigins = ParseOrigins(origins)

	return Sanitize(cfg), nil
}

// Sanitize replaces missing or out-of-range values with defaults.
func Sanitize(cfg Config) Config {
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = DefaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = DefaultRateLimitBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = DefaultRefillInterval
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Addr returns the listen address for the configured port. A value that
// already contains a colon is used as-is.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ParseOrigins splits a comma-separated origin list, dropping blanks.
func ParseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
