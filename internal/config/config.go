package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// WinVerification selects how bingo claims are arbitrated.
type WinVerification string

const (
	// VerifyStrict re-evaluates every claim against the regenerated card.
	VerifyStrict WinVerification = "strict"
	// VerifyAdvisory records any membership-valid claim at face value.
	VerifyAdvisory WinVerification = "advisory"
)

type Config struct {
	HTTPAddr        string          `env:"HTTP_ADDR" envDefault:":3000"`
	DBPath          string          `env:"DB_PATH" envDefault:"data/bingo.sqlite"`
	LogLevel        slog.Level      `env:"LOG_LEVEL" envDefault:"INFO"`
	PublicDir       string          `env:"PUBLIC_DIR" envDefault:"public"`
	AdminKey        string          `env:"ADMIN_KEY"`
	RetentionDays   int             `env:"ROOM_RETENTION_DAYS" envDefault:"30"`
	CleanupInterval time.Duration   `env:"CLEANUP_INTERVAL" envDefault:"60m"`
	StoreTimeout    time.Duration   `env:"STORE_TIMEOUT" envDefault:"5s"`
	WinVerification WinVerification `env:"WIN_VERIFICATION" envDefault:"strict"`
	AllowedOrigins  []string        `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	SendQueueSize   int             `env:"SEND_QUEUE_SIZE" envDefault:"64"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Retention is how long an untouched room survives the sweeper.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) validate() error {
	switch c.WinVerification {
	case VerifyStrict, VerifyAdvisory:
	default:
		return fmt.Errorf("WIN_VERIFICATION must be %q or %q, got %q", VerifyStrict, VerifyAdvisory, c.WinVerification)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("ROOM_RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	if c.CleanupInterval <= 0 || c.StoreTimeout <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL and STORE_TIMEOUT must be positive")
	}
	if c.SendQueueSize < 1 {
		return fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", c.SendQueueSize)
	}
	return nil
}
