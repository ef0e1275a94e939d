package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	AdminID  int64  `envconfig:"ADMIN_ID" required:"true"`
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Almaty"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath      string `envconfig:"DB_PATH" default:"./data/isco-bot.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"postgres"`
	DBPass      string `envconfig:"DB_PASS"`
	DBName      string `envconfig:"DB_NAME" default:"isco_bot"`
	DBSSLMode   string `envconfig:"DB_SSLMODE" default:"disable"`

	MisfireGraceSeconds int           `envconfig:"MISFIRE_GRACE_SECONDS" default:"300"`
	CoalesceMisfires    bool          `envconfig:"COALESCE_MISFIRES" default:"true"`
	SendRate            float64       `envconfig:"SEND_RATE" default:"25"` // messages per second
	SendTimeout         time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	StaleEventAfter     time.Duration `envconfig:"STALE_EVENT_AFTER" default:"1h"`
	ResyncSpec          string        `envconfig:"RESYNC_SPEC" default:"@every 1h"` // empty disables

	RedisAddr     string `envconfig:"REDIS_ADDR"` // empty: in-process locks
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz and metrics; empty disables
}

// Load reads an optional .env file, then environment variables into Config.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	if c.AdminID == 0 {
		return errors.New("ADMIN_ID must be a Telegram user id")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER: unknown driver %q", c.DBDriver)
	}
	if c.MisfireGraceSeconds < 0 {
		return errors.New("MISFIRE_GRACE_SECONDS must not be negative")
	}
	if c.SendRate < 0 {
		return errors.New("SEND_RATE must not be negative")
	}
	if c.SendTimeout <= 0 {
		return errors.New("SEND_TIMEOUT must be positive")
	}
	if c.StaleEventAfter < 0 {
		return errors.New("STALE_EVENT_AFTER must not be negative")
	}
	return nil
}

// Location returns the configured display timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MisfireGrace is MisfireGraceSeconds as a duration.
func (c Config) MisfireGrace() time.Duration {
	return time.Duration(c.MisfireGraceSeconds) * time.Second
}
