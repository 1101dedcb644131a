package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/racetrack.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../web/dist"`

	StoreBackend    string `env:"STORE_BACKEND" envDefault:"sqlite"`
	StoreQuotaBytes int    `env:"STORE_QUOTA_BYTES" envDefault:"5242880"`

	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	FeedDelimiter string        `env:"FEED_DELIMITER" envDefault:","`

	MapMaxWidth    int     `env:"MAP_MAX_WIDTH" envDefault:"1600"`
	MapJPEGQuality int     `env:"MAP_JPEG_QUALITY" envDefault:"70"`
	MapMaxPixels   int     `env:"MAP_MAX_PIXELS" envDefault:"50000000"`
	IconMaxBytes   int64   `env:"ICON_MAX_BYTES" envDefault:"524288"`
	RefreshRate    float64 `env:"REFRESH_RATE" envDefault:"1"`
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

func (c *Config) validate() error {
	var errs []error
	if c.StoreBackend != BackendSQLite && c.StoreBackend != BackendMemory {
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendSQLite, BackendMemory, c.StoreBackend))
	}
	if utf8.RuneCountInString(c.FeedDelimiter) != 1 {
		errs = append(errs, fmt.Errorf("FEED_DELIMITER must be a single character, got %q", c.FeedDelimiter))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.MapJPEGQuality < 1 || c.MapJPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("MAP_JPEG_QUALITY must be within 1-100, got %d", c.MapJPEGQuality))
	}
	return errors.Join(errs...)
}

// Delimiter returns the tabular feed separator.
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.FeedDelimiter)
	return r
}
