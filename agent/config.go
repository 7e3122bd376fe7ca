package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// RetryConfig controls upload retry pacing. Delays grow exponentially from
// BaseDelayMs up to MaxDelayMs with a little jitter on top.
type RetryConfig struct {
	MaxAttempts int   `toml:"max_attempts"`
	BaseDelayMs int64 `toml:"base_delay_ms"`
	MaxDelayMs  int64 `toml:"max_delay_ms"`
}

// Config is the agent's TOML configuration file.
type Config struct {
	BackendURL        string      `toml:"backend_url"`
	IngestPath        string      `toml:"ingest_path"`
	DeviceApiKey      string      `toml:"device_api_key"`
	StoreId           string      `toml:"store_id"`
	DeviceId          string      `toml:"device_id"`
	WatchPath         string      `toml:"watch_path"`
	FileGlob          string      `toml:"file_glob"`
	PollIntervalMs    int64       `toml:"poll_interval_ms"`
	StabilityWindowMs int64       `toml:"stability_window_ms"`
	MaxFileSizeBytes  int64       `toml:"max_file_size_bytes"`
	Concurrency       int         `toml:"concurrency"`
	StatePath         string      `toml:"state_path"`
	Retry             RetryConfig `toml:"retry"`
}

// LoadConfig reads and validates the agent configuration, filling defaults
// for everything except the identity fields, which have no sane default.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{
		IngestPath:        "/ingest/xml",
		FileGlob:          "*.xml",
		PollIntervalMs:    5000,
		StabilityWindowMs: 2000,
		MaxFileSizeBytes:  10 * 1024 * 1024,
		Concurrency:       2,
		StatePath:         ".agent-state.json",
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelayMs: 1000,
			MaxDelayMs:  30000,
		},
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.BackendURL == "":
		return errors.New("backend_url is required")
	case c.DeviceApiKey == "":
		return errors.New("device_api_key is required")
	case c.StoreId == "":
		return errors.New("store_id is required")
	case c.DeviceId == "":
		return errors.New("device_id is required")
	case c.WatchPath == "":
		return errors.New("watch_path is required")
	case c.Concurrency < 1:
		return errors.New("concurrency must be at least 1")
	case c.Retry.MaxAttempts < 1:
		return errors.New("retry.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) StabilityWindow() time.Duration {
	return time.Duration(c.StabilityWindowMs) * time.Millisecond
}
