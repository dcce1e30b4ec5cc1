package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matthewjhunter/chapterverse/internal/signals"
)

// Storage backends accepted in database.backend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

type Config struct {
	Database struct {
		Backend string `yaml:"backend" toml:"backend"`
		Path    string `yaml:"path" toml:"path"`
	} `yaml:"database" toml:"database"`

	API struct {
		BaseURL         string        `yaml:"base_url" toml:"base_url"`
		Timeout         time.Duration `yaml:"timeout" toml:"timeout"`
		RemoteRanking   bool          `yaml:"remote_ranking" toml:"remote_ranking"`
		FallbackToLocal bool          `yaml:"fallback_to_local" toml:"fallback_to_local"`
		Limit           int           `yaml:"limit" toml:"limit"`
	} `yaml:"api" toml:"api"`

	Signals struct {
		Enabled          bool    `yaml:"enabled" toml:"enabled"`
		Endpoint         string  `yaml:"endpoint,omitempty" toml:"endpoint"`
		RatePerSecond    float64 `yaml:"rate_per_second" toml:"rate_per_second"`
		Burst            int     `yaml:"burst" toml:"burst"`
		FailureThreshold uint32  `yaml:"failure_threshold" toml:"failure_threshold"`
	} `yaml:"signals" toml:"signals"`

	Swipe struct {
		ViewportWidth     float64       `yaml:"viewport_width" toml:"viewport_width"`
		ThresholdFraction float64       `yaml:"threshold_fraction" toml:"threshold_fraction"`
		ExitDuration      time.Duration `yaml:"exit_duration" toml:"exit_duration"`
	} `yaml:"swipe" toml:"swipe"`

	Ranking struct {
		ShortPageLimit int `yaml:"short_page_limit" toml:"short_page_limit"`
		EpicPageMin    int `yaml:"epic_page_min" toml:"epic_page_min"`
	} `yaml:"ranking" toml:"ranking"`

	Catalog struct {
		Path string `yaml:"path,omitempty" toml:"path"`
	} `yaml:"catalog" toml:"catalog"`

	Logging struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Backend = BackendSQLite
	cfg.Database.Path = "./chapterverse.db"
	cfg.API.BaseURL = "http://localhost:8000"
	cfg.API.Timeout = 10 * time.Second
	cfg.API.Limit = 15
	cfg.Signals.Enabled = true
	cfg.Signals.RatePerSecond = 5
	cfg.Signals.Burst = 10
	cfg.Signals.FailureThreshold = 5
	// The swipe surface reports its own width; 100 units matches a
	// percentage-based layout.
	cfg.Swipe.ViewportWidth = 100
	cfg.Swipe.ThresholdFraction = 0.25
	cfg.Swipe.ExitDuration = 250 * time.Millisecond
	cfg.Ranking.ShortPageLimit = 300
	cfg.Ranking.EpicPageMin = 450
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	return cfg
}

// SignalEndpoint is the configured signal URL, or the ingestion route under
// the API base.
func (c *Config) SignalEndpoint() string {
	if c.Signals.Endpoint != "" {
		return c.Signals.Endpoint
	}
	return signals.DefaultEndpoint(c.API.BaseURL)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite, BackendBadger:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the %s backend", c.Database.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown database.backend %q", c.Database.Backend)
	}
	if c.Swipe.ThresholdFraction <= 0 || c.Swipe.ThresholdFraction >= 1 {
		return fmt.Errorf("swipe.threshold_fraction must be in (0, 1), got %v", c.Swipe.ThresholdFraction)
	}
	if c.API.RemoteRanking && c.API.BaseURL == "" {
		return errors.New("api.base_url is required when api.remote_ranking is enabled")
	}
	return nil
}

// LoadConfig reads the config file at path over the defaults. A missing file
// yields the defaults. Files ending in .toml are decoded as TOML, anything
// else as YAML.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Marshal encodes the config in the format implied by path's extension.
func (c *Config) Marshal(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(c)
}
