// Package common provides shared utilities for tradewatch
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Source kinds accepted in SourcesConfig.Order
const (
	SourceKindHTML = "html"
	SourceKindAPI  = "api"
)

// Config holds all configuration for tradewatch
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Cache       CacheConfig   `toml:"cache"`
	Sources     SourcesConfig `toml:"sources"`
	Clients     ClientsConfig `toml:"clients"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// CacheConfig holds record cache configuration
type CacheConfig struct {
	TTL             string `toml:"ttl"`
	RefreshSchedule string `toml:"refresh_schedule"` // cron spec, empty disables the background job
	WarmOnStart     bool   `toml:"warm_on_start"`
}

// GetTTL parses and returns the cache TTL
func (c *CacheConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return FreshnessTradeRecords
	}
	return d
}

// SourcesConfig lists trade sources in priority order and their settings.
type SourcesConfig struct {
	Order []string         `toml:"order"`
	HTML  HTMLSourceConfig `toml:"html"`
	API   APISourceConfig  `toml:"api"`
}

// HTMLSourceConfig configures the content-heuristic listing page source
type HTMLSourceConfig struct {
	URL          string `toml:"url"`
	ProbeTimeout string `toml:"probe_timeout"`
	FetchTimeout string `toml:"fetch_timeout"`
	Seed         int64  `toml:"seed"` // 0 = seed from clock
}

// GetProbeTimeout parses and returns the availability probe timeout
func (c *HTMLSourceConfig) GetProbeTimeout() time.Duration {
	return parseDurationOr(c.ProbeTimeout, 10*time.Second)
}

// GetFetchTimeout parses and returns the page fetch timeout
func (c *HTMLSourceConfig) GetFetchTimeout() time.Duration {
	return parseDurationOr(c.FetchTimeout, 15*time.Second)
}

// APISourceConfig configures the structured trades API source
type APISourceConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *APISourceConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 10*time.Second)
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	TickerLookup TickerLookupConfig `toml:"ticker_lookup"`
}

// TickerLookupConfig holds company name lookup configuration
type TickerLookupConfig struct {
	BaseURL    string `toml:"base_url"`
	Limit      int    `toml:"limit"`
	RateLimit  int    `toml:"rate_limit"`
	Timeout    string `toml:"timeout"`
	BatchPause string `toml:"batch_pause"`
}

// GetTimeout parses and returns the timeout duration
func (c *TickerLookupConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 5*time.Second)
}

// GetBatchPause parses and returns the pause between batch lookups
func (c *TickerLookupConfig) GetBatchPause() time.Duration {
	d, err := time.ParseDuration(c.BatchPause)
	if err != nil || d < 0 {
		return 200 * time.Millisecond
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Cache: CacheConfig{
			TTL:             "30m",
			RefreshSchedule: "@every 30m",
			WarmOnStart:     true,
		},
		Sources: SourcesConfig{
			Order: []string{SourceKindHTML, SourceKindAPI},
			HTML: HTMLSourceConfig{
				URL:          "https://www.capitoltrades.com/trades",
				ProbeTimeout: "10s",
				FetchTimeout: "15s",
			},
			API: APISourceConfig{
				URL:     "https://bff.capitoltrades.com/trades",
				Timeout: "10s",
			},
		},
		Clients: ClientsConfig{
			TickerLookup: TickerLookupConfig{
				BaseURL:    "https://ticker-2e1ica8b9.now.sh",
				Limit:      5,
				RateLimit:  5,
				Timeout:    "5s",
				BatchPause: "200ms",
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/tradewatch.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TRADEWATCH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TRADEWATCH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TRADEWATCH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TRADEWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if ttl := os.Getenv("TRADEWATCH_CACHE_TTL"); ttl != "" {
		config.Cache.TTL = ttl
	}

	if sched, ok := os.LookupEnv("TRADEWATCH_REFRESH_SCHEDULE"); ok {
		config.Cache.RefreshSchedule = sched
	}

	if order := os.Getenv("TRADEWATCH_SOURCES"); order != "" {
		parts := strings.Split(order, ",")
		kinds := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				kinds = append(kinds, p)
			}
		}
		config.Sources.Order = kinds
	}

	if v := os.Getenv("TRADEWATCH_HTML_URL"); v != "" {
		config.Sources.HTML.URL = v
	}
	if v := os.Getenv("TRADEWATCH_API_URL"); v != "" {
		config.Sources.API.URL = v
	}
	if v := os.Getenv("TRADEWATCH_TICKER_LOOKUP_URL"); v != "" {
		config.Clients.TickerLookup.BaseURL = v
	}
	if v := os.Getenv("TRADEWATCH_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Sources.HTML.Seed = seed
		}
	}
}

// Validate checks that every configured source kind is known and not repeated.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources.Order))
	for _, kind := range c.Sources.Order {
		switch kind {
		case SourceKindHTML, SourceKindAPI:
		default:
			return fmt.Errorf("unknown source kind %q in sources.order", kind)
		}
		if seen[kind] {
			return fmt.Errorf("source kind %q listed more than once in sources.order", kind)
		}
		seen[kind] = true
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
