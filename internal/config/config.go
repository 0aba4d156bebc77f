package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Sync     SyncConfig     `yaml:"sync"`
	Backfill BackfillConfig `yaml:"backfill"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourceConfig configures the remote endpoints and the politeness and
// backoff contract of the source client.
type SourceConfig struct {
	APIBaseURL     string `yaml:"api_base_url"`
	StoreBaseURL   string `yaml:"store_base_url"`
	CatalogBaseURL string `yaml:"catalog_base_url"`
	UserAgent      string `yaml:"user_agent"`

	PolitenessMin       string `yaml:"politeness_min"`
	PolitenessMax       string `yaml:"politeness_max"`
	RateLimitCooldown   string `yaml:"rate_limit_cooldown"`
	MaxRateLimitRetries int    `yaml:"max_rate_limit_retries"`
	PageTimeout         string `yaml:"page_timeout"`
	APITimeout          string `yaml:"api_timeout"`
}

// SyncConfig tunes the batch driver.
type SyncConfig struct {
	FetchTags     bool   `yaml:"fetch_tags"`
	ProgressEvery int    `yaml:"progress_every"`
	StalenessDays int    `yaml:"staleness_days"`
	SweepBatch    int    `yaml:"sweep_batch"`
	RefreshDays   int    `yaml:"refresh_days"`
	RefreshLimit  int    `yaml:"refresh_limit"`
}

// BackfillConfig tunes the bulk staging pipeline.
type BackfillConfig struct {
	BatchSize  int    `yaml:"batch_size"`
	BatchPause string `yaml:"batch_pause"`
	MaxItems   int    `yaml:"max_items"`
}

// ParseBatchPause returns the pause between catalog pages.
func (b BackfillConfig) ParseBatchPause() time.Duration {
	return parseDuration(b.BatchPause, time.Second)
}

// ScheduleConfig configures the daemon intervals.
type ScheduleConfig struct {
	SyncInterval    string `yaml:"sync_interval"`
	RecheckInterval string `yaml:"recheck_interval"`
	RefreshInterval string `yaml:"refresh_interval"`
}

// ParseSyncInterval returns the sync interval as time.Duration.
func (s ScheduleConfig) ParseSyncInterval() time.Duration {
	return parseDuration(s.SyncInterval, 6*time.Hour)
}

// ParseRecheckInterval returns the recheck interval as time.Duration.
func (s ScheduleConfig) ParseRecheckInterval() time.Duration {
	return parseDuration(s.RecheckInterval, 24*time.Hour)
}

// ParseRefreshInterval returns the refresh interval as time.Duration.
func (s ScheduleConfig) ParseRefreshInterval() time.Duration {
	return parseDuration(s.RefreshInterval, 12*time.Hour)
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP status server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// ParsePolitenessMin returns the lower politeness bound.
func (s SourceConfig) ParsePolitenessMin() time.Duration {
	return parseDuration(s.PolitenessMin, 300*time.Millisecond)
}

// ParsePolitenessMax returns the upper politeness bound.
func (s SourceConfig) ParsePolitenessMax() time.Duration {
	return parseDuration(s.PolitenessMax, time.Second)
}

// ParseRateLimitCooldown returns the rate-limit cooldown.
func (s SourceConfig) ParseRateLimitCooldown() time.Duration {
	return parseDuration(s.RateLimitCooldown, 2*time.Minute)
}

// ParsePageTimeout returns the store-page scrape timeout.
func (s SourceConfig) ParsePageTimeout() time.Duration {
	return parseDuration(s.PageTimeout, 10*time.Second)
}

// ParseAPITimeout returns the JSON endpoint timeout.
func (s SourceConfig) ParseAPITimeout() time.Duration {
	return parseDuration(s.APITimeout, 30*time.Second)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./storesync.db"},
		Source: SourceConfig{
			APIBaseURL:          "https://api.steampowered.com",
			StoreBaseURL:        "https://store.steampowered.com",
			CatalogBaseURL:      "https://search.nintendo-europe.com/en/select",
			PolitenessMin:       "300ms",
			PolitenessMax:       "1s",
			RateLimitCooldown:   "2m",
			MaxRateLimitRetries: 3,
			PageTimeout:         "10s",
			APITimeout:          "30s",
		},
		Sync: SyncConfig{
			FetchTags:     true,
			ProgressEvery: 10,
			StalenessDays: 7,
			SweepBatch:    1000,
			RefreshDays:   30,
		},
		Backfill: BackfillConfig{
			BatchSize:  100,
			BatchPause: "1s",
		},
		Schedule: ScheduleConfig{
			SyncInterval:    "6h",
			RecheckInterval: "24h",
			RefreshInterval: "12h",
		},
		Alerts: AlertsConfig{},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORESYNC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STORESYNC_USER_AGENT"); v != "" {
		cfg.Source.UserAgent = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
