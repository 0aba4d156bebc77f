package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Database.Path != "./storesync.db" {
		t.Fatalf("db path = %q", cfg.Database.Path)
	}
	if cfg.Source.ParsePolitenessMin() != 300*time.Millisecond {
		t.Fatalf("politeness min = %v", cfg.Source.ParsePolitenessMin())
	}
	if cfg.Source.ParsePolitenessMax() != time.Second {
		t.Fatalf("politeness max = %v", cfg.Source.ParsePolitenessMax())
	}
	if cfg.Source.ParseRateLimitCooldown() != 2*time.Minute {
		t.Fatalf("cooldown = %v", cfg.Source.ParseRateLimitCooldown())
	}
	if cfg.Source.MaxRateLimitRetries != 3 {
		t.Fatalf("max retries = %d", cfg.Source.MaxRateLimitRetries)
	}
	if cfg.Sync.StalenessDays != 7 {
		t.Fatalf("staleness days = %d", cfg.Sync.StalenessDays)
	}
	if cfg.Backfill.ParseBatchPause() != time.Second {
		t.Fatalf("batch pause = %v", cfg.Backfill.ParseBatchPause())
	}
	if cfg.Schedule.ParseSyncInterval() != 6*time.Hour {
		t.Fatalf("sync interval = %v", cfg.Schedule.ParseSyncInterval())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database:
  path: /tmp/custom.db
source:
  politeness_min: 50ms
  max_rate_limit_retries: 5
sync:
  staleness_days: 14
schedule:
  sync_interval: 2h
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Fatalf("db path = %q", cfg.Database.Path)
	}
	if cfg.Source.ParsePolitenessMin() != 50*time.Millisecond {
		t.Fatalf("politeness min = %v", cfg.Source.ParsePolitenessMin())
	}
	if cfg.Source.MaxRateLimitRetries != 5 {
		t.Fatalf("max retries = %d", cfg.Source.MaxRateLimitRetries)
	}
	if cfg.Sync.StalenessDays != 14 {
		t.Fatalf("staleness days = %d", cfg.Sync.StalenessDays)
	}
	if cfg.Schedule.ParseSyncInterval() != 2*time.Hour {
		t.Fatalf("sync interval = %v", cfg.Schedule.ParseSyncInterval())
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Backfill.BatchSize != 100 {
		t.Fatalf("batch size = %d", cfg.Backfill.BatchSize)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STORESYNC_DB_PATH", "/tmp/env.db")
	t.Setenv("STORESYNC_USER_AGENT", "env-agent/1.0")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.example/T000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Fatalf("db path = %q", cfg.Database.Path)
	}
	if cfg.Source.UserAgent != "env-agent/1.0" {
		t.Fatalf("user agent = %q", cfg.Source.UserAgent)
	}
	if !cfg.Alerts.Slack.Enabled || cfg.Alerts.Slack.WebhookURL != "https://hooks.slack.example/T000" {
		t.Fatalf("slack alerts = %+v", cfg.Alerts.Slack)
	}
}

func TestParseDurationFallback(t *testing.T) {
	s := ScheduleConfig{SyncInterval: "not-a-duration"}
	if got := s.ParseSyncInterval(); got != 6*time.Hour {
		t.Fatalf("fallback = %v, want 6h", got)
	}
}
