package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elonfeng/storesync/internal/config"
	"github.com/elonfeng/storesync/internal/scheduler"
	"github.com/elonfeng/storesync/internal/store"
	syncpkg "github.com/elonfeng/storesync/internal/sync"
	"github.com/elonfeng/storesync/pkg/alert"
	"github.com/elonfeng/storesync/pkg/server"
	"github.com/elonfeng/storesync/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildClient(cfg *config.Config) *source.Client {
	return source.NewClient(source.ClientConfig{
		APIBaseURL:          cfg.Source.APIBaseURL,
		StoreBaseURL:        cfg.Source.StoreBaseURL,
		UserAgent:           cfg.Source.UserAgent,
		PolitenessMin:       cfg.Source.ParsePolitenessMin(),
		PolitenessMax:       cfg.Source.ParsePolitenessMax(),
		Cooldown:            cfg.Source.ParseRateLimitCooldown(),
		MaxRateLimitRetries: cfg.Source.MaxRateLimitRetries,
		PageTimeout:         cfg.Source.ParsePageTimeout(),
		APITimeout:          cfg.Source.ParseAPITimeout(),
	})
}

func buildCatalog(cfg *config.Config) *source.Catalog {
	return source.NewCatalog(cfg.Source.CatalogBaseURL, cfg.Source.UserAgent)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildRunner(cfg *config.Config, db store.Store, opts syncpkg.Options) *syncpkg.Runner {
	if opts.Staleness == 0 && cfg.Sync.StalenessDays > 0 {
		opts.Staleness = time.Duration(cfg.Sync.StalenessDays) * 24 * time.Hour
	}
	if opts.SweepBatch == 0 {
		opts.SweepBatch = cfg.Sync.SweepBatch
	}
	if opts.RefreshWindow == 0 && cfg.Sync.RefreshDays > 0 {
		opts.RefreshWindow = time.Duration(cfg.Sync.RefreshDays) * 24 * time.Hour
	}
	if opts.RefreshLimit == 0 {
		opts.RefreshLimit = cfg.Sync.RefreshLimit
	}
	if opts.ProgressEvery == 0 {
		opts.ProgressEvery = cfg.Sync.ProgressEvery
	}
	return syncpkg.New(db, buildClient(cfg), buildAlertManager(cfg), opts)
}

func runSync(startID int64, limit int, noTags bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runner := buildRunner(cfg, db, syncpkg.Options{
		StartID:   startID,
		Limit:     limit,
		FetchTags: cfg.Sync.FetchTags && !noTags,
	})

	c, err := runner.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nsync done: %d processed, %d succeeded, %d skipped, %d failed, %d tags\n",
		c.Processed, c.Succeeded, c.Skipped, c.Failed, c.TagsCollected)
	return nil
}

func runRecheck(stalenessDays int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var opts syncpkg.Options
	if stalenessDays > 0 {
		opts.Staleness = time.Duration(stalenessDays) * 24 * time.Hour
	}
	opts.FetchTags = cfg.Sync.FetchTags

	runner := buildRunner(cfg, db, opts)

	c, err := runner.RunRecheck(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nrecheck done: %d processed, %d promoted, %d released, %d failed\n",
		c.Processed, c.Promoted, c.Released, c.Failed)
	return nil
}

func runRefresh(days, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var opts syncpkg.Options
	if days > 0 {
		opts.RefreshWindow = time.Duration(days) * 24 * time.Hour
	}
	if limit > 0 {
		opts.RefreshLimit = limit
	}

	runner := buildRunner(cfg, db, opts)

	c, err := runner.RunRefresh(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nrefresh done: %d processed, %d succeeded, %d skipped\n",
		c.Processed, c.Succeeded, c.Skipped)
	return nil
}

func runBackfill(batch, maxItems int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	opts := syncpkg.BackfillOptions{
		BatchSize:  cfg.Backfill.BatchSize,
		BatchPause: cfg.Backfill.ParseBatchPause(),
		MaxItems:   cfg.Backfill.MaxItems,
	}
	if batch > 0 {
		opts.BatchSize = batch
	}
	if maxItems > 0 {
		opts.MaxItems = maxItems
	}

	bf := syncpkg.NewBackfill(db, buildCatalog(cfg), opts)

	res, err := bf.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nbackfill done (run %s): %d processed, %d staged, %d failed, %d inserted\n",
		res.RunID, res.Processed, res.Staged, res.Failed, res.Inserted)
	return nil
}

func runReleaseDates() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	n, err := db.NormalizeReleaseDates(context.Background())
	if err != nil {
		return fmt.Errorf("normalize release dates: %w", err)
	}

	fmt.Fprintf(os.Stderr, "release dates: %d rows parsed\n", n)
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	srv := server.New(db, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runner := buildRunner(cfg, db, syncpkg.Options{FetchTags: cfg.Sync.FetchTags})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(runner,
		cfg.Schedule.ParseSyncInterval(),
		cfg.Schedule.ParseRecheckInterval(),
		cfg.Schedule.ParseRefreshInterval(),
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	srv := server.New(db, port)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}
