package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	syncpkg "github.com/elonfeng/storesync/internal/sync"
)

// Scheduler runs periodic catalog sync, pending rechecks and review refresh.
type Scheduler struct {
	runner     *syncpkg.Runner
	syncInt    time.Duration
	recheckInt time.Duration
	refreshInt time.Duration
}

// New creates a new scheduler.
func New(runner *syncpkg.Runner, syncInt, recheckInt, refreshInt time.Duration) *Scheduler {
	if syncInt == 0 {
		syncInt = 6 * time.Hour
	}
	if recheckInt == 0 {
		recheckInt = 24 * time.Hour
	}
	if refreshInt == 0 {
		refreshInt = 12 * time.Hour
	}
	return &Scheduler{
		runner:     runner,
		syncInt:    syncInt,
		recheckInt: recheckInt,
		refreshInt: refreshInt,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	syncTicker := time.NewTicker(s.syncInt)
	recheckTicker := time.NewTicker(s.recheckInt)
	refreshTicker := time.NewTicker(s.refreshInt)
	defer syncTicker.Stop()
	defer recheckTicker.Stop()
	defer refreshTicker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial sync...")
	s.runSync(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (sync every %s, recheck every %s, refresh every %s)\n",
		s.syncInt, s.recheckInt, s.refreshInt)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-syncTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: syncing...")
			s.runSync(ctx)
		case <-recheckTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: rechecking pending...")
			s.runRecheck(ctx)
		case <-refreshTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: refreshing reviews...")
			s.runRefresh(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	c, err := s.runner.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  sync error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "  sync: %d processed, %d succeeded, %d skipped, %d failed\n",
		c.Processed, c.Succeeded, c.Skipped, c.Failed)
}

func (s *Scheduler) runRecheck(ctx context.Context) {
	c, err := s.runner.RunRecheck(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  recheck error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "  recheck: %d processed, %d promoted, %d released\n",
		c.Processed, c.Promoted, c.Released)
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	c, err := s.runner.RunRefresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  refresh error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "  refresh: %d processed, %d succeeded, %d skipped\n",
		c.Processed, c.Succeeded, c.Skipped)
}
