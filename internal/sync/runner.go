package sync

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/elonfeng/storesync/internal/store"
	"github.com/elonfeng/storesync/pkg/alert"
	"github.com/elonfeng/storesync/pkg/source"
)

// Options tunes a Runner.
type Options struct {
	// StartID is an explicit resume position. When zero the runner asks
	// the store for its cursor, which makes a killed-and-restarted run
	// safe to relaunch with no arguments.
	StartID int64

	// Limit caps how many catalog entries one run processes; zero means
	// run to exhaustion.
	Limit int

	// FetchTags toggles the per-item store-page tag scrape.
	FetchTags bool

	// ProgressEvery controls the cadence of running-total log lines.
	ProgressEvery int

	// Staleness and SweepBatch drive the pending-recheck sweep.
	Staleness  time.Duration
	SweepBatch int

	// RefreshWindow and RefreshLimit drive the recent-release review
	// refresh.
	RefreshWindow time.Duration
	RefreshLimit  int
}

// Counters are the running totals a run reports.
type Counters struct {
	Processed     int
	Succeeded     int
	Skipped       int
	Failed        int
	TagsCollected int
	Promoted      int
	Released      int
}

// Runner is the sequential sync loop: fetch, normalize, persist, one
// item at a time. Exactly one item is ever in flight, which bounds the
// load on both the remote source and the store.
type Runner struct {
	store  store.Store
	client *source.Client
	alerts *alert.Manager
	opts   Options
}

// New creates a runner with defaults filled in.
func New(s store.Store, client *source.Client, alerts *alert.Manager, opts Options) *Runner {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	if opts.Staleness <= 0 {
		opts.Staleness = 7 * 24 * time.Hour
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 1000
	}
	if opts.RefreshWindow <= 0 {
		opts.RefreshWindow = 30 * 24 * time.Hour
	}
	return &Runner{store: s, client: client, alerts: alerts, opts: opts}
}

// Run performs one incremental append pass: walk the app list from the
// resume cursor, sync each game-kind entry, skip everything else.
// Failure to obtain the cursor or the app list is fatal; every per-item
// failure is counted and skipped.
func (r *Runner) Run(ctx context.Context) (Counters, error) {
	var c Counters

	cursor := r.opts.StartID
	if cursor <= 0 {
		var err error
		cursor, err = r.store.ResumeCursor(ctx)
		if err != nil {
			return c, fmt.Errorf("resume cursor: %w", err)
		}
		fmt.Fprintf(os.Stderr, "resuming from app_id %d\n", cursor)
	} else {
		fmt.Fprintf(os.Stderr, "starting from app_id %d\n", cursor)
	}

	apps, err := r.client.AppList(ctx)
	if err != nil {
		return c, fmt.Errorf("fetch app list: %w", err)
	}

	var work []source.CatalogEntry
	for _, app := range apps {
		if app.ID >= cursor {
			work = append(work, app)
		}
	}
	if r.opts.Limit > 0 && len(work) > r.opts.Limit {
		work = work[:r.opts.Limit]
	}
	fmt.Fprintf(os.Stderr, "%d apps to process\n", len(work))

	for _, app := range work {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		r.syncOne(ctx, app.ID, app.Name, true, &c)
		c.Processed++
		r.progress(&c, len(work))
	}

	fmt.Fprintf(os.Stderr, "sync done: %d processed, %d succeeded, %d skipped, %d failed, %d tags\n",
		c.Processed, c.Succeeded, c.Skipped, c.Failed, c.TagsCollected)
	return c, nil
}

// syncOne runs the fetch → normalize → persist pipeline for a single
// item. firstSync controls whether tags are inserted fresh or replace
// the existing set.
func (r *Runner) syncOne(ctx context.Context, appID int64, name string, firstSync bool, c *Counters) *source.Item {
	detail, err := r.client.Detail(ctx, appID)
	if err != nil || detail == nil {
		c.Skipped++
		return nil
	}

	if kind := source.Kind(detail.Type); !source.KeepKind(kind) {
		fmt.Fprintf(os.Stderr, "skipping %s (%d): kind %q\n", name, appID, detail.Type)
		c.Skipped++
		return nil
	}

	reviews := r.client.Reviews(ctx, appID)
	item := source.Normalize(appID, name, detail, reviews)

	if err := r.store.UpsertItem(ctx, &item); err != nil {
		fmt.Fprintf(os.Stderr, "persist %s (%d): %v\n", name, appID, err)
		c.Failed++
		return nil
	}
	c.Succeeded++

	if r.opts.FetchTags {
		if tags := r.client.Tags(ctx, appID); len(tags) > 0 {
			var err error
			if firstSync {
				err = r.store.InsertTags(ctx, appID, tags)
			} else {
				err = r.store.ReplaceTags(ctx, appID, tags)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "tags %s (%d): %v\n", name, appID, err)
			} else {
				c.TagsCollected += len(tags)
			}
		}
	}
	return &item
}

// RunRecheck sweeps stale coming-soon items into the pending partition,
// then walks the whole worklist: probe the news feed, re-fetch, upsert
// back into items, and promote out of pending. Items whose fetch fails
// simply stay pending for the next pass.
func (r *Runner) RunRecheck(ctx context.Context) (Counters, error) {
	var c Counters

	moved, err := r.store.SweepToPending(ctx, r.opts.Staleness, r.opts.SweepBatch)
	if err != nil {
		return c, fmt.Errorf("sweep to pending: %w", err)
	}
	fmt.Fprintf(os.Stderr, "swept %d stale items to pending\n", moved)

	pending, err := r.store.ListPending(ctx)
	if err != nil {
		return c, fmt.Errorf("list pending: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%d items awaiting recheck\n", len(pending))

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		c.Processed++

		if newsAt := r.client.LatestNews(ctx, p.AppID); !newsAt.IsZero() {
			if err := r.store.MarkPendingActivity(ctx, p.AppID, newsAt); err != nil {
				fmt.Fprintf(os.Stderr, "news %d: %v\n", p.AppID, err)
			}
		}

		item := r.syncOne(ctx, p.AppID, p.Name, false, &c)
		if item == nil {
			continue
		}

		if err := r.store.PromoteFromPending(ctx, p.AppID); err != nil {
			fmt.Fprintf(os.Stderr, "promote %d: %v\n", p.AppID, err)
			continue
		}
		c.Promoted++

		if !item.ComingSoon {
			c.Released++
			r.announceRelease(ctx, item)
		}
		r.progress(&c, len(pending))
	}

	fmt.Fprintf(os.Stderr, "recheck done: %d processed, %d promoted, %d released, %d skipped\n",
		c.Processed, c.Promoted, c.Released, c.Skipped)
	return c, nil
}

func (r *Runner) announceRelease(ctx context.Context, item *source.Item) {
	fmt.Fprintf(os.Stderr, "released: %s (%d) on %q\n", item.Name, item.AppID, item.ReleaseDateText)
	if !r.alerts.HasNotifiers() {
		return
	}

	n := &alert.Notification{
		AppID:       item.AppID,
		Name:        item.Name,
		URL:         r.client.StorePageURL(item.AppID),
		ReleaseDate: item.ReleaseDateText,
	}
	if item.TotalReviews != nil {
		n.Reviews = *item.TotalReviews
	}
	if err := r.alerts.Broadcast(ctx, n); err != nil {
		fmt.Fprintf(os.Stderr, "alert %d: %v\n", item.AppID, err)
	}
}

// RunRefresh re-fetches review aggregates (and optionally tags) for
// items released within the refresh window. It never touches the rest
// of the record.
func (r *Runner) RunRefresh(ctx context.Context) (Counters, error) {
	var c Counters

	released, err := r.store.RecentlyReleased(ctx, r.opts.RefreshWindow, r.opts.RefreshLimit)
	if err != nil {
		return c, fmt.Errorf("recently released: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%d recently released items to refresh\n", len(released))

	for _, g := range released {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		c.Processed++

		reviews := r.client.Reviews(ctx, g.AppID)
		if !reviews.Valid {
			c.Skipped++
			continue
		}
		if err := r.store.UpdateReviews(ctx, g.AppID, reviews); err != nil {
			fmt.Fprintf(os.Stderr, "refresh %s (%d): %v\n", g.Name, g.AppID, err)
			c.Failed++
			continue
		}
		c.Succeeded++

		if r.opts.FetchTags {
			if tags := r.client.Tags(ctx, g.AppID); len(tags) > 0 {
				if err := r.store.ReplaceTags(ctx, g.AppID, tags); err != nil {
					fmt.Fprintf(os.Stderr, "tags %d: %v\n", g.AppID, err)
				} else {
					c.TagsCollected += len(tags)
				}
			}
		}
		r.progress(&c, len(released))
	}

	fmt.Fprintf(os.Stderr, "refresh done: %d processed, %d updated, %d skipped, %d failed\n",
		c.Processed, c.Succeeded, c.Skipped, c.Failed)
	return c, nil
}

func (r *Runner) progress(c *Counters, total int) {
	if c.Processed%r.opts.ProgressEvery != 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "progress: %d/%d processed, %d succeeded, %d skipped, %d tags collected\n",
		c.Processed, total, c.Succeeded, c.Skipped, c.TagsCollected)
}
