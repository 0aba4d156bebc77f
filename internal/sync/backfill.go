package sync

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/elonfeng/storesync/internal/store"
	"github.com/elonfeng/storesync/pkg/source"
)

// BackfillOptions tunes a bulk catalog backfill.
type BackfillOptions struct {
	BatchSize  int
	BatchPause time.Duration
	// MaxItems caps the run; zero means the full catalog.
	MaxItems int
}

// BackfillResult reports what a backfill run did.
type BackfillResult struct {
	RunID     string
	Processed int
	Staged    int
	Failed    int
	Inserted  int64
}

// Backfill is the bulk ingestion pipeline: page the entire catalog into
// a fresh staging area without any per-item existence checks, then do
// one set-based deduplicating merge into items, then tear staging down.
type Backfill struct {
	store   store.Store
	catalog *source.Catalog
	opts    BackfillOptions
}

// NewBackfill creates a backfill pipeline with defaults filled in.
func NewBackfill(s store.Store, catalog *source.Catalog, opts BackfillOptions) *Backfill {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = time.Second
	}
	return &Backfill{store: s, catalog: catalog, opts: opts}
}

// Run executes one full backfill. The staging area is always recreated
// at the start and dropped at the end, even when the merge is
// abandoned, so a crashed run never leaks state into the next one.
func (b *Backfill) Run(ctx context.Context) (BackfillResult, error) {
	result := BackfillResult{RunID: uuid.NewString()}

	if err := b.store.ResetStaging(ctx); err != nil {
		return result, fmt.Errorf("reset staging: %w", err)
	}
	defer func() {
		if err := b.store.DropStaging(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "drop staging: %v\n", err)
		}
	}()

	total, err := b.catalog.Count(ctx)
	if err != nil {
		return result, fmt.Errorf("catalog count: %w", err)
	}
	if b.opts.MaxItems > 0 && total > b.opts.MaxItems {
		total = b.opts.MaxItems
	}
	fmt.Fprintf(os.Stderr, "backfill %s: %d catalog entries, batch size %d\n",
		result.RunID, total, b.opts.BatchSize)

	batch := 0
	for start := 0; start < total; start += b.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch++

		docs, err := b.catalog.Page(ctx, start, b.opts.BatchSize)
		if err != nil {
			// One retry, then skip the page and keep going.
			fmt.Fprintf(os.Stderr, "batch %d: %v, retrying\n", batch, err)
			sleep(ctx, b.opts.BatchPause)
			if docs, err = b.catalog.Page(ctx, start, b.opts.BatchSize); err != nil {
				fmt.Fprintf(os.Stderr, "batch %d: %v, skipping\n", batch, err)
				continue
			}
		}

		for _, doc := range docs {
			result.Processed++
			item, ok := source.NormalizeDoc(doc)
			if !ok {
				result.Failed++
				continue
			}
			if err := b.store.Stage(ctx, result.RunID, &item); err != nil {
				fmt.Fprintf(os.Stderr, "stage %d: %v\n", item.AppID, err)
				result.Failed++
				continue
			}
			result.Staged++
		}

		if batch%10 == 0 {
			fmt.Fprintf(os.Stderr, "checkpoint: batch %d, %d staged, %d failed\n",
				batch, result.Staged, result.Failed)
		}
		sleep(ctx, b.opts.BatchPause)
	}

	fmt.Fprintf(os.Stderr, "collection complete, merging staging into items...\n")
	inserted, err := b.store.MergeStaging(ctx)
	if err != nil {
		return result, fmt.Errorf("merge staging: %w", err)
	}
	result.Inserted = inserted

	fmt.Fprintf(os.Stderr, "backfill done: %d processed, %d staged, %d failed, %d new records\n",
		result.Processed, result.Staged, result.Failed, result.Inserted)
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
