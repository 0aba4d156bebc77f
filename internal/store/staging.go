package store

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/storesync/pkg/source"
)

// ResetStaging discards any leftover staging table from a prior run and
// creates a fresh one. Staging is never resumed across runs.
func (s *SQLiteStore) ResetStaging(ctx context.Context) error {
	if err := s.DropStaging(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stagingDDL); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}
	return nil
}

// Stage buffers one normalized record for the current backfill run.
// Staging is write-once per run, so there is no conflict handling;
// dedup happens at merge time.
func (s *SQLiteStore) Stage(ctx context.Context, runID string, item *source.Item) error {
	item.LastSyncedAt = time.Now().UTC()

	row := struct {
		source.Item
		RunID    string    `db:"run_id"`
		StagedAt time.Time `db:"staged_at"`
	}{Item: *item, RunID: runID, StagedAt: item.LastSyncedAt}

	_, err := s.db.NamedExecContext(ctx, insertItemSQL("staging_items", "run_id", "staged_at"), row)
	if err != nil {
		return fmt.Errorf("stage item %d: %w", item.AppID, err)
	}
	return nil
}

// MergeStaging inserts every staged record whose natural key
// (app_id, change_marker, name) is not already present in items and
// returns how many landed. Records matching an existing key are
// silently dropped; first write wins across runs.
func (s *SQLiteStore) MergeStaging(ctx context.Context) (int64, error) {
	cols := columnList()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (`+cols+`)
		SELECT `+cols+` FROM staging_items s
		WHERE NOT EXISTS (
			SELECT 1 FROM items m
			WHERE m.app_id = s.app_id
			  AND m.change_marker = s.change_marker
			  AND m.name = s.name
		)
		ON CONFLICT(app_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("merge staging: %w", err)
	}
	inserted, _ := res.RowsAffected()
	return inserted, nil
}

// DropStaging tears the staging table down unconditionally.
func (s *SQLiteStore) DropStaging(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS staging_items"); err != nil {
		return fmt.Errorf("drop staging: %w", err)
	}
	return nil
}
