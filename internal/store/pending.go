package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SweepToPending moves up to maxBatch unreleased items whose last sync
// is older than the staleness window into the pending_recheck
// partition, oldest first. Insert-then-delete runs inside one ordered
// transaction, so either the full move lands or none of it does.
func (s *SQLiteStore) SweepToPending(ctx context.Context, staleness time.Duration, maxBatch int) (int64, error) {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	cutoff := time.Now().UTC().Add(-staleness)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sweep: %w", err)
	}
	defer tx.Rollback()

	var ids []int64
	err = tx.SelectContext(ctx, &ids, `
		SELECT app_id FROM items
		WHERE coming_soon = 1 AND last_synced_at < ?
		ORDER BY last_synced_at ASC
		LIMIT ?
	`, cutoff, maxBatch)
	if err != nil {
		return 0, fmt.Errorf("select stale items: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cols := columnList()
	query, args, err := sqlx.In(`
		INSERT INTO pending_recheck (`+cols+`, stale_since)
		SELECT `+cols+`, ? FROM items WHERE app_id IN (?)
	`, time.Now().UTC(), ids)
	if err != nil {
		return 0, fmt.Errorf("build sweep insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("copy to pending: %w", err)
	}
	moved, _ := res.RowsAffected()

	query, args, err = sqlx.In("DELETE FROM items WHERE app_id IN (?)", ids)
	if err != nil {
		return 0, fmt.Errorf("build sweep delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("remove swept items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sweep: %w", err)
	}
	return moved, nil
}

// ListPending returns every item awaiting re-check, ordered by key.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]PendingItem, error) {
	var pending []PendingItem
	err := s.db.SelectContext(ctx, &pending, `
		SELECT app_id, name, stale_since, last_news_at
		FROM pending_recheck ORDER BY app_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return pending, nil
}

// MarkPendingActivity records the newest announcement timestamp seen
// for a pending item.
func (s *SQLiteStore) MarkPendingActivity(ctx context.Context, appID int64, newsAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pending_recheck SET last_news_at = ? WHERE app_id = ?", newsAt, appID)
	if err != nil {
		return fmt.Errorf("mark pending activity %d: %w", appID, err)
	}
	return nil
}

// PromoteFromPending removes an entry from the recheck partition once
// its data has been re-synced into items.
func (s *SQLiteStore) PromoteFromPending(ctx context.Context, appID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_recheck WHERE app_id = ?", appID)
	if err != nil {
		return fmt.Errorf("promote %d: %w", appID, err)
	}
	return nil
}
