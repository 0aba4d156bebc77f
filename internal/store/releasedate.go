package store

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/storesync/pkg/source"
)

// NormalizeReleaseDates fixes localized month abbreviations in the
// free-text release dates, then parses release_date_actual for every
// released item where it is still null. Runs as a single transaction
// and returns how many rows gained a parsed date.
func (s *SQLiteStore) NormalizeReleaseDates(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin release date pass: %w", err)
	}
	defer tx.Rollback()

	fixes := []struct{ from, to string }{
		{"maj", "May"},
		{"okt", "Oct"},
	}
	for _, f := range fixes {
		_, err := tx.ExecContext(ctx, `
			UPDATE items SET release_date_text = REPLACE(release_date_text, ?, ?)
			WHERE release_date_text LIKE '%' || ? || '%'
		`, f.from, f.to, f.from)
		if err != nil {
			return 0, fmt.Errorf("fix month %q: %w", f.from, err)
		}
	}

	var rows []struct {
		AppID int64  `db:"app_id"`
		Text  string `db:"release_date_text"`
	}
	err = tx.SelectContext(ctx, &rows, `
		SELECT app_id, release_date_text FROM items
		WHERE release_date_actual IS NULL
		  AND coming_soon = 0
		  AND TRIM(release_date_text) <> ''
	`)
	if err != nil {
		return 0, fmt.Errorf("select unparsed dates: %w", err)
	}

	var updated int64
	for _, row := range rows {
		parsed := source.ParseReleaseDate(row.Text)
		if parsed.IsZero() {
			continue
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE items SET release_date_actual = ? WHERE app_id = ?", parsed, row.AppID)
		if err != nil {
			return 0, fmt.Errorf("set release date %d: %w", row.AppID, err)
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit release date pass: %w", err)
	}
	return updated, nil
}

// RecentlyReleased returns items whose parsed release date falls within
// the window, newest first. This is the worklist for the review refresh
// mode.
func (s *SQLiteStore) RecentlyReleased(ctx context.Context, window time.Duration, limit int) ([]ReleasedItem, error) {
	query := `
		SELECT app_id, name, release_date_actual FROM items
		WHERE release_date_actual IS NOT NULL
		  AND release_date_actual >= ?
		  AND kind = 'game'
		ORDER BY release_date_actual DESC
	`
	args := []any{time.Now().UTC().Add(-window)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var released []ReleasedItem
	if err := s.db.SelectContext(ctx, &released, query, args...); err != nil {
		return nil, fmt.Errorf("recently released: %w", err)
	}
	return released, nil
}
