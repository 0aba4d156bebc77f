package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/storesync/pkg/source"
)

// ListOpts controls item listing.
type ListOpts struct {
	Kind  string
	Since time.Time
	Limit int
}

// PendingItem is one entry of the recheck worklist.
type PendingItem struct {
	AppID      int64      `db:"app_id" json:"app_id"`
	Name       string     `db:"name" json:"name"`
	StaleSince time.Time  `db:"stale_since" json:"stale_since"`
	LastNewsAt *time.Time `db:"last_news_at" json:"last_news_at"`
}

// ReleasedItem is one row of the recently-released worklist.
type ReleasedItem struct {
	AppID      int64     `db:"app_id" json:"app_id"`
	Name       string    `db:"name" json:"name"`
	ReleasedAt time.Time `db:"release_date_actual" json:"released_at"`
}

// Stats summarizes what the store currently holds.
type Stats struct {
	Items       int64 `json:"items"`
	ComingSoon  int64 `json:"coming_soon"`
	Pending     int64 `json:"pending"`
	Tags        int64 `json:"tags"`
	PricePoints int64 `json:"price_points"`
}

// Store is the persistence boundary of the sync engine.
type Store interface {
	ResumeCursor(ctx context.Context) (int64, error)
	UpsertItem(ctx context.Context, item *source.Item) error
	GetItem(ctx context.Context, appID int64) (*source.Item, error)
	ListItems(ctx context.Context, opts ListOpts) ([]source.Item, error)
	UpdateReviews(ctx context.Context, appID int64, reviews source.ReviewSummary) error

	InsertTags(ctx context.Context, appID int64, tags []string) error
	ReplaceTags(ctx context.Context, appID int64, tags []string) error
	ListTags(ctx context.Context, appID int64) ([]string, error)

	PriceHistory(ctx context.Context, appID int64) ([]source.PricePoint, error)

	SweepToPending(ctx context.Context, staleness time.Duration, maxBatch int) (int64, error)
	ListPending(ctx context.Context) ([]PendingItem, error)
	MarkPendingActivity(ctx context.Context, appID int64, newsAt time.Time) error
	PromoteFromPending(ctx context.Context, appID int64) error

	NormalizeReleaseDates(ctx context.Context) (int64, error)
	RecentlyReleased(ctx context.Context, window time.Duration, limit int) ([]ReleasedItem, error)

	ResetStaging(ctx context.Context) error
	Stage(ctx context.Context, runID string, item *source.Item) error
	MergeStaging(ctx context.Context) (int64, error)
	DropStaging(ctx context.Context) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ResumeCursor returns one past the highest key currently stored, or 0
// when the store is empty.
func (s *SQLiteStore) ResumeCursor(ctx context.Context) (int64, error) {
	var cursor int64
	err := s.db.GetContext(ctx, &cursor, "SELECT COALESCE(MAX(app_id), -1) + 1 FROM items")
	if err != nil {
		return 0, fmt.Errorf("resume cursor: %w", err)
	}
	return cursor, nil
}

// UpsertItem inserts or updates an item keyed by app_id. Every mutable
// column is touched, last_synced_at is refreshed, and when the item
// carries a price observation a price_history row is appended; both
// writes commit in one transaction.
func (s *SQLiteStore) UpsertItem(ctx context.Context, item *source.Item) error {
	item.LastSyncedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert %d: %w", item.AppID, err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertItemSQL("items")+upsertItemClause(), item); err != nil {
		return fmt.Errorf("upsert item %d: %w", item.AppID, err)
	}

	if item.Price != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO price_history (app_id, price, discount_percent, initial_price, final_price, observed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, item.AppID, item.Price.Price, item.Price.DiscountPercent,
			item.Price.InitialPrice, item.Price.FinalPrice, item.LastSyncedAt)
		if err != nil {
			return fmt.Errorf("append price point %d: %w", item.AppID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert %d: %w", item.AppID, err)
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, appID int64) (*source.Item, error) {
	var item source.Item
	err := s.db.GetContext(ctx, &item, "SELECT * FROM items WHERE app_id = ?", appID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", appID, err)
	}
	return &item, nil
}

func (s *SQLiteStore) ListItems(ctx context.Context, opts ListOpts) ([]source.Item, error) {
	query := "SELECT * FROM items WHERE 1=1"
	var args []any

	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, opts.Kind)
	}
	if !opts.Since.IsZero() {
		query += " AND last_synced_at >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY last_synced_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var items []source.Item
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// UpdateReviews refreshes only the review aggregate columns of an
// existing item, for the recent-releases refresh mode.
func (s *SQLiteStore) UpdateReviews(ctx context.Context, appID int64, reviews source.ReviewSummary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET
			num_reviews = ?, review_score = ?, review_score_desc = ?,
			total_positive = ?, total_negative = ?, total_reviews = ?,
			last_synced_at = ?
		WHERE app_id = ?
	`, reviews.NumReviews, reviews.ReviewScore, reviews.ReviewScoreDesc,
		reviews.TotalPositive, reviews.TotalNegative, reviews.TotalReviews,
		time.Now().UTC(), appID)
	if err != nil {
		return fmt.Errorf("update reviews %d: %w", appID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update reviews %d: no such item", appID)
	}
	return nil
}

// InsertTags adds tags for an item, silently ignoring pairs that
// already exist. Used on first-time sync.
func (s *SQLiteStore) InsertTags(ctx context.Context, appID int64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tags %d: %w", appID, err)
	}
	defer tx.Rollback()

	if err := insertTagsTx(ctx, tx, appID, tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tags %d: %w", appID, err)
	}
	return nil
}

// ReplaceTags swaps the full tag set for an item: delete everything,
// insert the new set. Used on re-sync.
func (s *SQLiteStore) ReplaceTags(ctx context.Context, appID int64, tags []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tags %d: %w", appID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM item_tags WHERE app_id = ?", appID); err != nil {
		return fmt.Errorf("clear tags %d: %w", appID, err)
	}
	if err := insertTagsTx(ctx, tx, appID, tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tags %d: %w", appID, err)
	}
	return nil
}

func insertTagsTx(ctx context.Context, tx *sqlx.Tx, appID int64, tags []string) error {
	for _, tag := range tags {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO item_tags (app_id, tag) VALUES (?, ?) ON CONFLICT(app_id, tag) DO NOTHING",
			appID, tag)
		if err != nil {
			return fmt.Errorf("insert tag %d %q: %w", appID, tag, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListTags(ctx context.Context, appID int64) ([]string, error) {
	var tags []string
	err := s.db.SelectContext(ctx, &tags,
		"SELECT tag FROM item_tags WHERE app_id = ? ORDER BY tag", appID)
	if err != nil {
		return nil, fmt.Errorf("list tags %d: %w", appID, err)
	}
	return tags, nil
}

func (s *SQLiteStore) PriceHistory(ctx context.Context, appID int64) ([]source.PricePoint, error) {
	var points []source.PricePoint
	err := s.db.SelectContext(ctx, &points, `
		SELECT app_id, price, discount_percent, initial_price, final_price, observed_at
		FROM price_history WHERE app_id = ? ORDER BY observed_at
	`, appID)
	if err != nil {
		return nil, fmt.Errorf("price history %d: %w", appID, err)
	}
	return points, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	counts := []struct {
		dst   *int64
		query string
	}{
		{&stats.Items, "SELECT COUNT(*) FROM items"},
		{&stats.ComingSoon, "SELECT COUNT(*) FROM items WHERE coming_soon = 1"},
		{&stats.Pending, "SELECT COUNT(*) FROM pending_recheck"},
		{&stats.Tags, "SELECT COUNT(*) FROM item_tags"},
		{&stats.PricePoints, "SELECT COUNT(*) FROM price_history"},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	return stats, nil
}
