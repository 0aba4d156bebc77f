package store

import "strings"

// itemCols is the shared column set of the item-shaped tables. The
// insert, upsert and staging-merge SQL are all generated from it so the
// three stay in lockstep with the Item struct tags.
var itemCols = []string{
	"app_id", "name", "kind", "required_age", "is_free",
	"detailed_description", "short_description", "supported_languages",
	"header_image", "website", "developers", "publishers",
	"price_overview", "platforms", "metacritic_score", "categories",
	"genres", "screenshots", "movies", "recommendations_total",
	"release_date_raw", "coming_soon", "release_date_text",
	"release_date_actual", "support_info", "background",
	"content_descriptors", "minimum_requirements",
	"recommended_requirements", "num_reviews", "review_score",
	"review_score_desc", "total_positive", "total_negative",
	"total_reviews", "change_marker", "last_synced_at",
}

// itemColumnDDL is the column block shared by items, pending_recheck
// and the staging table.
const itemColumnDDL = `
    app_id                   INTEGER PRIMARY KEY,
    name                     TEXT NOT NULL,
    kind                     TEXT NOT NULL DEFAULT '',
    required_age             INTEGER,
    is_free                  BOOLEAN,
    detailed_description     TEXT NOT NULL DEFAULT '',
    short_description        TEXT NOT NULL DEFAULT '',
    supported_languages      TEXT NOT NULL DEFAULT '',
    header_image             TEXT NOT NULL DEFAULT '',
    website                  TEXT NOT NULL DEFAULT '',
    developers               TEXT NOT NULL DEFAULT '[]',
    publishers               TEXT NOT NULL DEFAULT '[]',
    price_overview           TEXT NOT NULL DEFAULT '{}',
    platforms                TEXT NOT NULL DEFAULT '{}',
    metacritic_score         INTEGER,
    categories               TEXT NOT NULL DEFAULT '[]',
    genres                   TEXT NOT NULL DEFAULT '[]',
    screenshots              TEXT NOT NULL DEFAULT '[]',
    movies                   TEXT NOT NULL DEFAULT '[]',
    recommendations_total    INTEGER,
    release_date_raw         TEXT NOT NULL DEFAULT '{}',
    coming_soon              BOOLEAN NOT NULL DEFAULT 0,
    release_date_text        TEXT NOT NULL DEFAULT '',
    release_date_actual      DATETIME,
    support_info             TEXT NOT NULL DEFAULT '{}',
    background               TEXT NOT NULL DEFAULT '',
    content_descriptors      TEXT NOT NULL DEFAULT '{}',
    minimum_requirements     TEXT NOT NULL DEFAULT '',
    recommended_requirements TEXT NOT NULL DEFAULT '',
    num_reviews              INTEGER,
    review_score             INTEGER,
    review_score_desc        TEXT NOT NULL DEFAULT '',
    total_positive           INTEGER,
    total_negative           INTEGER,
    total_reviews            INTEGER,
    change_marker            TEXT NOT NULL DEFAULT '',
    last_synced_at           DATETIME NOT NULL`

var schema = `
CREATE TABLE IF NOT EXISTS items (` + itemColumnDDL + `
);

CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
CREATE INDEX IF NOT EXISTS idx_items_coming_soon ON items(coming_soon);
CREATE INDEX IF NOT EXISTS idx_items_last_synced ON items(last_synced_at);
CREATE INDEX IF NOT EXISTS idx_items_release_actual ON items(release_date_actual);
CREATE INDEX IF NOT EXISTS idx_items_natural_key ON items(app_id, change_marker, name);

CREATE TABLE IF NOT EXISTS item_tags (
    app_id INTEGER NOT NULL,
    tag    TEXT NOT NULL,
    UNIQUE(app_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_item_tags_app ON item_tags(app_id);

CREATE TABLE IF NOT EXISTS price_history (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id           INTEGER NOT NULL,
    price            INTEGER,
    discount_percent INTEGER,
    initial_price    INTEGER,
    final_price      INTEGER,
    observed_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_app ON price_history(app_id);

CREATE TABLE IF NOT EXISTS pending_recheck (` + itemColumnDDL + `,
    stale_since  DATETIME NOT NULL,
    last_news_at DATETIME
);
`

// stagingDDL creates the run-scoped staging table. It is executed by
// ResetStaging after an unconditional drop, never by the migrations.
var stagingDDL = `
CREATE TABLE staging_items (` + itemColumnDDL + `,
    run_id    TEXT NOT NULL,
    staged_at DATETIME NOT NULL
);
`

// columnList joins the shared columns for INSERT ... SELECT statements.
func columnList() string {
	return strings.Join(itemCols, ", ")
}

// insertItemSQL builds a named insert for an item-shaped table with the
// given extra columns appended.
func insertItemSQL(table string, extra ...string) string {
	cols := append(append([]string{}, itemCols...), extra...)
	binds := make([]string, len(cols))
	for i, c := range cols {
		binds[i] = ":" + c
	}
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") +
		") VALUES (" + strings.Join(binds, ", ") + ")"
}

// upsertItemClause builds the DO UPDATE SET list covering every mutable
// column; only the primary key stays untouched.
func upsertItemClause() string {
	var sets []string
	for _, c := range itemCols {
		if c == "app_id" {
			continue
		}
		sets = append(sets, c+" = excluded."+c)
	}
	return " ON CONFLICT(app_id) DO UPDATE SET " + strings.Join(sets, ", ")
}
