package source

import (
	"encoding/json"
	"time"
)

// Kind classifies a catalog entry. Only games are retained; everything
// else (dlc, demo, music, video, ...) is skipped by the sync loop.
type Kind string

const (
	KindGame  Kind = "game"
	KindDLC   Kind = "dlc"
	KindDemo  Kind = "demo"
	KindMusic Kind = "music"
	KindVideo Kind = "video"
)

// KeepKind reports whether entries of this kind are persisted.
func KeepKind(k Kind) bool {
	return k == KindGame
}

// CatalogEntry is one row of the storefront app list.
type CatalogEntry struct {
	ID   int64  `json:"appid"`
	Name string `json:"name"`
}

// PricePoint is a single pricing observation, appended to the price
// history on every sync that carries a price block.
type PricePoint struct {
	AppID           int64      `db:"app_id" json:"app_id"`
	Price           *int64     `db:"price" json:"price"`
	DiscountPercent *int64     `db:"discount_percent" json:"discount_percent"`
	InitialPrice    *int64     `db:"initial_price" json:"initial_price"`
	FinalPrice      *int64     `db:"final_price" json:"final_price"`
	ObservedAt      *time.Time `db:"observed_at" json:"observed_at"`
}

// Item is the canonical record shape every raw response is normalized
// into. Nested structures (categories, genres, screenshots, ...) are
// carried as verbatim JSON text; the engine never interprets them.
// Nullable fields are pointers so missing upstream data stays NULL.
type Item struct {
	AppID                   int64      `db:"app_id" json:"app_id"`
	Name                    string     `db:"name" json:"name"`
	Kind                    string     `db:"kind" json:"kind"`
	RequiredAge             *int64     `db:"required_age" json:"required_age"`
	IsFree                  *bool      `db:"is_free" json:"is_free"`
	DetailedDescription     string     `db:"detailed_description" json:"detailed_description"`
	ShortDescription        string     `db:"short_description" json:"short_description"`
	SupportedLanguages      string     `db:"supported_languages" json:"supported_languages"`
	HeaderImage             string     `db:"header_image" json:"header_image"`
	Website                 string     `db:"website" json:"website"`
	Developers              string     `db:"developers" json:"developers"`
	Publishers              string     `db:"publishers" json:"publishers"`
	PriceOverview           string     `db:"price_overview" json:"price_overview"`
	Platforms               string     `db:"platforms" json:"platforms"`
	MetacriticScore         *int64     `db:"metacritic_score" json:"metacritic_score"`
	Categories              string     `db:"categories" json:"categories"`
	Genres                  string     `db:"genres" json:"genres"`
	Screenshots             string     `db:"screenshots" json:"screenshots"`
	Movies                  string     `db:"movies" json:"movies"`
	RecommendationsTotal    *int64     `db:"recommendations_total" json:"recommendations_total"`
	ReleaseDateRaw          string     `db:"release_date_raw" json:"release_date_raw"`
	ComingSoon              bool       `db:"coming_soon" json:"coming_soon"`
	ReleaseDateText         string     `db:"release_date_text" json:"release_date_text"`
	ReleaseDateActual       *time.Time `db:"release_date_actual" json:"release_date_actual"`
	SupportInfo             string     `db:"support_info" json:"support_info"`
	Background              string     `db:"background" json:"background"`
	ContentDescriptors      string     `db:"content_descriptors" json:"content_descriptors"`
	MinimumRequirements     string     `db:"minimum_requirements" json:"minimum_requirements"`
	RecommendedRequirements string     `db:"recommended_requirements" json:"recommended_requirements"`
	NumReviews              *int64     `db:"num_reviews" json:"num_reviews"`
	ReviewScore             *int64     `db:"review_score" json:"review_score"`
	ReviewScoreDesc         string     `db:"review_score_desc" json:"review_score_desc"`
	TotalPositive           *int64     `db:"total_positive" json:"total_positive"`
	TotalNegative           *int64     `db:"total_negative" json:"total_negative"`
	TotalReviews            *int64     `db:"total_reviews" json:"total_reviews"`
	ChangeMarker            string     `db:"change_marker" json:"change_marker"`
	LastSyncedAt            time.Time  `db:"last_synced_at" json:"last_synced_at"`

	// Price is the observation extracted from the price block during
	// this sync, nil when the detail response had none. Persisted as an
	// append-only PricePoint row alongside the item upsert.
	Price *PricePoint `db:"-" json:"-"`
}

// Requirements is a minimum/recommended pair that arrives from the
// detail endpoint either as an object {"minimum": ..., "recommended": ...}
// or as a two-element list [minimum, recommended]. An empty list or an
// unknown shape decodes to empty strings.
type Requirements struct {
	Minimum     string `json:"minimum"`
	Recommended string `json:"recommended"`
}

func (r *Requirements) UnmarshalJSON(data []byte) error {
	type plain Requirements
	var obj plain
	if err := json.Unmarshal(data, &obj); err == nil {
		*r = Requirements(obj)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		r.Minimum, r.Recommended = "", ""
		if len(list) > 0 {
			r.Minimum = list[0]
		}
		if len(list) > 1 {
			r.Recommended = list[1]
		}
		return nil
	}

	// Unknown variant: leave both empty rather than failing the record.
	*r = Requirements{}
	return nil
}

// RawDetail is the nested detail payload for one item, decoded
// permissively. Blobs the engine never interprets stay as raw JSON.
type RawDetail struct {
	Type                string          `json:"type"`
	Name                string          `json:"name"`
	RequiredAge         json.RawMessage `json:"required_age"`
	IsFree              *bool           `json:"is_free"`
	DetailedDescription string          `json:"detailed_description"`
	ShortDescription    string          `json:"short_description"`
	SupportedLanguages  string          `json:"supported_languages"`
	HeaderImage         string          `json:"header_image"`
	Website             string          `json:"website"`
	Developers          json.RawMessage `json:"developers"`
	Publishers          json.RawMessage `json:"publishers"`
	PriceOverview       *RawPrice       `json:"price_overview"`
	Platforms           json.RawMessage `json:"platforms"`
	Metacritic          *RawMetacritic  `json:"metacritic"`
	Categories          json.RawMessage `json:"categories"`
	Genres              json.RawMessage `json:"genres"`
	Screenshots         json.RawMessage `json:"screenshots"`
	Movies              json.RawMessage `json:"movies"`
	Recommendations     *RawRecommend   `json:"recommendations"`
	ReleaseDate         *RawReleaseDate `json:"release_date"`
	SupportInfo         json.RawMessage `json:"support_info"`
	Background          string          `json:"background"`
	ContentDescriptors  json.RawMessage `json:"content_descriptors"`
	PCRequirements      Requirements    `json:"pc_requirements"`
}

// RawPrice is the optional price block of a detail response. Amounts
// are in minor currency units.
type RawPrice struct {
	Currency        string `json:"currency"`
	Price           *int64 `json:"price"`
	Initial         *int64 `json:"initial"`
	Final           *int64 `json:"final"`
	DiscountPercent *int64 `json:"discount_percent"`
}

// RawMetacritic is the optional metacritic block.
type RawMetacritic struct {
	Score *int64 `json:"score"`
	URL   string `json:"url"`
}

// RawRecommend is the optional recommendations block.
type RawRecommend struct {
	Total *int64 `json:"total"`
}

// RawReleaseDate carries the release status flag and a free-text date.
type RawReleaseDate struct {
	ComingSoon bool   `json:"coming_soon"`
	Date       string `json:"date"`
}

// ReviewSummary is the aggregate review data for one item. Valid is
// false when the endpoint failed or reported no data; the normalizer
// then leaves every review column NULL.
type ReviewSummary struct {
	Valid           bool
	NumReviews      int64
	ReviewScore     int64
	ReviewScoreDesc string
	TotalPositive   int64
	TotalNegative   int64
	TotalReviews    int64
}
