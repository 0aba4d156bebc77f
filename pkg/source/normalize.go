package source

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Normalize maps a raw detail payload and review summary into the
// canonical item shape. The output is always complete: missing upstream
// fields become NULL or empty, never a partial record, so persistence
// needs no per-field presence checks.
func Normalize(appID int64, name string, raw *RawDetail, reviews ReviewSummary) Item {
	item := Item{
		AppID:          appID,
		Name:           name,
		Developers:     "[]",
		Publishers:     "[]",
		PriceOverview:  "{}",
		Platforms:      "{}",
		Categories:     "[]",
		Genres:         "[]",
		Screenshots:    "[]",
		Movies:         "[]",
		ReleaseDateRaw: "{}",
		SupportInfo:    "{}",

		ContentDescriptors:      "{}",
		MinimumRequirements:     "",
		RecommendedRequirements: "",
	}

	if raw != nil {
		item.Kind = strings.ToLower(raw.Type)
		item.RequiredAge = coerceInt(raw.RequiredAge)
		item.IsFree = raw.IsFree
		item.DetailedDescription = raw.DetailedDescription
		item.ShortDescription = raw.ShortDescription
		item.SupportedLanguages = raw.SupportedLanguages
		item.HeaderImage = raw.HeaderImage
		item.Website = raw.Website
		item.Background = raw.Background
		item.Developers = jsonOr(raw.Developers, "[]")
		item.Publishers = jsonOr(raw.Publishers, "[]")
		item.Platforms = jsonOr(raw.Platforms, "{}")
		item.Categories = jsonOr(raw.Categories, "[]")
		item.Genres = jsonOr(raw.Genres, "[]")
		item.Screenshots = jsonOr(raw.Screenshots, "[]")
		item.Movies = jsonOr(raw.Movies, "[]")
		item.SupportInfo = jsonOr(raw.SupportInfo, "{}")
		item.ContentDescriptors = jsonOr(raw.ContentDescriptors, "{}")
		item.MinimumRequirements = raw.PCRequirements.Minimum
		item.RecommendedRequirements = raw.PCRequirements.Recommended

		if raw.Metacritic != nil {
			item.MetacriticScore = raw.Metacritic.Score
		}
		if raw.Recommendations != nil {
			item.RecommendationsTotal = raw.Recommendations.Total
		}
		if raw.ReleaseDate != nil {
			item.ComingSoon = raw.ReleaseDate.ComingSoon
			item.ReleaseDateText = raw.ReleaseDate.Date
			if b, err := json.Marshal(raw.ReleaseDate); err == nil {
				item.ReleaseDateRaw = string(b)
			}
		}
		if raw.PriceOverview != nil {
			if b, err := json.Marshal(raw.PriceOverview); err == nil {
				item.PriceOverview = string(b)
			}
			item.Price = &PricePoint{
				AppID:           appID,
				Price:           raw.PriceOverview.Price,
				DiscountPercent: raw.PriceOverview.DiscountPercent,
				InitialPrice:    raw.PriceOverview.Initial,
				FinalPrice:      raw.PriceOverview.Final,
			}
		}
	}

	if reviews.Valid {
		item.NumReviews = ptr(reviews.NumReviews)
		item.ReviewScore = ptr(reviews.ReviewScore)
		item.ReviewScoreDesc = reviews.ReviewScoreDesc
		item.TotalPositive = ptr(reviews.TotalPositive)
		item.TotalNegative = ptr(reviews.TotalNegative)
		item.TotalReviews = ptr(reviews.TotalReviews)
	}

	return item
}

func ptr(v int64) *int64 { return &v }

// coerceInt converts a JSON value that may arrive as a number, a
// numeric string, or free text with non-digit suffixes ("17+") into an
// integer. A fully non-numeric value yields nil rather than failing the
// record.
func coerceInt(raw json.RawMessage) *int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// jsonOr returns the raw JSON as text, or the fallback when the field
// was absent or null.
func jsonOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback
	}
	return string(raw)
}

var (
	yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

	// Month abbreviations that leak through in localized form.
	monthFixes = strings.NewReplacer("maj", "May", "okt", "Oct")

	releaseDateFormats = []string{
		"2 Jan, 2006",
		"Jan 2, 2006",
		"2006-01-02",
		"2/1/2006",
		"1/2/2006",
		"2006",
	}
)

// FixMonthNames normalizes localized month abbreviations in a free-text
// release date so the standard formats can parse it.
func FixMonthNames(s string) string {
	return monthFixes.Replace(s)
}

// ParseReleaseDate parses a free-text release date string. Placeholder
// values and unparseable text return a zero time. A bare year resolves
// to January 1st of that year.
func ParseReleaseDate(s string) time.Time {
	s = strings.TrimSpace(FixMonthNames(s))
	switch strings.ToLower(s) {
	case "", "coming soon", "to be announced", "tba":
		return time.Time{}
	}

	for _, format := range releaseDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}

	if m := yearPattern.FindString(s); m != "" {
		year, _ := strconv.Atoi(m)
		if year <= time.Now().Year() {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}
