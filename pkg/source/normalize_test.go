package source

import (
	"encoding/json"
	"testing"
	"time"
)

func TestKeepKind(t *testing.T) {
	if !KeepKind(KindGame) {
		t.Fatal("game kind must be kept")
	}
	for _, k := range []Kind{KindDLC, KindDemo, KindMusic, KindVideo, Kind("mod")} {
		if KeepKind(k) {
			t.Fatalf("kind %q must not be kept", k)
		}
	}
}

func TestCoerceInt(t *testing.T) {
	tests := map[string]*int64{
		`17`:      intp(17),
		`"17"`:    intp(17),
		`"17+"`:   intp(17),
		`"M"`:     nil,
		`null`:    nil,
		`""`:      nil,
		`"18 yo"`: intp(18),
	}
	for in, want := range tests {
		got := coerceInt(json.RawMessage(in))
		switch {
		case want == nil && got != nil:
			t.Fatalf("coerceInt(%s) = %d, want nil", in, *got)
		case want != nil && got == nil:
			t.Fatalf("coerceInt(%s) = nil, want %d", in, *want)
		case want != nil && *got != *want:
			t.Fatalf("coerceInt(%s) = %d, want %d", in, *got, *want)
		}
	}

	if got := coerceInt(nil); got != nil {
		t.Fatalf("coerceInt(absent) = %d, want nil", *got)
	}
}

func intp(v int64) *int64 { return &v }

func TestRequirementsObject(t *testing.T) {
	var r Requirements
	data := `{"minimum": "4 GB RAM", "recommended": "8 GB RAM"}`
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if r.Minimum != "4 GB RAM" || r.Recommended != "8 GB RAM" {
		t.Fatalf("unexpected requirements: %+v", r)
	}
}

func TestRequirementsList(t *testing.T) {
	var r Requirements
	if err := json.Unmarshal([]byte(`["4 GB RAM", "8 GB RAM"]`), &r); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if r.Minimum != "4 GB RAM" || r.Recommended != "8 GB RAM" {
		t.Fatalf("unexpected requirements: %+v", r)
	}
}

func TestRequirementsEmptyList(t *testing.T) {
	var r Requirements
	if err := json.Unmarshal([]byte(`[]`), &r); err != nil {
		t.Fatalf("unmarshal empty list: %v", err)
	}
	if r.Minimum != "" || r.Recommended != "" {
		t.Fatalf("unexpected requirements: %+v", r)
	}
}

func TestRequirementsUnknownShape(t *testing.T) {
	var r Requirements
	if err := json.Unmarshal([]byte(`42`), &r); err != nil {
		t.Fatalf("unknown shape must not error: %v", err)
	}
	if r.Minimum != "" || r.Recommended != "" {
		t.Fatalf("unexpected requirements: %+v", r)
	}
}

func TestNormalizeNilDetail(t *testing.T) {
	item := Normalize(100, "Foo", nil, ReviewSummary{})

	if item.AppID != 100 || item.Name != "Foo" {
		t.Fatalf("identity fields: %+v", item)
	}
	if item.Developers != "[]" || item.Publishers != "[]" {
		t.Fatalf("list defaults: %q %q", item.Developers, item.Publishers)
	}
	if item.PriceOverview != "{}" || item.Platforms != "{}" {
		t.Fatalf("object defaults: %q %q", item.PriceOverview, item.Platforms)
	}
	if item.NumReviews != nil || item.TotalReviews != nil {
		t.Fatal("review fields must stay nil without valid reviews")
	}
	if item.Price != nil {
		t.Fatal("price observation must be nil without a price block")
	}
}

func TestNormalizeFullDetail(t *testing.T) {
	free := true
	raw := &RawDetail{
		Type:             "Game",
		Name:             "Foo",
		RequiredAge:      json.RawMessage(`"17+"`),
		IsFree:           &free,
		ShortDescription: "a game",
		Developers:       json.RawMessage(`["Dev Co"]`),
		PriceOverview: &RawPrice{
			Currency:        "USD",
			Initial:         intp(1999),
			Final:           intp(999),
			DiscountPercent: intp(50),
		},
		Metacritic:      &RawMetacritic{Score: intp(85)},
		Recommendations: &RawRecommend{Total: intp(1234)},
		ReleaseDate:     &RawReleaseDate{ComingSoon: false, Date: "17 Oct, 2023"},
	}
	reviews := ReviewSummary{
		Valid:         true,
		NumReviews:    42,
		ReviewScore:   8,
		TotalReviews:  42,
		TotalPositive: 40,
		TotalNegative: 2,
	}

	item := Normalize(100, "Foo", raw, reviews)

	if item.Kind != "game" {
		t.Fatalf("kind = %q, want lowercased game", item.Kind)
	}
	if item.RequiredAge == nil || *item.RequiredAge != 17 {
		t.Fatalf("required_age = %v, want 17", item.RequiredAge)
	}
	if item.IsFree == nil || !*item.IsFree {
		t.Fatal("is_free not carried")
	}
	if item.Developers != `["Dev Co"]` {
		t.Fatalf("developers = %q", item.Developers)
	}
	if item.MetacriticScore == nil || *item.MetacriticScore != 85 {
		t.Fatalf("metacritic = %v", item.MetacriticScore)
	}
	if item.ReleaseDateText != "17 Oct, 2023" || item.ComingSoon {
		t.Fatalf("release fields: %q %v", item.ReleaseDateText, item.ComingSoon)
	}
	if item.TotalReviews == nil || *item.TotalReviews != 42 {
		t.Fatalf("total_reviews = %v", item.TotalReviews)
	}

	if item.Price == nil {
		t.Fatal("price observation missing")
	}
	if item.Price.AppID != 100 || *item.Price.FinalPrice != 999 || *item.Price.DiscountPercent != 50 {
		t.Fatalf("price point = %+v", item.Price)
	}
	if item.PriceOverview == "{}" {
		t.Fatal("price_overview not serialized")
	}
}

func TestFixMonthNames(t *testing.T) {
	if got := FixMonthNames("17 okt, 2023"); got != "17 Oct, 2023" {
		t.Fatalf("okt fix = %q", got)
	}
	if got := FixMonthNames("3 maj, 2024"); got != "3 May, 2024" {
		t.Fatalf("maj fix = %q", got)
	}
	if got := FixMonthNames("12 Mar, 2024"); got != "12 Mar, 2024" {
		t.Fatalf("untouched date changed: %q", got)
	}
}

func TestParseReleaseDate(t *testing.T) {
	tests := map[string]time.Time{
		"17 Oct, 2023":     time.Date(2023, 10, 17, 0, 0, 0, 0, time.UTC),
		"Oct 17, 2023":     time.Date(2023, 10, 17, 0, 0, 0, 0, time.UTC),
		"2023-10-17":       time.Date(2023, 10, 17, 0, 0, 0, 0, time.UTC),
		"17 okt, 2023":     time.Date(2023, 10, 17, 0, 0, 0, 0, time.UTC),
		"2021":             time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		"Q3 2021":          time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		"coming soon":      {},
		"To Be Announced":  {},
		"TBA":              {},
		"":                 {},
		"sometime maybe":   {},
		"Coming Fall 2099": {},
	}
	for in, want := range tests {
		got := ParseReleaseDate(in)
		if !got.Equal(want) {
			t.Fatalf("ParseReleaseDate(%q) = %v, want %v", in, got, want)
		}
	}
}
