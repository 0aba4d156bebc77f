package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCatalogCountAndPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fq") != "type:GAME" {
			t.Errorf("fq = %q, want type:GAME", q.Get("fq"))
		}
		if q.Get("rows") == "0" {
			fmt.Fprint(w, `{"response":{"numFound":278,"docs":[]}}`)
			return
		}
		fmt.Fprint(w, `{"response":{"numFound":278,"docs":[
			{"fs_id":70010000001,"title":"First Game","change_date":"2026-01-10T00:00:00Z","type":"GAME"},
			{"fs_id":"70010000002","title":"Second Game","change_date":"2026-02-20T00:00:00Z","type":"GAME"}
		]}}`)
	}))
	defer srv.Close()

	cat := NewCatalog(srv.URL, "test-agent")
	ctx := context.Background()

	count, err := cat.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 278 {
		t.Fatalf("count = %d, want 278", count)
	}

	docs, err := cat.Page(ctx, 0, 2)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].Title != "First Game" {
		t.Fatalf("docs[0] = %+v", docs[0])
	}
}

func TestCatalogPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewCatalog(srv.URL, "test-agent").Page(context.Background(), 0, 10); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestNormalizeDoc(t *testing.T) {
	regular := 59.99
	doc := CatalogDoc{
		ID:           json.RawMessage(`70010000001`),
		Title:        "First Game",
		ChangeDate:   "2026-01-10T00:00:00Z",
		Type:         "GAME",
		Publisher:    "Pub Co",
		PrettyDate:   "10/01/2026",
		Excerpt:      "short blurb",
		URL:          "/games/first-game",
		ImageSquare:  "https://img.example.com/sq.png",
		AgeRating:    json.RawMessage(`"12"`),
		PriceRegular: &regular,
	}

	item, ok := NormalizeDoc(doc)
	if !ok {
		t.Fatal("doc rejected")
	}
	if item.AppID != 70010000001 || item.Name != "First Game" {
		t.Fatalf("identity: %+v", item)
	}
	if item.Kind != "game" {
		t.Fatalf("kind = %q", item.Kind)
	}
	if item.ChangeMarker != "2026-01-10T00:00:00Z" {
		t.Fatalf("change_marker = %q", item.ChangeMarker)
	}
	if item.Publishers != `["Pub Co"]` {
		t.Fatalf("publishers = %q", item.Publishers)
	}
	if item.RequiredAge == nil || *item.RequiredAge != 12 {
		t.Fatalf("required_age = %v", item.RequiredAge)
	}
	if item.PriceOverview == "{}" {
		t.Fatal("price overview not built from price fields")
	}
}

func TestNormalizeDocStringID(t *testing.T) {
	doc := CatalogDoc{ID: json.RawMessage(`"70010000002"`), Title: "Second Game"}
	item, ok := NormalizeDoc(doc)
	if !ok {
		t.Fatal("string id rejected")
	}
	if item.AppID != 70010000002 {
		t.Fatalf("app_id = %d", item.AppID)
	}
}

func TestNormalizeDocRejectsUnusable(t *testing.T) {
	if _, ok := NormalizeDoc(CatalogDoc{ID: json.RawMessage(`"not-a-number"`), Title: "X"}); ok {
		t.Fatal("non-numeric id accepted")
	}
	if _, ok := NormalizeDoc(CatalogDoc{ID: json.RawMessage(`1`), Title: ""}); ok {
		t.Fatal("empty title accepted")
	}
}
