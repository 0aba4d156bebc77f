package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Catalog pages through the storefront's full-catalog search endpoint.
// It is only used by the bulk backfill path; the incremental loop walks
// the app list instead.
type Catalog struct {
	http      *http.Client
	baseURL   string
	userAgent string
}

// NewCatalog creates a catalog pager for the given search endpoint.
func NewCatalog(baseURL, userAgent string) *Catalog {
	return &Catalog{
		http:      &http.Client{Timeout: 30 * time.Second},
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

// CatalogDoc is one raw document from the catalog search endpoint.
// Field shapes follow the upstream index; the normalizer flattens them.
type CatalogDoc struct {
	ID              json.RawMessage `json:"fs_id"`
	Title           string          `json:"title"`
	ChangeDate      string          `json:"change_date"`
	Type            string          `json:"type"`
	Publisher       string          `json:"publisher"`
	PrettyDate      string          `json:"pretty_date_s"`
	Excerpt         string          `json:"excerpt"`
	URL             string          `json:"url"`
	ImageSquare     string          `json:"image_url_sq_s"`
	AgeRating       json.RawMessage `json:"age_rating_value"`
	Categories      json.RawMessage `json:"pretty_game_categories"`
	PriceRegular    *float64        `json:"price_regular"`
	PriceDiscounted *float64        `json:"price_discounted"`
	PriceDiscount   *float64        `json:"price_discount_percentage"`
	HasDiscount     bool            `json:"price_has_discount_b"`
}

func (c *Catalog) query(ctx context.Context, start, rows int) ([]byte, error) {
	params := url.Values{}
	params.Set("q", "*")
	params.Set("rows", fmt.Sprintf("%d", rows))
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("fq", "type:GAME")
	params.Set("sort", "sorting_title asc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog page %d: %w", start, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog page %d status %d", start, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog page %d: %w", start, err)
	}
	return body, nil
}

type catalogResponse struct {
	Response struct {
		NumFound int          `json:"numFound"`
		Docs     []CatalogDoc `json:"docs"`
	} `json:"response"`
}

// Count returns the total number of catalog documents available.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	body, err := c.query(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	var result catalogResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("decode catalog count: %w", err)
	}
	return result.Response.NumFound, nil
}

// Page fetches one batch of catalog documents starting at the given
// offset.
func (c *Catalog) Page(ctx context.Context, start, rows int) ([]CatalogDoc, error) {
	body, err := c.query(ctx, start, rows)
	if err != nil {
		return nil, err
	}
	var result catalogResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode catalog page %d: %w", start, err)
	}
	return result.Response.Docs, nil
}

// NormalizeDoc flattens a catalog search document into the canonical
// item shape for staging. The change date becomes the change marker so
// the merge can dedup on the natural key (id, change marker, title).
// ok is false when the document has no usable numeric id or no title.
func NormalizeDoc(doc CatalogDoc) (Item, bool) {
	id := coerceInt(doc.ID)
	if id == nil || doc.Title == "" {
		return Item{}, false
	}

	item := Normalize(*id, doc.Title, nil, ReviewSummary{})
	item.Kind = string(KindGame)
	item.ChangeMarker = doc.ChangeDate
	item.ShortDescription = doc.Excerpt
	item.Website = doc.URL
	item.HeaderImage = doc.ImageSquare
	item.ReleaseDateText = doc.PrettyDate
	item.RequiredAge = coerceInt(doc.AgeRating)
	item.Categories = jsonOr(doc.Categories, "[]")
	if doc.Publisher != "" {
		if b, err := json.Marshal([]string{doc.Publisher}); err == nil {
			item.Publishers = string(b)
		}
	}

	if doc.PriceRegular != nil {
		price := priceJSON{
			Regular:     doc.PriceRegular,
			Discounted:  doc.PriceDiscounted,
			DiscountPct: doc.PriceDiscount,
			HasDiscount: doc.HasDiscount,
		}
		if b, err := json.Marshal(price); err == nil {
			item.PriceOverview = string(b)
		}
	}
	return item, true
}

type priceJSON struct {
	Regular     *float64 `json:"regular"`
	Discounted  *float64 `json:"discounted,omitempty"`
	DiscountPct *float64 `json:"discount_percentage,omitempty"`
	HasDiscount bool     `json:"has_discount"`
}
