package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"
)

// ClientConfig tunes the politeness and backoff behavior of a Client.
// Zero values fall back to the defaults the upstream tolerates.
type ClientConfig struct {
	APIBaseURL   string
	StoreBaseURL string
	UserAgent    string

	// PolitenessMin/Max bound the randomized pause before every call.
	PolitenessMin time.Duration
	PolitenessMax time.Duration

	// Cooldown is slept after a rate-limit response before the same
	// request is retried. MaxRateLimitRetries bounds those retries; once
	// exhausted the request reports absent and the caller skips the item.
	Cooldown            time.Duration
	MaxRateLimitRetries int

	// PageTimeout applies to store-page scrapes, APITimeout to JSON
	// endpoints.
	PageTimeout time.Duration
	APITimeout  time.Duration
}

// Client fetches catalog, detail, review and tag data for single items.
// One Client owns one HTTP client for the lifetime of a run; all calls
// are sequential by design, so no locking is needed.
type Client struct {
	http *http.Client
	cfg  ClientConfig
}

// NewClient creates a source client with defaults filled in.
func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.steampowered.com"
	}
	if cfg.StoreBaseURL == "" {
		cfg.StoreBaseURL = "https://store.steampowered.com"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if cfg.PolitenessMax <= 0 {
		cfg.PolitenessMin = 300 * time.Millisecond
		cfg.PolitenessMax = time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Minute
	}
	if cfg.MaxRateLimitRetries <= 0 {
		cfg.MaxRateLimitRetries = 3
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 10 * time.Second
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 30 * time.Second
	}
	return &Client{
		http: &http.Client{},
		cfg:  cfg,
	}
}

// politeness sleeps a randomized interval before an outbound call.
func (c *Client) politeness(ctx context.Context) {
	span := c.cfg.PolitenessMax - c.cfg.PolitenessMin
	d := c.cfg.PolitenessMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// get performs one polite GET. A 429 sleeps the cooldown and retries the
// same request, up to the configured cap; after the cap the call returns
// the 429 status and the caller treats the item as skipped. Transport
// errors bubble up for the caller to treat as absent.
func (c *Client) get(ctx context.Context, url string, timeout time.Duration, headers map[string]string) ([]byte, int, error) {
	for attempt := 0; ; attempt++ {
		c.politeness(ctx)
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		body, status, err := c.getOnce(ctx, url, timeout, headers)
		if err != nil {
			return nil, 0, err
		}
		if status != http.StatusTooManyRequests {
			return body, status, nil
		}
		if attempt >= c.cfg.MaxRateLimitRetries {
			fmt.Fprintf(os.Stderr, "still rate limited after %d retries: %s\n", attempt, url)
			return nil, status, nil
		}
		fmt.Fprintf(os.Stderr, "rate limited, waiting %s before retrying: %s\n", c.cfg.Cooldown, url)
		sleep(ctx, c.cfg.Cooldown)
	}
}

func (c *Client) getOnce(ctx context.Context, url string, timeout time.Duration, headers map[string]string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}

// StorePageURL returns the public store page for an item.
func (c *Client) StorePageURL(appID int64) string {
	return fmt.Sprintf("%s/app/%d/", c.cfg.StoreBaseURL, appID)
}

// AppList fetches the full storefront app list. Unlike the per-item
// endpoints this is fatal on failure: without it there is nothing to
// sync.
func (c *Client) AppList(ctx context.Context) ([]CatalogEntry, error) {
	url := c.cfg.APIBaseURL + "/ISteamApps/GetAppList/v2/"
	body, status, err := c.get(ctx, url, c.cfg.APITimeout, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("app list status %d", status)
	}

	var result struct {
		AppList struct {
			Apps []CatalogEntry `json:"apps"`
		} `json:"applist"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode app list: %w", err)
	}

	apps := result.AppList.Apps
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

// Detail fetches the detail payload for one item. Any non-success
// status, transport error, or success=false payload yields (nil, nil):
// the caller counts the item as skipped and moves on.
func (c *Client) Detail(ctx context.Context, appID int64) (*RawDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/appdetails?appids=%d", c.cfg.StoreBaseURL, appID)
	body, status, err := c.get(ctx, url, c.cfg.APITimeout, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "detail %d: %v\n", appID, err)
		return nil, nil
	}
	if status != http.StatusOK {
		fmt.Fprintf(os.Stderr, "detail %d: status %d\n", appID, status)
		return nil, nil
	}

	var envelope map[string]struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		fmt.Fprintf(os.Stderr, "detail %d: decode: %v\n", appID, err)
		return nil, nil
	}

	entry, ok := envelope[strconv.FormatInt(appID, 10)]
	if !ok || !entry.Success {
		return nil, nil
	}

	var detail RawDetail
	if err := json.Unmarshal(entry.Data, &detail); err != nil {
		fmt.Fprintf(os.Stderr, "detail %d: decode data: %v\n", appID, err)
		return nil, nil
	}
	return &detail, nil
}

// Reviews fetches the aggregate review summary for one item. Failures
// return a zero (invalid) summary, never an error.
func (c *Client) Reviews(ctx context.Context, appID int64) ReviewSummary {
	url := fmt.Sprintf("%s/appreviews/%d?json=1&language=all&filter=all&review_type=all&purchase_type=all",
		c.cfg.StoreBaseURL, appID)
	body, status, err := c.get(ctx, url, c.cfg.APITimeout, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reviews %d: %v\n", appID, err)
		return ReviewSummary{}
	}
	if status != http.StatusOK {
		fmt.Fprintf(os.Stderr, "reviews %d: status %d\n", appID, status)
		return ReviewSummary{}
	}

	var result struct {
		Success int `json:"success"`
		Summary struct {
			ReviewScore     int64  `json:"review_score"`
			ReviewScoreDesc string `json:"review_score_desc"`
			TotalPositive   int64  `json:"total_positive"`
			TotalNegative   int64  `json:"total_negative"`
			TotalReviews    int64  `json:"total_reviews"`
		} `json:"query_summary"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Success != 1 {
		return ReviewSummary{}
	}

	return ReviewSummary{
		Valid:           true,
		NumReviews:      result.Summary.TotalReviews,
		ReviewScore:     result.Summary.ReviewScore,
		ReviewScoreDesc: result.Summary.ReviewScoreDesc,
		TotalPositive:   result.Summary.TotalPositive,
		TotalNegative:   result.Summary.TotalNegative,
		TotalReviews:    result.Summary.TotalReviews,
	}
}
