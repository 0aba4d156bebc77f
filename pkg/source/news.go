package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// LatestNews probes the item's announcements feed and returns the
// timestamp of its newest entry. A zero time means no feed, no entries,
// or any fetch/parse failure; the recheck sweep only uses this as an
// activity hint, so failures are silent skips.
func (c *Client) LatestNews(ctx context.Context, appID int64) time.Time {
	url := fmt.Sprintf("%s/feeds/news/app/%d/", c.cfg.StoreBaseURL, appID)
	body, status, err := c.get(ctx, url, c.cfg.PageTimeout, nil)
	if err != nil || status != http.StatusOK {
		return time.Time{}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return time.Time{}
	}

	var latest time.Time
	for _, entry := range feed.Items {
		ts := entry.PublishedParsed
		if ts == nil {
			ts = entry.UpdatedParsed
		}
		if ts != nil && ts.After(latest) {
			latest = *ts
		}
	}
	return latest.UTC()
}
