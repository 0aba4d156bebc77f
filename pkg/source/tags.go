package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tagPattern matches the embedded tag metadata on a store page. The
// tags never appear as plain markup; they ride inside a script block as
// {"tagid": N, "name": "..."} pairs.
var tagPattern = regexp.MustCompile(`"tagid":\s*(\d+),\s*"name":\s*"([^"]+)"`)

// Tags scrapes the user tags for one item off its store page. Every
// failure mode (non-200, network error, no matches) is a normal empty
// result; tags are best-effort.
func (c *Client) Tags(ctx context.Context, appID int64) []string {
	url := fmt.Sprintf("%s/app/%d/", c.cfg.StoreBaseURL, appID)
	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}

	body, status, err := c.get(ctx, url, c.cfg.PageTimeout, headers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tags %d: %v\n", appID, err)
		return nil
	}
	if status != http.StatusOK {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tags %d: parse page: %v\n", appID, err)
		return nil
	}

	var tags []string
	seen := make(map[string]bool)
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, m := range tagPattern.FindAllStringSubmatch(s.Text(), -1) {
			if name := m[2]; !seen[name] {
				seen[name] = true
				tags = append(tags, name)
			}
		}
	})
	return tags
}
