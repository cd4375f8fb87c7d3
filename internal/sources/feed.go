package sources

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/ObiAU/feeddigest/internal/models"
)

const untitled = "(untitled)"

// FeedClient fetches RSS/Atom feeds and turns their entries into items.
type FeedClient struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
}

func NewFeedClient(timeout time.Duration, userAgent string) *FeedClient {
	return &FeedClient{
		client: &http.Client{
			Timeout: timeout,
		},
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
	}
}

// ListEntries returns the feed's items newest first. Entries without a
// usable identity are skipped.
func (c *FeedClient) ListEntries(ctx context.Context, src models.Source) ([]models.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnreachable, src.Name, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnreachable, src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", models.ErrSourceUnreachable, src.Name, resp.StatusCode)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to parse feed: %v", models.ErrSourceUnreachable, src.Name, err)
	}

	entries := newestFirst(feed.Items)

	items := make([]models.Item, 0, len(entries))
	for _, entry := range entries {
		id := extractID(entry, src.Kind)
		if id == "" {
			slog.Warn("skipping entry without id", "source", src.Name, "title", entry.Title)
			continue
		}

		items = append(items, models.Item{
			ID:          id,
			Source:      src.Name,
			Title:       cmp.Or(strings.TrimSpace(entry.Title), untitled),
			Link:        entry.Link,
			Published:   entry.Published,
			Description: description(entry),
		})
	}

	return items, nil
}

// newestFirst orders entries by publish date when every entry has one,
// otherwise it trusts the feed's order.
func newestFirst(entries []*gofeed.Item) []*gofeed.Item {
	out := make([]*gofeed.Item, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, e)
		}
	}

	for _, e := range out {
		if e.PublishedParsed == nil {
			return out
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedParsed.After(*out[j].PublishedParsed)
	})
	return out
}

func extractID(entry *gofeed.Item, kind models.SourceKind) string {
	if id := extensionValue(entry, "yt", "videoId"); id != "" {
		return id
	}
	if strings.HasPrefix(entry.GUID, "yt:video:") {
		return strings.TrimPrefix(entry.GUID, "yt:video:")
	}
	if u, err := url.Parse(entry.Link); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	}

	if kind == models.KindYouTube {
		return ""
	}
	if entry.GUID != "" {
		return entry.GUID
	}
	if entry.Link != "" {
		return entry.Link
	}
	if entry.Title != "" {
		hash := sha256.Sum256([]byte(entry.Title))
		return hex.EncodeToString(hash[:])
	}
	return ""
}

func extensionValue(entry *gofeed.Item, ns, name string) string {
	values := entry.Extensions[ns][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

// description prefers the entry summary and falls back to the media RSS
// description YouTube puts under media:group.
func description(entry *gofeed.Item) string {
	text := entry.Description
	if text == "" {
		if groups := entry.Extensions["media"]["group"]; len(groups) > 0 {
			if descs := groups[0].Children["description"]; len(descs) > 0 {
				text = descs[0].Value
			}
		}
	}
	return cleanText(text)
}

func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
