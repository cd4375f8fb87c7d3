package retriever

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/ObiAU/feeddigest/internal/models"
)

// Article extracts the readable body of a linked web page. Languages are
// ignored; the page is taken as published.
type Article struct {
	client    *http.Client
	userAgent string
}

func NewArticle(timeout time.Duration, userAgent string) *Article {
	return &Article{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (a *Article) Fetch(ctx context.Context, item models.Item, _ []string) ([]string, error) {
	pageURL, err := url.Parse(item.Link)
	if err != nil || pageURL.Host == "" {
		return nil, fetchError(models.ReasonNoTranscript, "item has no usable link %q", item.Link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fetchError(models.ReasonUnknown, "%v", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fetchError(models.ReasonUnknown, "%v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fetchError(models.ReasonRateLimited, "%s answered 429", pageURL.Host)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fetchError(models.ReasonNoTranscript, "article returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fetchError(models.ReasonUnknown, "article returned status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return nil, fetchError(models.ReasonUnknown, "extract article: %v", err)
	}

	var paragraphs []string
	for _, p := range strings.Split(article.TextContent, "\n") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil, fetchError(models.ReasonNoTranscript, "no readable text at %s", pageURL)
	}
	return paragraphs, nil
}
