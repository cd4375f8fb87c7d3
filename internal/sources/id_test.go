package sources

import (
	"testing"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/ObiAU/feeddigest/internal/models"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name  string
		entry *gofeed.Item
		kind  models.SourceKind
		want  string
	}{
		{
			name: "yt extension",
			entry: &gofeed.Item{Extensions: ext.Extensions{
				"yt": {"videoId": {{Name: "videoId", Value: "abc123"}}},
			}},
			kind: models.KindYouTube,
			want: "abc123",
		},
		{name: "guid prefix", entry: &gofeed.Item{GUID: "yt:video:def456"}, kind: models.KindYouTube, want: "def456"},
		{name: "watch link", entry: &gofeed.Item{Link: "https://www.youtube.com/watch?v=ghi789&t=3"}, kind: models.KindYouTube, want: "ghi789"},
		{name: "youtube without id", entry: &gofeed.Item{GUID: "tag:other", Link: "https://example.com"}, kind: models.KindYouTube, want: ""},
		{name: "article guid", entry: &gofeed.Item{GUID: "post-9", Link: "https://example.com/9"}, kind: models.KindArticle, want: "post-9"},
		{name: "article link", entry: &gofeed.Item{Link: "https://example.com/9"}, kind: models.KindArticle, want: "https://example.com/9"},
		{name: "nothing", entry: &gofeed.Item{}, kind: models.KindArticle, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractID(tt.entry, tt.kind); got != tt.want {
				t.Errorf("extractID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractIDHashesTitleOnly(t *testing.T) {
	a := extractID(&gofeed.Item{Title: "Same"}, models.KindArticle)
	b := extractID(&gofeed.Item{Title: "Same"}, models.KindArticle)
	if a == "" || a != b {
		t.Errorf("expected a stable hash id, got %q and %q", a, b)
	}
}
