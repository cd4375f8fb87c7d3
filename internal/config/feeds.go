package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ObiAU/feeddigest/internal/models"
)

type feedsFile struct {
	Feeds []models.Source `yaml:"feeds"`
}

// LoadFeeds reads the YAML feed list and applies per-feed defaults.
func LoadFeeds(path string, defaultLanguages []string) ([]models.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}
	return parseFeeds(data, defaultLanguages)
}

func parseFeeds(data []byte, defaultLanguages []string) ([]models.Source, error) {
	var file feedsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse feeds YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Feeds))
	for i := range file.Feeds {
		feed := &file.Feeds[i]
		if feed.Kind == "" {
			feed.Kind = models.KindYouTube
		}
		if len(feed.Languages) == 0 {
			feed.Languages = defaultLanguages
		}

		if feed.Name == "" {
			return nil, fmt.Errorf("feed at index %d: name is required", i)
		}
		if feed.URL == "" {
			return nil, fmt.Errorf("feed %q: url is required", feed.Name)
		}
		if feed.Kind != models.KindYouTube && feed.Kind != models.KindArticle {
			return nil, fmt.Errorf("feed %q: unknown kind %q", feed.Name, feed.Kind)
		}
		if seen[feed.Name] {
			return nil, fmt.Errorf("feed %q: duplicate name", feed.Name)
		}
		seen[feed.Name] = true
	}

	return file.Feeds, nil
}
