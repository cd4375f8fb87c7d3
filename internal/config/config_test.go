package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ObiAU/feeddigest/internal/models"
)

const sampleFeeds = `
feeds:
  - name: "Trading Dominion"
    url: "https://www.youtube.com/feeds/videos.xml?channel_id=UCmJL2llHf2tEcDAjaz-LFgQ"
  - name: "Engineering Blog"
    url: "https://example.com/feed.xml"
    kind: article
    languages: [en]
`

func writeFeeds(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		OpenAIAPIKey:      "sk-proj-abcdef",
		Delivery:          DeliveryTelegram,
		TelegramToken:     "8289595775:AAGiGrfe1hJIlNa5yF8UM9jQHvGxi39Lm-U",
		TelegramChatID:    "25523643",
		TelegramMaxLength: 4096,
		Feeds:             []models.Source{{Name: "a", URL: "https://example.com/a", Kind: models.KindYouTube}},
		PollInterval:      15 * time.Minute,
		MaxChars:          25000,
		RetrievalAttempts: 3,
		LedgerPath:        "processed_items.json",
	}
}

func TestParseFeedsAppliesDefaults(t *testing.T) {
	feeds, err := parseFeeds([]byte(sampleFeeds), []string{"es", "en"})
	if err != nil {
		t.Fatalf("parseFeeds returned error: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(feeds))
	}

	if feeds[0].Kind != models.KindYouTube {
		t.Errorf("expected default kind youtube, got %q", feeds[0].Kind)
	}
	if len(feeds[0].Languages) != 2 || feeds[0].Languages[0] != "es" {
		t.Errorf("expected default languages [es en], got %v", feeds[0].Languages)
	}
	if feeds[1].Kind != models.KindArticle {
		t.Errorf("expected kind article, got %q", feeds[1].Kind)
	}
	if len(feeds[1].Languages) != 1 || feeds[1].Languages[0] != "en" {
		t.Errorf("expected languages [en], got %v", feeds[1].Languages)
	}
}

func TestParseFeedsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "feeds:\n  - url: https://example.com\n"},
		{"missing url", "feeds:\n  - name: a\n"},
		{"unknown kind", "feeds:\n  - name: a\n    url: https://example.com\n    kind: podcast\n"},
		{"duplicate", "feeds:\n  - name: a\n    url: https://example.com/1\n  - name: a\n    url: https://example.com/2\n"},
		{"malformed", "feeds: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFeeds([]byte(tt.content), nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"PON_AQUI_TU_API_KEY", true},
		{"sk-XXXXXXXX", true},
		{"123456789:XXXabc", true},
		{"123456789", true},
		{"your-api-key", true},
		{"<token>", true},
		{"sk-proj-real", false},
		{"25523643", false},
		{"@mychannel", false},
	}

	for _, tt := range tests {
		if got := IsPlaceholder(tt.value); got != tt.want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"placeholder openai key", func(c *Config) { c.OpenAIAPIKey = "PON_AQUI_TU_API_KEY" }},
		{"missing bot token", func(c *Config) { c.TelegramToken = "" }},
		{"placeholder chat id", func(c *Config) { c.TelegramChatID = "123456789" }},
		{"no feeds", func(c *Config) { c.Feeds = nil }},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }},
		{"email without recipients", func(c *Config) {
			c.Delivery = DeliveryEmail
			c.EmailFrom = "bot@example.com"
			c.SMTPPassword = "app-password"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, models.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	path := writeFeeds(t, sampleFeeds)
	t.Setenv("FEEDS_FILE", path)
	t.Setenv("OPENAI_API_KEY", "sk-proj-test")
	t.Setenv("POLL_INTERVAL", "30m")
	t.Setenv("OPENAI_MAX_RETRIES", "0")
	t.Setenv("TRANSCRIPT_LANGUAGES", "en, fr")
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com")
	t.Setenv("EMAIL_FROM", "bot@example.com")

	cfg, err := Load([]string{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.OpenAIAPIKey != "sk-proj-test" {
		t.Errorf("expected api key from env, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.OpenAIMaxRetries != 0 {
		t.Errorf("expected retries disabled from env, got %d", cfg.OpenAIMaxRetries)
	}
	if cfg.PollInterval != 30*time.Minute {
		t.Errorf("expected 30m interval, got %v", cfg.PollInterval)
	}
	if len(cfg.TranscriptLanguages) != 2 || cfg.TranscriptLanguages[1] != "fr" {
		t.Errorf("expected languages [en fr], got %v", cfg.TranscriptLanguages)
	}
	if len(cfg.EmailTo) != 2 || cfg.EmailTo[1] != "b@example.com" {
		t.Errorf("expected two trimmed recipients, got %v", cfg.EmailTo)
	}
	if cfg.SMTPUsername != "bot@example.com" {
		t.Errorf("expected SMTP username to default to sender, got %q", cfg.SMTPUsername)
	}
	if len(cfg.Feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(cfg.Feeds))
	}
	if cfg.Feeds[0].Languages[0] != "en" {
		t.Errorf("expected feed to inherit transcript languages, got %v", cfg.Feeds[0].Languages)
	}
	if cfg.MaxChars != 25000 {
		t.Errorf("expected default max chars 25000, got %d", cfg.MaxChars)
	}
}

func TestLoadMissingFeedsFile(t *testing.T) {
	t.Setenv("FEEDS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load([]string{})
	if !errors.Is(err, models.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}
