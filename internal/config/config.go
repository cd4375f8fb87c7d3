package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/ObiAU/feeddigest/internal/models"
)

const (
	DeliveryTelegram = "telegram"
	DeliveryEmail    = "email"

	LedgerJSON   = "json"
	LedgerSQLite = "sqlite"
)

type Config struct {
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAITemperature float64
	OpenAIMaxTokens   int
	OpenAIMaxRetries  int
	SummaryLanguage   string

	Delivery               string
	TelegramToken          string
	TelegramChatID         string
	TelegramMaxLength      int
	TelegramPartPause      time.Duration
	TelegramCommands       bool
	TelegramDisablePreview bool

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailTo      []string

	FeedsFile           string
	Feeds               []models.Source
	PollInterval        time.Duration
	SettleDelay         time.Duration
	TranscriptLanguages []string
	MaxChars            int
	RetrievalAttempts   int
	RetrievalBackoff    time.Duration
	YouTubeCookiesFile  string
	MaxItemsPerSource   int
	LatestOnly          bool
	FeedConcurrency     int

	LedgerBackend   string
	LedgerPath      string
	LedgerRetention int

	HTTPTimeout time.Duration
	UserAgent   string
	ServerPort  string
	LogLevel    string
	LogFormat   string
}

type rawConfig struct {
	OpenAIAPIKey      string  `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`
	OpenAIModel       string  `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" description:"Chat completion model"`
	OpenAIBaseURL     string  `long:"openai-base-url" env:"OPENAI_BASE_URL" description:"Override the OpenAI API base URL"`
	OpenAITemperature float64 `long:"openai-temperature" env:"OPENAI_TEMPERATURE" default:"0.2" description:"Sampling temperature"`
	OpenAIMaxTokens   int     `long:"openai-max-tokens" env:"OPENAI_MAX_TOKENS" default:"4000" description:"Maximum tokens per summary"`
	OpenAIMaxRetries  int     `long:"openai-max-retries" env:"OPENAI_MAX_RETRIES" default:"2" description:"Retries of a failed OpenAI request (0 disables)"`
	SummaryLanguage   string  `long:"summary-language" env:"SUMMARY_LANGUAGE" default:"es" description:"Language the summary is written in"`

	Delivery               string        `long:"delivery" env:"DELIVERY" default:"telegram" choice:"telegram" choice:"email" description:"Notification channel"`
	TelegramToken          string        `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token"`
	TelegramChatID         string        `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat id or @channel"`
	TelegramMaxLength      int           `long:"telegram-max-length" env:"TELEGRAM_MAX_MESSAGE_LENGTH" default:"4096" description:"Maximum characters per Telegram message"`
	TelegramPartPause      time.Duration `long:"telegram-part-pause" env:"TELEGRAM_PART_PAUSE" default:"1s" description:"Pause between parts of a long message"`
	TelegramCommands       bool          `long:"telegram-commands" env:"TELEGRAM_COMMANDS" description:"Answer /status and /help in the configured chat"`
	TelegramDisablePreview bool          `long:"telegram-disable-preview" env:"TELEGRAM_DISABLE_PREVIEW" description:"Disable link previews"`

	SMTPHost     string   `long:"smtp-host" env:"SMTP_HOST" default:"smtp.gmail.com" description:"SMTP host"`
	SMTPPort     string   `long:"smtp-port" env:"SMTP_PORT" default:"587" description:"SMTP port"`
	SMTPUsername string   `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP username (defaults to the sender address)"`
	SMTPPassword string   `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
	EmailFrom    string   `long:"email-from" env:"EMAIL_FROM" description:"Sender address"`
	EmailTo      []string `long:"email-to" env:"EMAIL_TO" env-delim:"," description:"Recipient addresses"`

	FeedsFile           string        `long:"feeds-file" env:"FEEDS_FILE" default:"feeds.yaml" description:"YAML file listing the feeds to poll"`
	PollInterval        time.Duration `long:"poll-interval" env:"POLL_INTERVAL" default:"15m" description:"Pause between polling cycles"`
	SettleDelay         time.Duration `long:"settle-delay" env:"SETTLE_DELAY" default:"5s" description:"Wait before requesting a transcript"`
	TranscriptLanguages []string      `long:"transcript-language" env:"TRANSCRIPT_LANGUAGES" env-delim:"," default:"es" default:"en" description:"Preferred transcript languages, in order"`
	MaxChars            int           `long:"max-chars" env:"MAX_CHARS" default:"25000" description:"Maximum characters of source text sent to the model"`
	RetrievalAttempts   int           `long:"retrieval-attempts" env:"RETRIEVAL_ATTEMPTS" default:"3" description:"Attempts per transcript retrieval"`
	RetrievalBackoff    time.Duration `long:"retrieval-backoff" env:"RETRIEVAL_BACKOFF" default:"2s" description:"Initial backoff between retrieval attempts"`
	YouTubeCookiesFile  string        `long:"youtube-cookies" env:"YOUTUBE_COOKIES_FILE" description:"Netscape cookies.txt used for YouTube requests"`
	MaxItemsPerSource   int           `long:"max-items-per-source" env:"MAX_ITEMS_PER_SOURCE" default:"5" description:"Newest entries considered per feed (0 for all)"`
	LatestOnly          bool          `long:"latest-only" env:"LATEST_ONLY" description:"Only consider the newest entry of each feed"`
	FeedConcurrency     int           `long:"feed-concurrency" env:"FEED_CONCURRENCY" default:"4" description:"Feeds fetched in parallel"`

	LedgerBackend   string `long:"ledger-backend" env:"LEDGER_BACKEND" default:"json" choice:"json" choice:"sqlite" description:"Ledger storage"`
	LedgerPath      string `long:"ledger-path" env:"LEDGER_PATH" default:"processed_items.json" description:"Ledger file"`
	LedgerRetention int    `long:"ledger-retention" env:"LEDGER_RETENTION" default:"500" description:"Processed ids kept per feed (0 for all)"`

	HTTPTimeout time.Duration `long:"http-timeout" env:"HTTP_TIMEOUT" default:"30s" description:"Timeout for outbound HTTP requests"`
	UserAgent   string        `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; feeddigest/1.0)" description:"User agent for feed and transcript requests"`
	ServerPort  string        `long:"server-port" env:"SERVER_PORT" default:"8080" description:"Port for /health and /stats (empty disables)"`
	LogLevel    string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	LogFormat   string        `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
}

// Load parses flags and environment, then reads the feed list. It returns
// nil, nil when --help was requested.
func Load(args []string) (*Config, error) {
	var raw rawConfig

	parser := flags.NewParser(&raw, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Config{
		OpenAIAPIKey:           raw.OpenAIAPIKey,
		OpenAIModel:            raw.OpenAIModel,
		OpenAIBaseURL:          raw.OpenAIBaseURL,
		OpenAITemperature:      raw.OpenAITemperature,
		OpenAIMaxTokens:        raw.OpenAIMaxTokens,
		OpenAIMaxRetries:       raw.OpenAIMaxRetries,
		SummaryLanguage:        raw.SummaryLanguage,
		Delivery:               raw.Delivery,
		TelegramToken:          raw.TelegramToken,
		TelegramChatID:         raw.TelegramChatID,
		TelegramMaxLength:      raw.TelegramMaxLength,
		TelegramPartPause:      raw.TelegramPartPause,
		TelegramCommands:       raw.TelegramCommands,
		TelegramDisablePreview: raw.TelegramDisablePreview,
		SMTPHost:               raw.SMTPHost,
		SMTPPort:               raw.SMTPPort,
		SMTPUsername:           raw.SMTPUsername,
		SMTPPassword:           raw.SMTPPassword,
		EmailFrom:              raw.EmailFrom,
		EmailTo:                trimAll(raw.EmailTo),
		FeedsFile:              raw.FeedsFile,
		PollInterval:           raw.PollInterval,
		SettleDelay:            raw.SettleDelay,
		TranscriptLanguages:    trimAll(raw.TranscriptLanguages),
		MaxChars:               raw.MaxChars,
		RetrievalAttempts:      raw.RetrievalAttempts,
		RetrievalBackoff:       raw.RetrievalBackoff,
		YouTubeCookiesFile:     raw.YouTubeCookiesFile,
		MaxItemsPerSource:      raw.MaxItemsPerSource,
		LatestOnly:             raw.LatestOnly,
		FeedConcurrency:        raw.FeedConcurrency,
		LedgerBackend:          raw.LedgerBackend,
		LedgerPath:             raw.LedgerPath,
		LedgerRetention:        raw.LedgerRetention,
		HTTPTimeout:            raw.HTTPTimeout,
		UserAgent:              raw.UserAgent,
		ServerPort:             raw.ServerPort,
		LogLevel:               raw.LogLevel,
		LogFormat:              raw.LogFormat,
	}

	if cfg.SMTPUsername == "" {
		cfg.SMTPUsername = cfg.EmailFrom
	}

	feeds, err := LoadFeeds(cfg.FeedsFile, cfg.TranscriptLanguages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfigInvalid, err)
	}
	cfg.Feeds = feeds

	return cfg, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
