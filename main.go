package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ObiAU/feeddigest/internal/aggregator"
	"github.com/ObiAU/feeddigest/internal/ai"
	"github.com/ObiAU/feeddigest/internal/config"
	"github.com/ObiAU/feeddigest/internal/email"
	"github.com/ObiAU/feeddigest/internal/ledger"
	"github.com/ObiAU/feeddigest/internal/logger"
	"github.com/ObiAU/feeddigest/internal/models"
	"github.com/ObiAU/feeddigest/internal/retriever"
	"github.com/ObiAU/feeddigest/internal/sources"
	"github.com/ObiAU/feeddigest/internal/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg == nil {
		return
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("feeddigest stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("feeddigest stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := ledger.Open(cfg.LedgerBackend, cfg.LedgerPath, cfg.LedgerRetention)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Load(); err != nil {
		slog.Warn("starting with an empty ledger", "path", cfg.LedgerPath, "error", err)
	}

	youtube, err := retriever.NewYouTube(cfg.HTTPTimeout, cfg.UserAgent, cfg.YouTubeCookiesFile)
	if err != nil {
		return err
	}
	fetcher := retriever.New(map[models.SourceKind]retriever.TranscriptSource{
		models.KindYouTube: youtube,
		models.KindArticle: retriever.NewArticle(cfg.HTTPTimeout, cfg.UserAgent),
	}, retriever.Options{
		SettleDelay: cfg.SettleDelay,
		Attempts:    cfg.RetrievalAttempts,
		Backoff:     cfg.RetrievalBackoff,
	})

	summarizer := ai.NewSummarizer(ai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
		MaxTokens:   cfg.OpenAIMaxTokens,
		MaxRetries:  cfg.OpenAIMaxRetries,
		Language:    cfg.SummaryLanguage,
	})

	var (
		notifier aggregator.Notifier
		bot      *telegram.Bot
	)
	switch cfg.Delivery {
	case config.DeliveryEmail:
		sender, err := email.NewSender(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		})
		if err != nil {
			return err
		}
		notifier = sender
	default:
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, telegram.Options{
			MaxLength:      cfg.TelegramMaxLength,
			PartPause:      cfg.TelegramPartPause,
			DisablePreview: cfg.TelegramDisablePreview,
		})
		if err != nil {
			return err
		}
		notifier = bot
	}

	digest := aggregator.New(cfg,
		sources.NewFeedClient(cfg.HTTPTimeout, cfg.UserAgent),
		store, fetcher, summarizer, notifier)

	if bot != nil && cfg.TelegramCommands {
		go bot.Listen(ctx, func() string {
			return telegram.FormatStatus("feeddigest status", digest.StatusLines())
		})
	}

	slog.Info("starting feeddigest",
		"feeds", len(cfg.Feeds),
		"delivery", cfg.Delivery,
		"ledger", cfg.LedgerBackend,
		"poll_interval", cfg.PollInterval)
	return digest.Run(ctx)
}
