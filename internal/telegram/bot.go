package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/ObiAU/feeddigest/internal/chunk"
	"github.com/ObiAU/feeddigest/internal/models"
)

// api is the part of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	MaxLength      int
	PartPause      time.Duration
	DisablePreview bool
}

type Bot struct {
	api            api
	chatID         int64
	channel        string
	maxLength      int
	disablePreview bool
	limiter        *rate.Limiter
}

func NewBot(token, chatTarget string, opts Options) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("telegram bot authorized", "username", botAPI.Self.UserName)

	return newBot(botAPI, chatTarget, opts)
}

func newBot(a api, chatTarget string, opts Options) (*Bot, error) {
	b := &Bot{
		api:            a,
		maxLength:      opts.MaxLength,
		disablePreview: opts.DisablePreview,
		limiter:        rate.NewLimiter(rate.Inf, 1),
	}
	if opts.PartPause > 0 {
		b.limiter = rate.NewLimiter(rate.Every(opts.PartPause), 1)
	}

	chatTarget = strings.TrimSpace(chatTarget)
	if strings.HasPrefix(chatTarget, "@") {
		b.channel = chatTarget
		return b, nil
	}
	id, err := strconv.ParseInt(chatTarget, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram chat id %q is neither numeric nor an @channel", models.ErrConfigInvalid, chatTarget)
	}
	b.chatID = id
	return b, nil
}

// Deliver sends msg.Body as HTML, split into parts that fit the message
// limit counted in UTF-16 units. Parts go out in order, paced by the part limiter; the first
// failing part aborts the rest.
func (b *Bot) Deliver(ctx context.Context, msg models.Message) error {
	parts := chunk.SplitUTF16(msg.Body, b.maxLength)

	for _, part := range parts {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
		}
		if err := b.send(ctx, part.Text); err != nil {
			return fmt.Errorf("%w: telegram part %d/%d: %v", models.ErrDeliveryFailed, part.Index+1, part.Total, err)
		}

		if part.Total > 1 {
			slog.Info("telegram message sent", "part", part.Index+1, "total", part.Total)
		} else {
			slog.Info("telegram message sent")
		}
	}
	return nil
}

func (b *Bot) send(ctx context.Context, text string) error {
	_, err := b.api.Send(b.newMessage(text))
	if err == nil {
		return nil
	}

	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) || tgErr.Code != http.StatusTooManyRequests || tgErr.RetryAfter <= 0 {
		return err
	}

	wait := time.Duration(tgErr.RetryAfter) * time.Second
	slog.Warn("telegram rate limited, retrying", "retry_after", wait)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}

	_, err = b.api.Send(b.newMessage(text))
	return err
}

func (b *Bot) newMessage(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if b.channel != "" {
		msg = tgbotapi.NewMessageToChannel(b.channel, text)
	} else {
		msg = tgbotapi.NewMessage(b.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = b.disablePreview
	return msg
}
