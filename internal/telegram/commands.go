package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ObiAU/feeddigest/internal/markup"
)

// StatusFunc renders the text answered to /status.
type StatusFunc func() string

const helpText = `<b>feeddigest</b> 📖

Commands:
/status - Feeds, processed items and last cycle
/help - Show this help

New items are summarized and posted here automatically.`

// Listen answers commands sent from the configured chat until ctx is
// done. Messages from other chats are ignored.
func (b *Bot) Listen(ctx context.Context, status StatusFunc) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update, status)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update, status StatusFunc) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if !b.fromConfiguredChat(update.Message.Chat) {
		slog.Debug("ignoring command from foreign chat", "chat_id", update.Message.Chat.ID)
		return
	}

	var reply string
	switch update.Message.Command() {
	case "status":
		reply = status()
	case "help", "start":
		reply = helpText
	default:
		reply = "Unknown command. Use /help for available commands."
	}

	if err := b.send(ctx, reply); err != nil {
		slog.Warn("failed to answer telegram command", "command", update.Message.Command(), "error", err)
	}
}

func (b *Bot) fromConfiguredChat(chat *tgbotapi.Chat) bool {
	if chat == nil {
		return false
	}
	if b.channel != "" {
		return strings.EqualFold("@"+chat.UserName, b.channel)
	}
	return chat.ID == b.chatID
}

// FormatStatus renders key/value lines for /status.
func FormatStatus(title string, lines [][2]string) string {
	var sb strings.Builder
	sb.WriteString("<b>" + markup.Escape(title) + "</b>\n")
	for _, kv := range lines {
		sb.WriteString("• <b>" + markup.Escape(kv[0]) + ":</b> " + markup.Escape(kv[1]) + "\n")
	}
	return sb.String()
}
