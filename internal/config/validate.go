package config

import (
	"fmt"
	"strings"

	"github.com/ObiAU/feeddigest/internal/models"
)

var placeholderPrefixes = []string{
	"PON_AQUI",
	"sk-XXX",
	"123456789:XXX",
	"changeme",
	"your-",
	"your_",
	"<",
}

var placeholderValues = map[string]bool{
	"123456789": true,
	"xxx":       true,
	"todo":      true,
}

// IsPlaceholder reports whether a credential is empty or still holds an
// example value.
func IsPlaceholder(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	if placeholderValues[strings.ToLower(value)] {
		return true
	}
	for _, prefix := range placeholderPrefixes {
		if strings.HasPrefix(strings.ToLower(value), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// Validate rejects configurations the scheduler must not start with. All
// problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if IsPlaceholder(c.OpenAIAPIKey) {
		problems = append(problems, "OPENAI_API_KEY is missing or a placeholder")
	}

	switch c.Delivery {
	case DeliveryTelegram:
		if IsPlaceholder(c.TelegramToken) {
			problems = append(problems, "TELEGRAM_BOT_TOKEN is missing or a placeholder (get one from @BotFather)")
		}
		if IsPlaceholder(c.TelegramChatID) {
			problems = append(problems, "TELEGRAM_CHAT_ID is missing or a placeholder (ask @userinfobot)")
		}
		if c.TelegramMaxLength <= 0 {
			problems = append(problems, "TELEGRAM_MAX_MESSAGE_LENGTH must be positive")
		}
	case DeliveryEmail:
		if IsPlaceholder(c.EmailFrom) {
			problems = append(problems, "EMAIL_FROM is missing or a placeholder")
		}
		if IsPlaceholder(c.SMTPPassword) {
			problems = append(problems, "SMTP_PASSWORD is missing or a placeholder")
		}
		if len(c.EmailTo) == 0 {
			problems = append(problems, "EMAIL_TO is missing")
		}
		for _, to := range c.EmailTo {
			if IsPlaceholder(to) {
				problems = append(problems, fmt.Sprintf("EMAIL_TO entry %q is a placeholder", to))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown delivery %q", c.Delivery))
	}

	if len(c.Feeds) == 0 {
		problems = append(problems, "no feeds configured")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	}
	if c.MaxChars <= 0 {
		problems = append(problems, "MAX_CHARS must be positive")
	}
	if c.RetrievalAttempts <= 0 {
		problems = append(problems, "RETRIEVAL_ATTEMPTS must be positive")
	}
	if c.LedgerPath == "" {
		problems = append(problems, "LEDGER_PATH is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}
