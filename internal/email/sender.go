package email

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/ObiAU/feeddigest/internal/markup"
	"github.com/ObiAU/feeddigest/internal/models"
)

const maxAttempts = 3

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       []string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers messages as plain-text email.
type Sender struct {
	config   Config
	sendMail sendFunc
	backoff  time.Duration
}

func NewSender(cfg Config) (*Sender, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sender address is required", models.ErrConfigInvalid)
	}
	if len(cfg.To) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", models.ErrConfigInvalid)
	}
	if cfg.Username == "" {
		cfg.Username = cfg.From
	}

	return &Sender{
		config:   cfg,
		sendMail: smtp.SendMail,
		backoff:  time.Second,
	}, nil
}

// Deliver renders the message body as plain text and sends it, retrying
// with exponential backoff.
func (s *Sender) Deliver(ctx context.Context, msg models.Message) error {
	body := markup.PlainText(msg.Body)
	raw := s.buildMessage(msg.Subject, body)

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(math.Pow(2, float64(i))) * s.backoff
			slog.Info("retrying email send", "wait", wait, "attempt", i+1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, ctx.Err())
			case <-time.After(wait):
			}
		}

		err := s.send(raw)
		if err == nil {
			slog.Info("email sent", "subject", msg.Subject, "recipients", len(s.config.To))
			return nil
		}

		lastErr = err
		slog.Warn("email send failed", "attempt", i+1, "max_attempts", maxAttempts, "error", err)
	}

	return fmt.Errorf("%w: email after %d attempts: %v", models.ErrDeliveryFailed, maxAttempts, lastErr)
}

func (s *Sender) buildMessage(subject, body string) []byte {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(s.config.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	return []byte(msg.String())
}

func (s *Sender) send(msg []byte) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	addr := s.config.Host + ":" + s.config.Port

	if err := s.sendMail(addr, auth, s.config.From, s.config.To, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w", err)
	}
	return nil
}
