package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ObiAU/feeddigest/internal/models"
)

// TranscriptSource returns the trimmed text fragments of one item in the
// first language it can serve. Failures should be *FetchError so the
// retriever can tell retryable blocks from final absences.
type TranscriptSource interface {
	Fetch(ctx context.Context, item models.Item, languages []string) ([]string, error)
}

type FetchError struct {
	Reason models.Reason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchError(reason models.Reason, format string, args ...any) *FetchError {
	return &FetchError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

type Options struct {
	SettleDelay time.Duration
	Attempts    int
	Backoff     time.Duration
}

type Retriever struct {
	sources     map[models.SourceKind]TranscriptSource
	settleDelay time.Duration
	attempts    int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(sources map[models.SourceKind]TranscriptSource, opts Options) *Retriever {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Retriever{
		sources:     sources,
		settleDelay: opts.SettleDelay,
		attempts:    opts.Attempts,
		backoff:     opts.Backoff,
		sleep:       sleepContext,
	}
}

// Fetch waits the settle delay, then asks the source matching the item's
// kind for text. The joined text is cut to maxChars runes; maxChars <= 0
// disables the cut.
func (r *Retriever) Fetch(ctx context.Context, kind models.SourceKind, item models.Item, languages []string, maxChars int) models.RetrievalResult {
	src, ok := r.sources[kind]
	if !ok {
		return models.Absent(models.ReasonUnknown, fmt.Sprintf("no retriever for source kind %q", kind))
	}

	if err := r.sleep(ctx, r.settleDelay); err != nil {
		return models.Absent(models.ReasonUnknown, describe(err))
	}

	var (
		fragments []string
		lastErr   *FetchError
	)
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var err error
		fragments, err = src.Fetch(ctx, item, languages)
		if err == nil {
			lastErr = nil
			break
		}

		lastErr = classify(err)
		slog.Warn("retrieval attempt failed",
			"source", item.Source,
			"item_id", item.ID,
			"attempt", attempt,
			"reason", lastErr.Reason,
			"error", err)

		if !lastErr.Reason.Retryable() || attempt == r.attempts {
			break
		}
		if err := r.sleep(ctx, r.backoff<<(attempt-1)); err != nil {
			break
		}
	}

	if lastErr != nil {
		return models.Absent(lastErr.Reason, describe(lastErr))
	}

	text := strings.Join(fragments, " ")
	if strings.TrimSpace(text) == "" {
		return models.Absent(models.ReasonNoTranscript, models.ReasonNoTranscript.Describe())
	}

	text, truncated := truncate(text, maxChars)
	return models.Retrieved(text, truncated)
}

func classify(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Reason: models.ReasonUnknown, Err: err}
}

// describe turns a failure into the operator-facing detail line. Unknown
// failures keep at most the first 100 characters of the message.
func describe(err error) string {
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Reason == models.ReasonUnknown {
		msg := err.Error()
		if fe != nil && fe.Err != nil {
			msg = fe.Err.Error()
		}
		if r := []rune(msg); len(r) > 100 {
			msg = string(r[:100])
		}
		return models.ReasonUnknown.Describe() + ": " + msg
	}
	return fe.Reason.Describe()
}

func truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return text, false
	}
	r := []rune(text)
	if len(r) <= maxChars {
		return text, false
	}
	return string(r[:maxChars]), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
