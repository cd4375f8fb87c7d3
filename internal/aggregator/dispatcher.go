package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/ObiAU/feeddigest/internal/markup"
	"github.com/ObiAU/feeddigest/internal/models"
)

// State is a step of one item's trip through the dispatcher. Only
// StateDelivered marks the item processed.
type State int

const (
	StateDiscovered State = iota
	StateLedgerChecked
	StateAlreadyProcessed
	StateRetrievalPending
	StateRetrievalFailed
	StateSummarizing
	StateSummaryFailed
	StateNormalizing
	StateDelivering
	StateDeliveryFailed
	StateDelivered
	StateAborted
)

var stateNames = map[State]string{
	StateDiscovered:       "discovered",
	StateLedgerChecked:    "ledger_checked",
	StateAlreadyProcessed: "already_processed",
	StateRetrievalPending: "retrieval_pending",
	StateRetrievalFailed:  "retrieval_failed",
	StateSummarizing:      "summarizing",
	StateSummaryFailed:    "summary_failed",
	StateNormalizing:      "normalizing",
	StateDelivering:       "delivering",
	StateDeliveryFailed:   "delivery_failed",
	StateDelivered:        "delivered",
	StateAborted:          "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) Terminal() bool {
	switch s {
	case StateAlreadyProcessed, StateRetrievalFailed, StateSummaryFailed, StateDeliveryFailed, StateDelivered, StateAborted:
		return true
	}
	return false
}

const separator = "━━━━━━━━━━━━━━━━━━"

// processItem runs one item to a terminal state.
func (a *Aggregator) processItem(ctx context.Context, log *slog.Logger, src models.Source, item models.Item) (state State) {
	log = log.With("source", src.Name, "item_id", item.ID)
	state = StateDiscovered

	defer func() {
		if r := recover(); r != nil {
			log.Error("item processing panicked", "state", state, "panic", r, "stack", string(debug.Stack()))
			state = StateAborted
		}
	}()

	state = StateLedgerChecked
	if a.ledger.IsProcessed(src.Name, item.ID) {
		log.Debug("item already processed")
		return StateAlreadyProcessed
	}

	log.Info("processing new item", "title", item.Title)

	state = StateRetrievalPending
	languages := src.Languages
	if len(languages) == 0 {
		languages = a.config.TranscriptLanguages
	}
	result := a.retriever.Fetch(ctx, src.Kind, item, languages, a.config.MaxChars)
	if !result.OK() {
		log.Warn("item left unprocessed",
			"reason", result.Reason,
			"error", fmt.Errorf("%w: %s", models.ErrRetrievalDegraded, result.Detail))
		a.notifyFailure(ctx, log, src, item, result)
		return StateRetrievalFailed
	}
	if result.Truncated {
		log.Info("source text truncated", "max_chars", a.config.MaxChars)
	}

	state = StateSummarizing
	summary, err := a.summarizer.Summarize(ctx, item, result.Text)
	if err != nil {
		log.Error("item left unprocessed", "reason", "generation_failed", "error", err)
		return StateSummaryFailed
	}

	state = StateNormalizing
	msg := models.Message{
		Subject: subject(src, item),
		Body:    markup.Normalize(header(src, item) + "\n\n" + separator + "\n\n" + summary + "\n"),
	}

	state = StateDelivering
	if err := a.notifier.Deliver(ctx, msg); err != nil {
		log.Error("item left unprocessed", "reason", "delivery_failed", "error", err)
		return StateDeliveryFailed
	}

	if err := a.ledger.MarkProcessed(src.Name, item.ID); err != nil {
		log.Warn("delivered but ledger not saved", "error", err)
	}
	log.Info("item delivered")
	return StateDelivered
}

// notifyFailure tells the operator an item could not be retrieved. Its
// own failure is only logged.
func (a *Aggregator) notifyFailure(ctx context.Context, log *slog.Logger, src models.Source, item models.Item, result models.RetrievalResult) {
	var sb strings.Builder
	sb.WriteString("⚠️ <b>ERROR PROCESSING ITEM</b>\n\n")
	sb.WriteString(header(src, item))
	sb.WriteString("\n\n" + separator + "\n\n")
	sb.WriteString("❌ <b>Could not retrieve the content</b>\n\n")
	sb.WriteString("<b>Reason:</b>\n")
	sb.WriteString("• " + markup.Escape(result.Detail) + "\n\n")
	sb.WriteString(fmt.Sprintf("💡 <b>Next step:</b> it will be retried in %s.\n", a.config.PollInterval))
	sb.WriteString("If the problem persists, check the item manually.")

	msg := models.Message{
		Subject: "⚠️ Could not process: " + item.Title,
		Body:    markup.Normalize(sb.String()),
	}
	if err := a.notifier.Deliver(ctx, msg); err != nil {
		log.Warn("failure notification not delivered", "error", err)
	}
}

func header(src models.Source, item models.Item) string {
	label := "Watch video"
	if src.Kind == models.KindArticle {
		label = "Read article"
	}

	lines := []string{
		"📺 <b>" + markup.Escape(src.Name) + "</b>",
		"🎬 " + markup.Escape(item.Title),
	}
	if item.Link != "" {
		lines = append(lines, "🔗 "+markup.Link(item.Link, label))
	}
	if item.Published != "" {
		lines = append(lines, "📅 "+markup.Escape(item.Published))
	}
	return strings.Join(lines, "\n")
}

func subject(src models.Source, item models.Item) string {
	return src.Name + ": " + item.Title
}
