package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ObiAU/feeddigest/internal/config"
	"github.com/ObiAU/feeddigest/internal/models"
)

type Retriever interface {
	Fetch(ctx context.Context, kind models.SourceKind, item models.Item, languages []string, maxChars int) models.RetrievalResult
}

type Summarizer interface {
	Summarize(ctx context.Context, item models.Item, text string) (string, error)
}

// Notifier delivers one composed message. Splitting into transport-sized
// parts is the notifier's job.
type Notifier interface {
	Deliver(ctx context.Context, msg models.Message) error
}

type Ledger interface {
	IsProcessed(source, itemID string) bool
	MarkProcessed(source, itemID string) error
	Load() error
	Stats() map[string]any
}

type Aggregator struct {
	config     *config.Config
	feeds      models.FeedSource
	ledger     Ledger
	retriever  Retriever
	summarizer Summarizer
	notifier   Notifier
	server     *http.Server

	mu         sync.RWMutex
	running    bool
	cycles     int
	lastReport *CycleReport
}

func New(cfg *config.Config, feeds models.FeedSource, ledger Ledger, retriever Retriever, summarizer Summarizer, notifier Notifier) *Aggregator {
	return &Aggregator{
		config:     cfg,
		feeds:      feeds,
		ledger:     ledger,
		retriever:  retriever,
		summarizer: summarizer,
		notifier:   notifier,
	}
}

// Run polls every configured feed, then sleeps the poll interval, until
// ctx is cancelled. A failing cycle never stops the loop.
func (a *Aggregator) Run(ctx context.Context) error {
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	if a.config.ServerPort != "" {
		a.startHTTPServer()
	}

	for {
		a.runCycleSafely(ctx)

		timer := time.NewTimer(a.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return a.shutdown()
		case <-timer.C:
		}
	}
}

func (a *Aggregator) runCycleSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cycle panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := a.ledger.Load(); err != nil {
		slog.Warn("ledger reload failed, keeping in-memory state", "error", err)
	}

	report := a.RunCycle(ctx)

	a.mu.Lock()
	a.cycles++
	a.lastReport = &report
	a.mu.Unlock()
}

type CycleReport struct {
	ID             string        `json:"id"`
	Started        time.Time     `json:"started"`
	Duration       time.Duration `json:"duration"`
	Sources        int           `json:"sources"`
	SourcesFailed  int           `json:"sources_failed"`
	States         map[State]int `json:"states"`
	ContextExpired bool          `json:"context_expired,omitempty"`
}

func (r CycleReport) Count(s State) int {
	return r.States[s]
}

type listing struct {
	items []models.Item
	err   error
}

// RunCycle processes every configured source once. Feeds are listed in
// parallel; items are processed one at a time in source order.
func (a *Aggregator) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:      uuid.NewString(),
		Started: time.Now(),
		Sources: len(a.config.Feeds),
		States:  make(map[State]int),
	}
	log := slog.With("cycle", report.ID)
	log.Info("cycle started", "sources", report.Sources)

	listings := a.listAll(ctx)

	for i, src := range a.config.Feeds {
		if ctx.Err() != nil {
			report.ContextExpired = true
			break
		}

		if err := listings[i].err; err != nil {
			log.Warn("skipping source this cycle", "source", src.Name, "error", err)
			report.SourcesFailed++
			continue
		}

		for _, item := range a.candidates(listings[i].items) {
			if ctx.Err() != nil {
				report.ContextExpired = true
				break
			}
			report.States[a.processItem(ctx, log, src, item)]++
		}
	}

	report.Duration = time.Since(report.Started)
	log.Info("cycle finished",
		"duration", report.Duration.Round(time.Millisecond),
		"delivered", report.Count(StateDelivered),
		"already_processed", report.Count(StateAlreadyProcessed),
		"failed", report.Count(StateRetrievalFailed)+report.Count(StateSummaryFailed)+report.Count(StateDeliveryFailed)+report.Count(StateAborted),
		"sources_failed", report.SourcesFailed)
	return report
}

func (a *Aggregator) listAll(ctx context.Context) []listing {
	results := make([]listing, len(a.config.Feeds))

	var g errgroup.Group
	g.SetLimit(max(a.config.FeedConcurrency, 1))
	for i, src := range a.config.Feeds {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = listing{err: fmt.Errorf("%w: panic while listing: %v", models.ErrSourceUnreachable, r)}
				}
			}()
			items, err := a.feeds.ListEntries(ctx, src)
			results[i] = listing{items: items, err: err}
			return nil
		})
	}
	g.Wait()

	return results
}

// candidates picks the entries worth a ledger check, oldest first so
// notifications arrive in publication order.
func (a *Aggregator) candidates(newestFirst []models.Item) []models.Item {
	n := len(newestFirst)
	switch {
	case a.config.LatestOnly:
		n = min(n, 1)
	case a.config.MaxItemsPerSource > 0:
		n = min(n, a.config.MaxItemsPerSource)
	}

	out := make([]models.Item, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out
}

type Snapshot struct {
	Running    bool           `json:"running"`
	Cycles     int            `json:"cycles"`
	Sources    int            `json:"sources"`
	LastCycle  *CycleReport   `json:"last_cycle,omitempty"`
	LedgerInfo map[string]any `json:"ledger"`
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var last *CycleReport
	if a.lastReport != nil {
		r := *a.lastReport
		last = &r
	}
	return Snapshot{
		Running:    a.running,
		Cycles:     a.cycles,
		Sources:    len(a.config.Feeds),
		LastCycle:  last,
		LedgerInfo: a.ledger.Stats(),
	}
}

func (a *Aggregator) isRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}
