package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

func (a *Aggregator) startHTTPServer() {
	a.server = &http.Server{
		Addr:              ":" + a.config.ServerPort,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()
}

func (a *Aggregator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/stats", a.statsHandler)
	return mux
}

func (a *Aggregator) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","running":%t,"timestamp":"%s"}`, a.isRunning(), time.Now().Format(time.RFC3339))
}

func (a *Aggregator) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.Snapshot()); err != nil {
		slog.Warn("failed to encode stats", "error", err)
	}
}

// StatusLines renders the snapshot as key/value pairs for chat commands.
func (a *Aggregator) StatusLines() [][2]string {
	s := a.Snapshot()

	lines := [][2]string{
		{"Running", fmt.Sprintf("%t", s.Running)},
		{"Feeds", fmt.Sprintf("%d", s.Sources)},
		{"Cycles", fmt.Sprintf("%d", s.Cycles)},
	}
	if n, ok := s.LedgerInfo["processed"]; ok {
		lines = append(lines, [2]string{"Processed items", fmt.Sprint(n)})
	}
	if s.LastCycle != nil {
		lines = append(lines,
			[2]string{"Last cycle", s.LastCycle.Started.Format(time.RFC3339)},
			[2]string{"Delivered", fmt.Sprintf("%d", s.LastCycle.Count(StateDelivered))},
			[2]string{"Failed", fmt.Sprintf("%d", s.LastCycle.Count(StateRetrievalFailed)+s.LastCycle.Count(StateSummaryFailed)+s.LastCycle.Count(StateDeliveryFailed))},
			[2]string{"Unreachable feeds", fmt.Sprintf("%d", s.LastCycle.SourcesFailed)},
		)
	}
	return lines
}

func (a *Aggregator) shutdown() error {
	slog.Info("shutting down aggregator")

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}
