package ledger

import (
	"fmt"
	"sync"

	"github.com/ObiAU/feeddigest/internal/models"
)

// Ledger records which items were fully delivered, per source. The
// in-memory view is authoritative for the lifetime of the process; the
// backing store is best effort.
type Ledger interface {
	IsProcessed(source, itemID string) bool
	MarkProcessed(source, itemID string) error
	Load() error
	Stats() map[string]any
	Close() error
}

// Open returns the ledger for the configured backend. Storage problems
// never fail Open: the ledger starts empty and the error is reported by Load.
func Open(backend, path string, retention int) (Ledger, error) {
	switch backend {
	case "", "json":
		return NewFileLedger(path, retention), nil
	case "sqlite":
		return NewSQLiteLedger(path, retention), nil
	default:
		return nil, fmt.Errorf("%w: unknown ledger backend %q", models.ErrConfigInvalid, backend)
	}
}

type state struct {
	mu        sync.RWMutex
	order     map[string][]string
	index     map[string]map[string]struct{}
	retention int
}

func newState(retention int) *state {
	return &state{
		order:     make(map[string][]string),
		index:     make(map[string]map[string]struct{}),
		retention: retention,
	}
}

func (s *state) has(source, itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index[source][itemID]
	return ok
}

// add appends itemID to the source and reports whether it was new.
func (s *state) add(source, itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addLocked(source, itemID)
}

func (s *state) addLocked(source, itemID string) bool {
	ids, ok := s.index[source]
	if !ok {
		ids = make(map[string]struct{})
		s.index[source] = ids
	}
	if _, exists := ids[itemID]; exists {
		return false
	}

	ids[itemID] = struct{}{}
	s.order[source] = append(s.order[source], itemID)
	s.trimLocked(source)
	return true
}

func (s *state) trimLocked(source string) {
	if s.retention <= 0 {
		return
	}
	order := s.order[source]
	if len(order) <= s.retention {
		return
	}

	drop := len(order) - s.retention
	for _, id := range order[:drop] {
		delete(s.index[source], id)
	}
	s.order[source] = append([]string(nil), order[drop:]...)
}

// merge unions stored ids into memory. Stored ids are treated as older
// than anything only known in memory.
func (s *state) merge(stored map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for source, ids := range stored {
		current := s.order[source]
		s.order[source] = nil
		s.index[source] = make(map[string]struct{})

		for _, id := range ids {
			s.addLocked(source, id)
		}
		for _, id := range current {
			s.addLocked(source, id)
		}
	}
}

func (s *state) snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.order))
	for source, ids := range s.order {
		out[source] = append([]string(nil), ids...)
	}
	return out
}

func (s *state) stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	perSource := make(map[string]int, len(s.order))
	for source, ids := range s.order {
		perSource[source] = len(ids)
		total += len(ids)
	}

	return map[string]any{
		"sources":    len(s.order),
		"processed":  total,
		"per_source": perSource,
		"retention":  s.retention,
	}
}
