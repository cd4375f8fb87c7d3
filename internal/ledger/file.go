package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ObiAU/feeddigest/internal/models"
)

// FileLedger persists the ledger as a JSON object mapping each source to
// the ids processed for it. A source mapped to a single string (the
// single-latest layout) is read as a one-element set.
type FileLedger struct {
	path  string
	state *state
}

func NewFileLedger(path string, retention int) *FileLedger {
	return &FileLedger{
		path:  path,
		state: newState(retention),
	}
}

func (l *FileLedger) IsProcessed(source, itemID string) bool {
	return l.state.has(source, itemID)
}

// MarkProcessed records the item and saves the whole ledger. The item
// stays marked in memory even when the save fails.
func (l *FileLedger) MarkProcessed(source, itemID string) error {
	l.state.add(source, itemID)

	if err := l.save(); err != nil {
		return fmt.Errorf("%w: saving ledger %s: %v", models.ErrPersistenceDegraded, l.path, err)
	}
	return nil
}

// Load merges the file into memory. A missing file is not an error; an
// unreadable or malformed one leaves memory untouched and returns
// ErrPersistenceDegraded.
func (l *FileLedger) Load() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("ledger file does not exist yet", "path", l.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading ledger %s: %v", models.ErrPersistenceDegraded, l.path, err)
	}

	stored, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: parsing ledger %s: %v", models.ErrPersistenceDegraded, l.path, err)
	}

	l.state.merge(stored)
	return nil
}

func (l *FileLedger) Stats() map[string]any {
	stats := l.state.stats()
	stats["backend"] = "json"
	stats["path"] = l.path
	return stats
}

func (l *FileLedger) Close() error {
	return nil
}

func decode(data []byte) (map[string][]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	stored := make(map[string][]string, len(raw))
	for source, value := range raw {
		var ids []string
		if err := json.Unmarshal(value, &ids); err == nil {
			stored[source] = ids
			continue
		}

		var latest string
		if err := json.Unmarshal(value, &latest); err == nil && latest != "" {
			stored[source] = []string{latest}
			continue
		}

		slog.Warn("ignoring unreadable ledger entry", "source", source)
	}
	return stored, nil
}

func (l *FileLedger) save() error {
	data, err := json.MarshalIndent(l.state.snapshot(), "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), l.path)
}
