package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ObiAU/feeddigest/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_items (
	source TEXT NOT NULL,
	item_id TEXT NOT NULL,
	processed_at INTEGER NOT NULL,
	PRIMARY KEY (source, item_id)
);
CREATE INDEX IF NOT EXISTS idx_processed_items_source ON processed_items(source, processed_at);
`

// SQLiteLedger keeps the ledger in a SQLite database. It opens the
// database lazily so a broken file degrades to a memory-only ledger.
type SQLiteLedger struct {
	path  string
	state *state

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteLedger(path string, retention int) *SQLiteLedger {
	return &SQLiteLedger{
		path:  path,
		state: newState(retention),
	}
}

func (l *SQLiteLedger) open(ctx context.Context) (*sql.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return l.db, nil
	}

	db, err := sql.Open("sqlite", l.path+"?mode=rwc")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	l.db = db
	return db, nil
}

func (l *SQLiteLedger) IsProcessed(source, itemID string) bool {
	return l.state.has(source, itemID)
}

func (l *SQLiteLedger) MarkProcessed(source, itemID string) error {
	l.state.add(source, itemID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := l.insert(ctx, source, itemID); err != nil {
		return fmt.Errorf("%w: writing ledger %s: %v", models.ErrPersistenceDegraded, l.path, err)
	}
	return nil
}

func (l *SQLiteLedger) insert(ctx context.Context, source, itemID string) error {
	db, err := l.open(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_items (source, item_id, processed_at) VALUES (?, ?, ?)`,
		source, itemID, time.Now().UnixNano()); err != nil {
		return err
	}

	if l.state.retention > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM processed_items
			WHERE source = ? AND item_id NOT IN (
				SELECT item_id FROM processed_items
				WHERE source = ?
				ORDER BY processed_at DESC, rowid DESC
				LIMIT ?
			)`, source, source, l.state.retention); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (l *SQLiteLedger) Load() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stored, err := l.readAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading ledger %s: %v", models.ErrPersistenceDegraded, l.path, err)
	}

	l.state.merge(stored)
	return nil
}

func (l *SQLiteLedger) readAll(ctx context.Context) (map[string][]string, error) {
	db, err := l.open(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT source, item_id FROM processed_items ORDER BY processed_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stored := make(map[string][]string)
	for rows.Next() {
		var source, itemID string
		if err := rows.Scan(&source, &itemID); err != nil {
			return nil, err
		}
		stored[source] = append(stored[source], itemID)
	}
	return stored, rows.Err()
}

func (l *SQLiteLedger) Stats() map[string]any {
	stats := l.state.stats()
	stats["backend"] = "sqlite"
	stats["path"] = l.path

	l.mu.Lock()
	stats["connected"] = l.db != nil
	l.mu.Unlock()

	return stats
}

func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
