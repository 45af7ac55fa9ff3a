// Package store persists session chat history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spektr-org/flightquery/session"

	_ "modernc.org/sqlite" // SQLite driver.
)

// MemoryDSN keeps history for the life of the process only.
const MemoryDSN = ":memory:"

// Store wraps SQLite access for chat history. It implements
// session.HistoryStore.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
// An empty dsn opens MemoryDSN.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	inMemory := dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")
	if !inMemory && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS exchanges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			query TEXT NOT NULL,
			produced TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append stores one exchange.
func (s *Store) Append(ctx context.Context, sessionID string, ex session.Exchange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (session_id, query, produced, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID,
		ex.Query,
		string(ex.Produced),
		ex.Status,
		ex.Error,
		ex.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert exchange: %w", err)
	}
	return nil
}

// Recent returns the last n exchanges of a session, newest last. n <= 0
// returns all of them.
func (s *Store) Recent(ctx context.Context, sessionID string, n int) ([]session.Exchange, error) {
	limit := n
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, produced, status, error, created_at
		 FROM exchanges
		 WHERE session_id = ?
		 ORDER BY id DESC
		 LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	out := []session.Exchange{}
	for rows.Next() {
		var (
			ex        session.Exchange
			produced  string
			createdAt string
		)
		if err := rows.Scan(&ex.Query, &produced, &ex.Status, &ex.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		if produced != "" {
			ex.Produced = []byte(produced)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", createdAt, err)
		}
		ex.Timestamp = ts
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest last
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Clear deletes every exchange of a session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear exchanges: %w", err)
	}
	return nil
}

var _ session.HistoryStore = (*Store)(nil)
