package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists call results across process restarts. Writes go
// through a single-connection pool so SQLite never sees concurrent writers.
type SQLiteStore struct {
	db *sql.DB
}

// sqliteDSN constructs a connection string with recommended PRAGMA settings.
func sqliteDSN(file string) string {
	params := make(url.Values)
	params.Add("_journal_mode", "WAL")
	params.Add("_busy_timeout", "5000")
	params.Add("_synchronous", "NORMAL")
	params.Add("_foreign_keys", "true")
	params.Add("_txlock", "immediate")
	params.Add("mode", "rwc")
	return "file:" + file + "?" + params.Encode()
}

// OpenSQLiteStore opens (creating if needed) the result database at path and
// ensures the schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// PRAGMAs that can't be set via the connection string.
	for _, pragma := range []string{"temp_store=memory", "busy_timeout=10000"} {
		if _, err := db.Exec("PRAGMA " + pragma + ";"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set PRAGMA %s: %w", pragma, err)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the results table if it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS call_results (
			id         TEXT PRIMARY KEY,
			call_id    TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			value      TEXT NOT NULL,
			stored_at  TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create results schema: %w", err)
	}
	return nil
}

// Save upserts an entry. A repeated call id keeps its original row (and thus
// its first-store position) with the value and name replaced.
func (s *SQLiteStore) Save(ctx context.Context, entry Entry) error {
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("failed to encode result value: %w", err)
	}
	storedAt := entry.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO call_results (id, call_id, name, value, stored_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			name = excluded.name,
			value = excluded.value,
			stored_at = excluded.stored_at;
	`, uuid.NewString(), entry.ID, entry.Name, string(value), storedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save result for call %s: %w", entry.ID, err)
	}
	return nil
}

// Load returns all persisted entries ordered by first store.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, name, value, stored_at
		FROM call_results
		ORDER BY rowid;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var value string
		if err := rows.Scan(&entry.ID, &entry.Name, &value, &entry.StoredAt); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		if err := json.Unmarshal([]byte(value), &entry.Value); err != nil {
			return nil, fmt.Errorf("failed to decode result value for call %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}
	return entries, nil
}

// Delete removes the entry for a call id. Deleting an absent id is not an
// error.
func (s *SQLiteStore) Delete(ctx context.Context, callID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM call_results WHERE call_id = ?;`, callID); err != nil {
		return fmt.Errorf("failed to delete result for call %s: %w", callID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
