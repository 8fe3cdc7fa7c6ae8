// Package store provides SQLite-backed key-value storage scoped per
// workspace and globally, standing in for the host editor's memento state.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// GlobalScope is shared by every workspace.
const GlobalScope = "global"

// WorkspaceScope returns the scope name for a workspace root.
func WorkspaceScope(root string) string {
	return "workspace:" + root
}

// Entry is one stored value.
type Entry struct {
	Scope     string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store wraps a SQLite database holding scoped key-value state.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dbPath and ensures
// all required tables exist. Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_state (
			scope      TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (scope, key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Get returns the value stored under scope/key and whether it exists.
func (s *Store) Get(scope, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM kv_state WHERE scope = ? AND key = ?`,
		scope, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

// Set stores value under scope/key, replacing any previous value.
func (s *Store) Set(scope, key, value string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO kv_state (scope, key, value, updated_at)
		 VALUES (?, ?, ?, datetime('now'))`,
		scope, key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes scope/key. Deleting a missing key is not an error.
func (s *Store) Delete(scope, key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_state WHERE scope = ? AND key = ?`, scope, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	return nil
}

// List returns every entry of scope sorted by key.
func (s *Store) List(scope string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT scope, key, value, updated_at
		 FROM kv_state WHERE scope = ? ORDER BY key`, scope,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", scope, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Scope, &e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Scoped is a view of the store bound to one scope.
type Scoped struct {
	store *Store
	scope string
}

// Scope returns a view bound to scope.
func (s *Store) Scope(scope string) *Scoped {
	return &Scoped{store: s, scope: scope}
}

// Get returns the value under key, or "" when absent.
func (s *Scoped) Get(key string) (string, error) {
	v, _, err := s.store.Get(s.scope, key)
	return v, err
}

// Set stores value under key.
func (s *Scoped) Set(key, value string) error {
	return s.store.Set(s.scope, key, value)
}

// Delete removes key.
func (s *Scoped) Delete(key string) error {
	return s.store.Delete(s.scope, key)
}
