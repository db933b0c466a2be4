// Package store persists generator state between runs in a SQLite
// database, currently the repository fingerprints driving the staleness
// checks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ximion/appstream-generator-sub004/internal/core"
)

// Store is a SQLite-backed core.DataStore with separate read and write
// pools. The write pool is capped at one connection; SQLite serializes
// writers anyway and a single connection avoids lock churn.
type Store struct {
	write *sql.DB
	read  *sql.DB
	path  string
}

var _ core.DataStore = (*Store)(nil)

// Open opens (and if needed creates) the state database at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)

	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)
	write.SetConnMaxLifetime(time.Hour)

	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(10)
	read.SetMaxIdleConns(5)
	read.SetConnMaxIdleTime(time.Minute)
	read.SetConnMaxLifetime(time.Hour)

	s := &Store{write: write, read: read, path: dbPath}
	if err := s.initSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS repo_state (
    key        TEXT PRIMARY KEY,
    hash       TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
	`
	if _, err := s.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// RepoHash returns the stored fingerprint for key, or "" when none is
// recorded.
func (s *Store) RepoHash(key string) (string, error) {
	var hash string
	err := s.read.QueryRow(`SELECT hash FROM repo_state WHERE key = ?`, key).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query repo hash: %w", err)
	}
	return hash, nil
}

// SetRepoHash records the fingerprint for key, replacing any previous
// value.
func (s *Store) SetRepoHash(key, hash string) error {
	_, err := s.write.Exec(`
INSERT INTO repo_state (key, hash, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET hash = excluded.hash, updated_at = CURRENT_TIMESTAMP
	`, key, hash)
	if err != nil {
		return fmt.Errorf("store repo hash: %w", err)
	}
	return nil
}

// Close closes both connection pools.
func (s *Store) Close() error {
	writeErr := s.write.Close()
	readErr := s.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}
