package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vortexlabs/loginchat/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_kv (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, key)
)`

// SQLiteStore persists values in a sqlite file, partitioned by session id.
// Rows from other sessions are never read or cleared.
type SQLiteStore struct {
	db        *sql.DB
	sessionID string
}

// OpenSQLite opens (creating if needed) the database at path. An empty
// sessionID starts a fresh session with a random id.
func OpenSQLite(path, sessionID string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	logger.DebugCF("store", "Session store opened", map[string]interface{}{
		"path":       path,
		"session_id": sessionID,
	})

	return &SQLiteStore{db: db, sessionID: sessionID}, nil
}

func (s *SQLiteStore) SessionID() string {
	return s.sessionID
}

func (s *SQLiteStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM session_kv WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_kv (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.sessionID, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM session_kv WHERE session_id = ? AND key = ?`, s.sessionID, key); err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM session_kv WHERE session_id = ?`, s.sessionID); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
