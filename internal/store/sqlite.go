package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps codes in a local SQLite file, so the terminal client
// stays verified across invocations within a session.
type SQLiteStore struct {
	db   *sql.DB
	ttl  time.Duration
	nowF func() time.Time
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" in tests.
func OpenSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection so ":memory:" is a single database
	db.SetMaxOpenConns(1)

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &SQLiteStore{db: db, ttl: ttl, nowF: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS session_credentials (
		session_key TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		code      string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT code, expires_at FROM session_credentials WHERE session_key = ?", key).
		Scan(&code, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("credential lookup failed: %w", err)
	}
	if expiresAt <= s.nowF().Unix() {
		return "", false, s.Delete(ctx, key)
	}
	return code, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key, code string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_credentials (session_key, code, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_key) DO UPDATE SET code = excluded.code, expires_at = excluded.expires_at`,
		key, code, s.nowF().Add(s.ttl).Unix())
	if err != nil {
		return fmt.Errorf("credential upsert failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_credentials WHERE session_key = ?", key); err != nil {
		return fmt.Errorf("credential delete failed: %w", err)
	}
	return nil
}
