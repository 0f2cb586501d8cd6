package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS session_credentials (
	session_key TEXT PRIMARY KEY,
	code        TEXT NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps codes in Postgres so several walletd replicas share them.
type PostgresStore struct {
	Db  *pgxpool.Pool
	ttl time.Duration
}

// NewPostgresStore connects to connString and checks the connection.
func NewPostgresStore(ctx context.Context, connString string, ttl time.Duration) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{Db: pool, ttl: ttl}, nil
}

func (s *PostgresStore) Close() {
	s.Db.Close()
}

// Migrate creates the credential table if it is missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.Db.Exec(ctx, Schema)
	return err
}

// PurgeExpired deletes rows past their expiry and reports how many went.
// Expired rows are never served; this only reclaims space.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.Db.Exec(ctx, "DELETE FROM session_credentials WHERE expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("credential purge failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var code string
	err := s.Db.QueryRow(ctx,
		"SELECT code FROM session_credentials WHERE session_key = $1 AND expires_at > now()",
		key).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("credential lookup failed: %w", err)
	}
	return code, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key, code string) error {
	_, err := s.Db.Exec(ctx,
		`INSERT INTO session_credentials (session_key, code, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (session_key) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		key, code, time.Now().Add(s.ttl))
	if err != nil {
		return fmt.Errorf("credential upsert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.Db.Exec(ctx, "DELETE FROM session_credentials WHERE session_key = $1", key); err != nil {
		return fmt.Errorf("credential delete failed: %w", err)
	}
	return nil
}
