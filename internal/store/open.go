package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/coinwallet/internal/config"
)

// Open builds the backend selected by cfg. The returned func releases it.
func Open(ctx context.Context, cfg *config.Config) (CredentialStore, func(), error) {
	switch cfg.CredentialStore {
	case config.StoreSQLite:
		s, err := OpenSQLite(cfg.SQLitePath, cfg.CredentialTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.StorePostgres:
		s, err := NewPostgresStore(ctx, cfg.DBSource, cfg.CredentialTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreRedis:
		s, err := DialRedis(ctx, cfg.RedisAddr, cfg.CredentialTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.StoreMemory, "":
		return NewMemoryStore(cfg.CredentialTTL), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
}
