package service

import (
	"context"
	"log/slog"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/store"
)

// CredentialCache holds the last accepted verification code of one session.
// It performs no validation.
type CredentialCache struct {
	store  store.CredentialStore
	key    string
	logger *slog.Logger
}

func NewCredentialCache(s store.CredentialStore, sessionKey string, logger *slog.Logger) *CredentialCache {
	return &CredentialCache{store: s, key: sessionKey, logger: logger}
}

// Get returns the cached credential. A backend failure reads as a miss, which
// only costs the user a re-verification.
func (c *CredentialCache) Get(ctx context.Context) (domain.VerificationCredential, bool) {
	code, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		c.logger.WarnContext(ctx, "credential cache read failed", "error", err)
		return domain.VerificationCredential{}, false
	}
	if !ok {
		return domain.VerificationCredential{}, false
	}
	return domain.VerificationCredential{Code: code}, true
}

func (c *CredentialCache) Set(ctx context.Context, code string) error {
	return c.store.Put(ctx, c.key, code)
}

func (c *CredentialCache) Clear(ctx context.Context) error {
	return c.store.Delete(ctx, c.key)
}
