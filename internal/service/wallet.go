package service

import (
	"context"
	"log/slog"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/store"
)

// Options configures a Wallet.
type Options struct {
	Store           store.CredentialStore
	Logger          *slog.Logger
	TransferRetries int
}

// Wallet is the context of one logged-in session. It owns the session's
// credential cache and wires it to the gate, search and transfer components.
type Wallet struct {
	Session   domain.Session
	Cache     *CredentialCache
	Gate      *Gate
	Search    *RecipientSearch
	Transfers *TransferExecutor
}

// NewWallet builds the components for session s.
func NewWallet(l Ledger, s domain.Session, opts Options) (*Wallet, error) {
	if !s.Valid() {
		return nil, domain.ErrNoSession
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("user", s.Handle)
	backend := opts.Store
	if backend == nil {
		backend = store.NewMemoryStore(store.DefaultTTL)
	}

	cache := NewCredentialCache(backend, s.Handle, logger)
	return &Wallet{
		Session:   s,
		Cache:     cache,
		Gate:      NewGate(l, cache, s, logger),
		Search:    NewRecipientSearch(l, s, logger),
		Transfers: NewTransferExecutor(l, s, opts.TransferRetries, logger),
	}, nil
}

// Logout forgets the cached code and returns the gate to Unverified.
// Work in flight is dropped.
func (w *Wallet) Logout(ctx context.Context) error {
	w.Gate.Reset()
	w.Gate.Close()
	w.Search.Close()
	return w.Cache.Clear(ctx)
}
