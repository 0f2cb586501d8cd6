// Package cli holds the subcommands of the wallet terminal client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"github.com/punchamoorthee/coinwallet/internal/config"
	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/ledger"
	"github.com/punchamoorthee/coinwallet/internal/service"
	"github.com/punchamoorthee/coinwallet/internal/store"
)

// Commands is the list of wallet subcommands.
var Commands = []subcommands.Command{
	&verifyCmd{},
	&accountCmd{},
	&searchCmd{},
	&transferCmd{},
	&logoutCmd{},
}

// Env is passed to every command as the first Execute argument.
type Env struct {
	Out  io.Writer
	Err  io.Writer
	Open func(ctx context.Context) (*service.Wallet, func(), error)
}

// FromConfig builds an Env whose wallet talks to the configured ledger with
// the session taken from WALLET_HANDLE and friends.
func FromConfig(cfg *config.Config, logger *slog.Logger) *Env {
	return &Env{
		Out: os.Stdout,
		Err: os.Stderr,
		Open: func(ctx context.Context) (*service.Wallet, func(), error) {
			credentials, closeStore, err := store.Open(ctx, cfg)
			if err != nil {
				return nil, nil, fmt.Errorf("opening credential store: %w", err)
			}
			w, err := service.NewWallet(
				ledger.NewClient(cfg.LedgerBaseURL, cfg.LedgerTimeout, logger),
				domain.Session{DisplayName: cfg.DisplayName, Handle: cfg.Handle, AuthToken: cfg.AuthToken},
				service.Options{Store: credentials, Logger: logger, TransferRetries: cfg.TransferRetries},
			)
			if err != nil {
				closeStore()
				return nil, nil, fmt.Errorf("WALLET_HANDLE must be set: %w", err)
			}
			return w, closeStore, nil
		},
	}
}

// envFrom extracts the Env passed to Execute.
func envFrom(args []interface{}) (*Env, bool) {
	if len(args) > 0 {
		if env, ok := args[0].(*Env); ok {
			return env, true
		}
	}
	fmt.Fprintln(os.Stderr, "internal error: no environment")
	return nil, false
}

// wallet opens the session's wallet, reporting a failure to env.Err.
func (env *Env) wallet(ctx context.Context) (*service.Wallet, func(), bool) {
	w, closer, err := env.Open(ctx)
	if err != nil {
		fmt.Fprintln(env.Err, err)
		return nil, nil, false
	}
	return w, closer, true
}

// envOf extracts the Env and opens the wallet.
func envOf(ctx context.Context, args []interface{}) (*Env, *service.Wallet, func(), bool) {
	env, ok := envFrom(args)
	if !ok {
		return nil, nil, nil, false
	}
	w, closer, ok := env.wallet(ctx)
	if !ok {
		return nil, nil, nil, false
	}
	return env, w, closer, true
}

// explain turns a wallet error into a line for the user.
func explain(err error) string {
	var svcErr *domain.ServiceError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fmt.Sprintf("invalid input: %v", err)
	case errors.Is(err, domain.ErrCredentialRejected):
		return "verification code rejected; run `wallet verify -code <code>` again"
	case errors.Is(err, domain.ErrNotVerified):
		return "not verified; run `wallet verify -code <code>` first"
	case errors.Is(err, domain.ErrMalformedRecord):
		return "the transfer was sent but the ledger returned an incomplete record; check `wallet account` before retrying"
	case errors.As(err, &svcErr):
		return svcErr.Message
	case domain.Kind(err) == "network":
		return "could not reach the ledger service, try again"
	}
	return err.Error()
}
