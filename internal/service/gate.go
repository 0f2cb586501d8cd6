package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/punchamoorthee/coinwallet/internal/domain"
)

// ProtectedView is what the account screen may render. Balance and
// Transactions are only populated while Verified.
type ProtectedView struct {
	State        domain.VerificationState `json:"state"`
	Balance      decimal.Decimal          `json:"balance"`
	Transactions []domain.Transaction     `json:"transactions"`
}

// Gate decides whether balance and history may be shown.
//
// Each check fetches history and balance concurrently with the same code.
// A credential rejection on either leg fails the whole check closed, clears
// the cached code and leaves the gate Unverified. Other failures leave state
// and cache alone. A newer check supersedes older in-flight ones.
type Gate struct {
	ledger  Ledger
	cache   *CredentialCache
	session domain.Session
	logger  *slog.Logger

	mu      sync.Mutex
	gen     uint64
	closed  bool
	state   domain.VerificationState
	balance decimal.Decimal
	history []domain.Transaction
}

func NewGate(l Ledger, cache *CredentialCache, s domain.Session, logger *slog.Logger) *Gate {
	return &Gate{ledger: l, cache: cache, session: s, logger: logger}
}

// SubmitCredential checks a code typed by the user.
func (g *Gate) SubmitCredential(ctx context.Context, raw string) (ProtectedView, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		gateOutcomes.WithLabelValues("validation").Inc()
		return g.View(), domain.Invalid("code", "is required")
	}
	return g.LoadProtectedData(ctx, domain.VerificationCredential{Code: code})
}

// Resume re-checks the cached code, if any. Without one the gate stays
// Unverified and nothing is fetched.
func (g *Gate) Resume(ctx context.Context) (ProtectedView, error) {
	cred, ok := g.cache.Get(ctx)
	if !ok {
		return g.View(), domain.ErrNotVerified
	}
	return g.LoadProtectedData(ctx, cred)
}

// LoadProtectedData fetches history and balance with cred.
func (g *Gate) LoadProtectedData(ctx context.Context, cred domain.VerificationCredential) (ProtectedView, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ProtectedView{}, domain.ErrSuperseded
	}
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	var (
		history []domain.Transaction
		balance decimal.Decimal
		histErr error
		balErr  error
		eg      errgroup.Group
	)
	// legs report through histErr/balErr so one failure never cancels the other
	eg.Go(func() error {
		history, histErr = g.ledger.Transactions(ctx, g.session, cred.Code)
		return nil
	})
	eg.Go(func() error {
		balance, balErr = g.ledger.Balance(ctx, g.session, cred.Code)
		return nil
	})
	_ = eg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || gen != g.gen {
		gateOutcomes.WithLabelValues("superseded").Inc()
		return g.viewLocked(), domain.ErrSuperseded
	}

	if errors.Is(histErr, domain.ErrCredentialRejected) || errors.Is(balErr, domain.ErrCredentialRejected) {
		g.state = domain.Unverified
		if err := g.cache.Clear(ctx); err != nil {
			g.logger.WarnContext(ctx, "credential cache clear failed", "error", err)
		}
		gateOutcomes.WithLabelValues("credential_rejected").Inc()
		g.logger.InfoContext(ctx, "verification code rejected", "user", g.session.Handle)
		return g.viewLocked(), domain.ErrCredentialRejected
	}

	if err := errors.Join(histErr, balErr); err != nil {
		first := histErr
		if first == nil {
			first = balErr
		}
		gateOutcomes.WithLabelValues(domain.Kind(first)).Inc()
		g.logger.WarnContext(ctx, "protected data fetch failed", "user", g.session.Handle, "error", err)
		return g.viewLocked(), first
	}

	g.state = domain.Verified
	g.balance = balance
	g.history = history
	if err := g.cache.Set(ctx, cred.Code); err != nil {
		g.logger.WarnContext(ctx, "credential cache write failed", "error", err)
	}
	gateOutcomes.WithLabelValues("verified").Inc()
	return g.viewLocked(), nil
}

// State returns the current verification state.
func (g *Gate) State() domain.VerificationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// View returns a copy of what may be rendered now.
func (g *Gate) View() ProtectedView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.viewLocked()
}

func (g *Gate) viewLocked() ProtectedView {
	if g.state != domain.Verified {
		return ProtectedView{State: domain.Unverified}
	}
	return ProtectedView{
		State:        domain.Verified,
		Balance:      g.balance,
		Transactions: slices.Clone(g.history),
	}
}

// Reset drops the view and returns to Unverified; in-flight checks are discarded.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.state = domain.Unverified
	g.balance = decimal.Zero
	g.history = nil
}

// Close discards any in-flight check. A closed gate accepts no further checks.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.gen++
}
