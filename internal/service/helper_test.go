package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/models"
	"github.com/punchamoorthee/coinwallet/internal/store"
)

var testSession = domain.Session{DisplayName: "Ana", Handle: "ana", AuthToken: "tok"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubLedger answers from per-test functions and counts calls.
type stubLedger struct {
	transactions func(ctx context.Context, code string) ([]domain.Transaction, error)
	balance      func(ctx context.Context, code string) (decimal.Decimal, error)
	search       func(ctx context.Context, q string) ([]domain.SearchCandidate, error)
	transfer     func(ctx context.Context, req models.TransferRequest) (*models.TransferRecord, error)

	transactionCalls atomic.Int32
	balanceCalls     atomic.Int32
	searchCalls      atomic.Int32
	transferCalls    atomic.Int32

	mu       sync.Mutex
	requests []models.TransferRequest
}

func (s *stubLedger) Transactions(ctx context.Context, _ domain.Session, code string) ([]domain.Transaction, error) {
	s.transactionCalls.Add(1)
	return s.transactions(ctx, code)
}

func (s *stubLedger) Balance(ctx context.Context, _ domain.Session, code string) (decimal.Decimal, error) {
	s.balanceCalls.Add(1)
	return s.balance(ctx, code)
}

func (s *stubLedger) SearchUsers(ctx context.Context, _ domain.Session, q string) ([]domain.SearchCandidate, error) {
	s.searchCalls.Add(1)
	return s.search(ctx, q)
}

func (s *stubLedger) Transfer(ctx context.Context, _ domain.Session, req models.TransferRequest) (*models.TransferRecord, error) {
	s.transferCalls.Add(1)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.transfer(ctx, req)
}

func (s *stubLedger) transferRequests() []models.TransferRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TransferRequest(nil), s.requests...)
}

const goodCode = "123456"

// newStubLedger accepts goodCode and succeeds everywhere.
func newStubLedger() *stubLedger {
	return &stubLedger{
		transactions: func(_ context.Context, code string) ([]domain.Transaction, error) {
			if code != goodCode {
				return nil, domain.ErrCredentialRejected
			}
			return []domain.Transaction{{Direction: domain.Sent, Counterpart: "Beto", Amount: decimal.NewFromInt(-50)}}, nil
		},
		balance: func(_ context.Context, code string) (decimal.Decimal, error) {
			if code != goodCode {
				return decimal.Zero, domain.ErrCredentialRejected
			}
			return decimal.NewFromInt(950), nil
		},
		search: func(_ context.Context, q string) ([]domain.SearchCandidate, error) {
			return []domain.SearchCandidate{{DisplayName: q, Handle: q}}, nil
		},
		transfer: func(_ context.Context, req models.TransferRequest) (*models.TransferRecord, error) {
			return &models.TransferRecord{
				From:        &models.User{Name: "Ana", Username: req.FromUsername},
				To:          &models.User{Name: "Beto", Username: req.ToUsername},
				Amount:      req.Amount,
				Description: req.Description,
				Timestamp:   1700000000,
			}, nil
		},
	}
}

func newTestWallet(l Ledger, backend store.CredentialStore) *Wallet {
	w, err := NewWallet(l, testSession, Options{Store: backend, Logger: discardLogger()})
	if err != nil {
		panic(err)
	}
	return w
}
