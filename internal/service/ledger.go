// Package service implements the wallet's verification, search and transfer
// flows on top of the remote ledger.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/models"
)

// Ledger is the remote ledger service as seen by the wallet.
// *ledger.Client satisfies it.
type Ledger interface {
	Transactions(ctx context.Context, s domain.Session, code string) ([]domain.Transaction, error)
	Balance(ctx context.Context, s domain.Session, code string) (decimal.Decimal, error)
	SearchUsers(ctx context.Context, s domain.Session, query string) ([]domain.SearchCandidate, error)
	Transfer(ctx context.Context, s domain.Session, req models.TransferRequest) (*models.TransferRecord, error)
}
