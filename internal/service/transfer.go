package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/models"
)

// TransferOutcome is the result of a successful submission.
type TransferOutcome struct {
	Receipt domain.TransferReceipt `json:"receipt"`
	// Balance is the refreshed balance; meaningless when BalanceStale is set.
	Balance      decimal.Decimal `json:"balance"`
	BalanceStale bool            `json:"balanceStale"`
	Warning      string          `json:"warning,omitempty"`
}

// TransferExecutor creates transfer flows for one session.
type TransferExecutor struct {
	ledger   Ledger
	session  domain.Session
	logger   *slog.Logger
	retries  int
	newToken func() string
}

// NewTransferExecutor returns an executor. retries is how many times a
// transport failure in the transfer phase is retried with the same token.
func NewTransferExecutor(l Ledger, s domain.Session, retries int, logger *slog.Logger) *TransferExecutor {
	if retries < 0 {
		retries = 0
	}
	return &TransferExecutor{
		ledger:   l,
		session:  s,
		logger:   logger,
		retries:  retries,
		newToken: uuid.NewString,
	}
}

// NewFlow starts a fresh flow instance.
func (e *TransferExecutor) NewFlow() *TransferFlow {
	return &TransferFlow{exec: e, id: uuid.NewString()}
}

type flowStatus int

const (
	flowIdle flowStatus = iota
	flowPending
	flowCompleted
	// transfer went through but no receipt could be built
	flowSettled
	flowClosed
)

// TransferFlow is one user attempt at a transfer, from the first input to a
// receipt or abandonment. At most one submission is in flight; once a
// receipt exists the flow is frozen.
type TransferFlow struct {
	exec *TransferExecutor
	id   string

	mu      sync.Mutex
	status  flowStatus
	input   domain.TransferInput
	token   string
	receipt *domain.TransferReceipt
}

// ID identifies the flow to API clients.
func (f *TransferFlow) ID() string { return f.id }

// Submit validates in and runs the transfer protocol: the transfer itself,
// then a best-effort balance refresh with the same code. A second call while
// one is pending fails with domain.ErrTransferInFlight.
//
// When the ledger accepts the transfer but its record is unusable, Submit
// returns domain.ErrMalformedRecord together with an outcome that carries the
// refreshed balance and no receipt.
func (f *TransferFlow) Submit(ctx context.Context, in domain.TransferInput) (*TransferOutcome, error) {
	f.mu.Lock()
	switch f.status {
	case flowPending:
		f.mu.Unlock()
		transferOutcomes.WithLabelValues("in_flight").Inc()
		return nil, domain.ErrTransferInFlight
	case flowCompleted, flowSettled:
		f.mu.Unlock()
		return nil, domain.ErrFlowCompleted
	case flowClosed:
		f.mu.Unlock()
		return nil, domain.ErrFlowClosed
	}

	req, err := f.exec.buildRequest(in)
	if err != nil {
		f.mu.Unlock()
		transferOutcomes.WithLabelValues("validation").Inc()
		return nil, err
	}
	f.status = flowPending
	f.input = in
	f.token = req.OperationToken
	f.mu.Unlock()

	start := time.Now()
	logger := f.exec.logger.With("flow", f.id, "operation_token", req.OperationToken)

	record, err := f.exec.transfer(ctx, req, logger)
	if err != nil {
		f.finish(flowIdle, nil)
		transferOutcomes.WithLabelValues(domain.Kind(err)).Inc()
		logger.InfoContext(ctx, "transfer failed", "kind", domain.Kind(err), "error", err)
		return nil, err
	}

	receipt, err := BuildReceipt(record)
	if err != nil {
		// The ledger accepted the transfer, so the balance has changed.
		out := &TransferOutcome{}
		f.refreshBalance(ctx, out, req.TotpToken, logger)
		if !f.finish(flowSettled, nil) {
			return nil, domain.ErrFlowClosed
		}
		transferOutcomes.WithLabelValues("malformed").Inc()
		logger.ErrorContext(ctx, "transfer succeeded with unusable record", "error", err)
		return out, err
	}

	out := &TransferOutcome{Receipt: receipt}
	f.refreshBalance(ctx, out, req.TotpToken, logger)

	if !f.finish(flowCompleted, &receipt) {
		logger.InfoContext(ctx, "transfer completed after flow was closed")
		return nil, domain.ErrFlowClosed
	}
	transferOutcomes.WithLabelValues("ok").Inc()
	transferDuration.Observe(time.Since(start).Seconds())
	logger.InfoContext(ctx, "transfer completed", "to", req.ToUsername, "balance_stale", out.BalanceStale)
	return out, nil
}

// refreshBalance is the best-effort second phase. A failure only marks the
// balance stale.
func (f *TransferFlow) refreshBalance(ctx context.Context, out *TransferOutcome, code string, logger *slog.Logger) {
	balance, err := f.exec.ledger.Balance(ctx, f.exec.session, code)
	if err != nil {
		out.BalanceStale = true
		out.Warning = "transfer succeeded, but the balance could not be refreshed"
		logger.WarnContext(ctx, "balance refresh after transfer failed", "error", err)
		return
	}
	out.Balance = balance
}

// finish records the end of a submission unless the flow was closed meanwhile.
func (f *TransferFlow) finish(status flowStatus, receipt *domain.TransferReceipt) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == flowClosed {
		return false
	}
	f.status = status
	f.receipt = receipt
	return true
}

// Receipt returns the flow's receipt once the transfer has completed.
func (f *TransferFlow) Receipt() (domain.TransferReceipt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receipt == nil {
		return domain.TransferReceipt{}, false
	}
	return *f.receipt, true
}

// Input returns the inputs of the latest submission that passed validation.
func (f *TransferFlow) Input() domain.TransferInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

// Pending reports whether a submission is in flight.
func (f *TransferFlow) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status == flowPending
}

// Close abandons the flow. A response arriving afterwards changes nothing.
func (f *TransferFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = flowClosed
}

func (e *TransferExecutor) buildRequest(in domain.TransferInput) (models.TransferRequest, error) {
	to := strings.TrimSpace(in.ToHandle)
	rawAmount := strings.TrimSpace(in.Amount)
	// the description is sent as typed; trimming only decides emptiness
	desc := strings.TrimSpace(in.Description)
	code := strings.TrimSpace(in.Code)

	switch {
	case to == "":
		return models.TransferRequest{}, domain.Invalid("to", "is required")
	case rawAmount == "":
		return models.TransferRequest{}, domain.Invalid("amount", "is required")
	case desc == "":
		return models.TransferRequest{}, domain.Invalid("description", "is required")
	case code == "":
		return models.TransferRequest{}, domain.Invalid("code", "is required")
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return models.TransferRequest{}, domain.Invalid("amount", "must be a number")
	}
	if !amount.IsPositive() {
		return models.TransferRequest{}, domain.Invalid("amount", "must be positive")
	}

	return models.TransferRequest{
		FromUsername:   e.session.Handle,
		ToUsername:     to,
		Amount:         models.NewAmount(amount),
		Description:    in.Description,
		OperationToken: e.newToken(),
		TotpToken:      code,
	}, nil
}

// transfer runs the transfer phase, retrying transport failures with the
// same operation token.
func (e *TransferExecutor) transfer(ctx context.Context, req models.TransferRequest, logger *slog.Logger) (*models.TransferRecord, error) {
	for attempt := 0; ; attempt++ {
		record, err := e.ledger.Transfer(ctx, e.session, req)
		var netErr *domain.NetworkError
		if err == nil || !errors.As(err, &netErr) || attempt >= e.retries || ctx.Err() != nil {
			if err != nil {
				return nil, fmt.Errorf("transfer: %w", err)
			}
			return record, nil
		}
		logger.WarnContext(ctx, "retrying transfer after transport failure", "attempt", attempt+1, "error", err)
	}
}
