// Package ledger is the HTTP client for the remote ledger service.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/models"
)

const DefaultTimeout = 10 * time.Second

var ledgerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "wallet_ledger_request_duration_seconds",
	Help:    "Latency of calls to the ledger service",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"endpoint", "status"})

// Client talks to the ledger service over HTTP+JSON.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *slog.Logger
}

// NewClient returns a client for baseURL. A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Transactions fetches the session user's history. success=false is a
// credential rejection.
func (c *Client) Transactions(ctx context.Context, s domain.Session, code string) ([]domain.Transaction, error) {
	var resp models.TransactionsResponse
	status, err := c.do(ctx, "transactions", http.MethodPost, "/api/transactions", s,
		models.CredentialRequest{Username: s.Handle, TotpToken: code}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, c.rejection("transactions", status, resp.Message)
	}

	txs := make([]domain.Transaction, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		txs = append(txs, toTransaction(tx))
	}
	return txs, nil
}

// Balance fetches the session user's balance. success=false is a
// credential rejection.
func (c *Client) Balance(ctx context.Context, s domain.Session, code string) (decimal.Decimal, error) {
	var resp models.BalanceResponse
	status, err := c.do(ctx, "balance", http.MethodPost, "/api/balance", s,
		models.CredentialRequest{Username: s.Handle, TotpToken: code}, &resp)
	if err != nil {
		return decimal.Zero, err
	}
	if !resp.Success {
		return decimal.Zero, c.rejection("balance", status, resp.Message)
	}
	return resp.User.Balance.Decimal, nil
}

// SearchUsers looks up the user directory.
func (c *Client) SearchUsers(ctx context.Context, s domain.Session, query string) ([]domain.SearchCandidate, error) {
	var resp models.SearchUsersResponse
	path := "/api/search-users?" + url.Values{"q": {query}}.Encode()
	if _, err := c.do(ctx, "search-users", http.MethodGet, path, s, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, nil
	}

	out := make([]domain.SearchCandidate, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, domain.SearchCandidate{DisplayName: u.Name, Handle: u.Username})
	}
	return out, nil
}

// Transfer submits a transfer. A reported failure becomes a ServiceError
// carrying the service's message.
func (c *Client) Transfer(ctx context.Context, s domain.Session, req models.TransferRequest) (*models.TransferRecord, error) {
	var resp models.TransferResponse
	status, err := c.do(ctx, "transfer", http.MethodPost, "/api/transfer", s, req, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "transfer failed"
		}
		return nil, &domain.ServiceError{Message: msg, Status: status}
	}
	return resp.Transfer, nil
}

// rejection classifies a success=false answer from a gated endpoint. Server
// faults are not the credential's fault.
func (c *Client) rejection(op string, status int, msg string) error {
	if status >= http.StatusInternalServerError {
		if msg == "" {
			msg = fmt.Sprintf("ledger service error (status %d)", status)
		}
		return &domain.ServiceError{Message: msg, Status: status}
	}
	return fmt.Errorf("%s: %w", op, domain.ErrCredentialRejected)
}

func (c *Client) do(ctx context.Context, op, method, path string, s domain.Session, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.AuthToken)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		ledgerLatency.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
		c.logger.WarnContext(ctx, "ledger request failed", "op", op, "error", err)
		return 0, &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	ledgerLatency.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &domain.NetworkError{Op: op, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.WarnContext(ctx, "undecodable ledger response", "op", op, "status", resp.StatusCode)
		return resp.StatusCode, &domain.ServiceError{
			Message: fmt.Sprintf("unexpected response from ledger service (status %d)", resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}
	return resp.StatusCode, nil
}

func toTransaction(tx models.Transaction) domain.Transaction {
	out := domain.Transaction{
		Amount:      tx.Amount.Decimal,
		Description: tx.Description,
		OccurredAt:  time.Unix(tx.CreatedAt, 0).UTC(),
	}
	if tx.Type == string(domain.Sent) {
		out.Direction = domain.Sent
		out.Counterpart = firstNonEmpty(tx.ToName, "unknown")
	} else {
		out.Direction = domain.Received
		out.Counterpart = firstNonEmpty(tx.FromName, tx.AwardedBy, "system")
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
