package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/coinwallet/internal/ledger"
	"github.com/punchamoorthee/coinwallet/internal/ledgertest"
	"github.com/punchamoorthee/coinwallet/internal/models"
	"github.com/punchamoorthee/coinwallet/internal/service"
)

type harness struct {
	t      *testing.T
	ledger *ledgertest.Server
	router *mux.Router
}

func newHarness(t *testing.T) *harness {
	srv := ledgertest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(ledger.NewClient(srv.URL, time.Second, logger), service.Options{}, logger)

	r := mux.NewRouter()
	h.Register(r.PathPrefix("/api/v1").Subrouter())
	return &harness{t: t, ledger: srv, router: r}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login() {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/v1/session", map[string]string{
		"displayName": "Ana", "handle": "ana", "authToken": ledgertest.Token,
	})
	require.Equal(h.t, http.StatusCreated, rec.Code)
}

func (h *harness) newTransfer() string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/v1/transfers", nil)
	require.Equal(h.t, http.StatusCreated, rec.Code)
	var out map[string]string
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(h.t, "/api/v1/transfers/"+out["id"], rec.Header().Get("Location"))
	return out["id"]
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestRequiresSession(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/v1/account", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/transfers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSession_RequiresHandle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/v1/session", map[string]string{"displayName": "Ana"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestVerification_Flow(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.do(http.MethodGet, "/api/v1/account", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "unverified account is hidden")

	rec = h.do(http.MethodPost, "/api/v1/verification", map[string]string{"code": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, h.ledger.Calls("transactions"))

	rec = h.do(http.MethodPost, "/api/v1/verification", map[string]string{"code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/verification", map[string]string{"code": ledgertest.ValidCode})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/account", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		State        string          `json:"state"`
		Balance      json.Number     `json:"balance"`
		Transactions []map[string]any `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "verified", view.State)
	assert.Equal(t, "950", view.Balance.String())
	assert.Len(t, view.Transactions, 2)

	rec = h.do(http.MethodPost, "/api/v1/account/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "cached code is reused")
}

func TestVerification_RejectionOnEitherLegLocksAccount(t *testing.T) {
	h := newHarness(t)
	h.login()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/v1/verification", map[string]string{"code": ledgertest.ValidCode}).Code)

	h.ledger.Transactions = func(models.CredentialRequest) (int, any) {
		return http.StatusOK, map[string]any{"success": false}
	}
	rec := h.do(http.MethodPost, "/api/v1/account/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/account", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/account/refresh", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "the rejected code was forgotten")
}

func TestSearchRecipients(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.do(http.MethodGet, "/api/v1/recipients?q=be", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"candidates":[],"superseded":false}`, rec.Body.String())
	assert.Zero(t, h.ledger.Calls("search"))

	rec = h.do(http.MethodGet, "/api/v1/recipients?q=bet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"candidates":[{"displayName":"Beto","handle":"beto","label":"Beto (beto)"}],"superseded":false}`, rec.Body.String())
}

func TestTransfer_HappyPath(t *testing.T) {
	h := newHarness(t)
	h.login()
	id := h.newTransfer()

	rec := h.do(http.MethodGet, "/api/v1/transfers/"+id+"/receipt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no receipt before submit")

	rec = h.do(http.MethodPost, "/api/v1/transfers/"+id+"/submit", map[string]string{
		"to": "beto", "amount": "50", "description": "lunch", "code": ledgertest.ValidCode,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, h.ledger.Calls("transfer"))
	assert.Equal(t, 1, h.ledger.Calls("balance"))

	sent, auth := h.ledger.Transferred()
	assert.Equal(t, "ana", sent.FromUsername)
	assert.Equal(t, "beto", sent.ToUsername)
	assert.Equal(t, "50", sent.Amount.String())
	assert.NotEmpty(t, sent.OperationToken)
	assert.Equal(t, "Bearer "+ledgertest.Token, auth)

	rec = h.do(http.MethodGet, "/api/v1/transfers/"+id+"/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"from": {"name": "Ana", "username": "ana"},
		"to": {"name": "Beto", "username": "beto"},
		"amount": "50",
		"description": "lunch",
		"timestamp": "2023-11-14T22:13:20Z"
	}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/v1/transfers/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Pending bool            `json:"pending"`
		Receipt json.RawMessage `json:"receipt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Pending)
	assert.NotEmpty(t, status.Receipt)

	rec = h.do(http.MethodGet, "/api/v1/transfers/"+id+"/receipt.html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "transfer-receipt.html")
	assert.Contains(t, rec.Body.String(), "<h1>Transfer receipt</h1>")

	rec = h.do(http.MethodPost, "/api/v1/transfers/"+id+"/submit", map[string]string{
		"to": "beto", "amount": "99", "description": "again", "code": ledgertest.ValidCode,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "completed flow is frozen")
	assert.Equal(t, 1, h.ledger.Calls("transfer"))
}

func TestTransfer_ServiceFailure(t *testing.T) {
	h := newHarness(t)
	h.ledger.Transfer = func(models.TransferRequest) (int, any) {
		return http.StatusBadRequest, map[string]any{"success": false, "message": "insufficient funds"}
	}
	h.login()
	id := h.newTransfer()

	rec := h.do(http.MethodPost, "/api/v1/transfers/"+id+"/submit", map[string]string{
		"to": "beto", "amount": "50", "description": "lunch", "code": ledgertest.ValidCode,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient funds", decodeError(t, rec))
	assert.Zero(t, h.ledger.Calls("balance"))

	rec = h.do(http.MethodGet, "/api/v1/transfers/"+id+"/receipt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/transfers/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id": "`+id+`",
		"pending": false,
		"form": {"to": "beto", "amount": "50", "description": "lunch"}
	}`, rec.Body.String(), "form is kept for a retry and the code is not echoed")
}

func TestTransfer_Validation(t *testing.T) {
	h := newHarness(t)
	h.login()
	id := h.newTransfer()

	rec := h.do(http.MethodPost, "/api/v1/transfers/"+id+"/submit", map[string]string{
		"to": "beto", "amount": "lots", "description": "lunch", "code": ledgertest.ValidCode,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.True(t, strings.HasPrefix(decodeError(t, rec), "amount:"))
	assert.Zero(t, h.ledger.Calls("transfer"))
}

func TestTransfer_Abandon(t *testing.T) {
	h := newHarness(t)
	h.login()
	id := h.newTransfer()

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/v1/transfers/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/v1/transfers/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/transfers/"+id+"/receipt", nil).Code)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/v1/verification", map[string]string{"code": ledgertest.ValidCode}).Code)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/v1/session", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/account", nil).Code)

	h.login()
	rec := h.do(http.MethodPost, "/api/v1/account/refresh", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "logout forgot the code")
}

func TestResumeAcrossSessions(t *testing.T) {
	h := newHarness(t)
	h.login()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/v1/verification", map[string]string{"code": ledgertest.ValidCode}).Code)

	h.login()
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/v1/account", nil).Code)

	rec := h.do(http.MethodPost, "/api/v1/account/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, h.ledger.Calls("balance"))
}

func TestTransfer_MalformedRecordReportsBalance(t *testing.T) {
	h := newHarness(t)
	h.ledger.Transfer = func(models.TransferRequest) (int, any) {
		return http.StatusOK, map[string]any{"success": true, "transfer": map[string]any{"amount": 50}}
	}
	h.login()
	id := h.newTransfer()

	rec := h.do(http.MethodPost, "/api/v1/transfers/"+id+"/submit", map[string]string{
		"to": "beto", "amount": "50", "description": "lunch", "code": ledgertest.ValidCode,
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{
		"error": "Ledger returned an incomplete transfer record",
		"balance": "950",
		"balanceStale": false
	}`, rec.Body.String())
	assert.Equal(t, 1, h.ledger.Calls("balance"))

	rec = h.do(http.MethodPost, "/api/v1/transfers/"+id+"/submit", map[string]string{
		"to": "beto", "amount": "50", "description": "lunch", "code": ledgertest.ValidCode,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, h.ledger.Calls("transfer"))
}
