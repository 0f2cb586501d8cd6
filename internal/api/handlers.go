package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/export"
	"github.com/punchamoorthee/coinwallet/internal/service"
	"github.com/punchamoorthee/coinwallet/internal/store"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"method", "endpoint"})
)

// Handler exposes the wallet of the single active session over HTTP.
type Handler struct {
	ledger service.Ledger
	opts   service.Options
	logger *slog.Logger

	mu     sync.RWMutex
	wallet *service.Wallet
	flows  map[string]*service.TransferFlow
}

func NewHandler(l service.Ledger, opts service.Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore(store.DefaultTTL)
	}
	return &Handler{ledger: l, opts: opts, logger: logger, flows: make(map[string]*service.TransferFlow)}
}

// Register mounts the wallet routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.Use(instrument)
	r.HandleFunc("/session", h.CreateSessionHandler).Methods(http.MethodPost)
	r.HandleFunc("/session", h.DeleteSessionHandler).Methods(http.MethodDelete)
	r.HandleFunc("/verification", h.VerifyHandler).Methods(http.MethodPost)
	r.HandleFunc("/account", h.GetAccountHandler).Methods(http.MethodGet)
	r.HandleFunc("/account/refresh", h.RefreshAccountHandler).Methods(http.MethodPost)
	r.HandleFunc("/recipients", h.SearchRecipientsHandler).Methods(http.MethodGet)
	r.HandleFunc("/transfers", h.CreateTransferHandler).Methods(http.MethodPost)
	r.HandleFunc("/transfers/{id}", h.GetTransferHandler).Methods(http.MethodGet)
	r.HandleFunc("/transfers/{id}", h.DeleteTransferHandler).Methods(http.MethodDelete)
	r.HandleFunc("/transfers/{id}/submit", h.SubmitTransferHandler).Methods(http.MethodPost)
	r.HandleFunc("/transfers/{id}/receipt", h.GetReceiptHandler).Methods(http.MethodGet)
	r.HandleFunc("/transfers/{id}/receipt.{format:md|html}", h.ExportReceiptHandler).Methods(http.MethodGet)
}

type sessionRequest struct {
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AuthToken   string `json:"authToken"`
}

func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	wallet, err := service.NewWallet(h.ledger, domain.Session{
		DisplayName: req.DisplayName,
		Handle:      req.Handle,
		AuthToken:   req.AuthToken,
	}, h.opts)
	if err != nil {
		respondWithError(w, r, http.StatusUnprocessableEntity, "handle is required")
		return
	}

	h.mu.Lock()
	h.dropLocked()
	h.wallet = wallet
	h.mu.Unlock()

	h.logger.InfoContext(r.Context(), "session started", "user", req.Handle)
	respondWithJSON(w, r, http.StatusCreated, map[string]string{
		"handle":      wallet.Session.Handle,
		"displayName": wallet.Session.DisplayName,
		"state":       wallet.Gate.State().String(),
	})
}

func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	wallet := h.wallet
	h.dropLocked()
	h.wallet = nil
	h.mu.Unlock()

	if wallet != nil {
		if err := wallet.Logout(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "logout could not clear credential", "error", err)
		}
	}
	respondWithJSON(w, r, http.StatusNoContent, nil)
}

// dropLocked abandons everything owned by the current session.
func (h *Handler) dropLocked() {
	for id, f := range h.flows {
		f.Close()
		delete(h.flows, id)
	}
	if h.wallet != nil {
		h.wallet.Gate.Close()
		h.wallet.Search.Close()
	}
}

func (h *Handler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.current(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	view, err := wallet.Gate.SubmitCredential(r.Context(), req.Code)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, r, http.StatusOK, view)
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.current(w, r)
	if !ok {
		return
	}
	view := wallet.Gate.View()
	if view.State != domain.Verified {
		h.respondWithDomainError(w, r, domain.ErrNotVerified)
		return
	}
	respondWithJSON(w, r, http.StatusOK, view)
}

func (h *Handler) RefreshAccountHandler(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.current(w, r)
	if !ok {
		return
	}
	view, err := wallet.Gate.Resume(r.Context())
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, r, http.StatusOK, view)
}

type candidate struct {
	domain.SearchCandidate
	Label string `json:"label"`
}

func (h *Handler) SearchRecipientsHandler(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.current(w, r)
	if !ok {
		return
	}

	found, err := wallet.Search.Search(r.Context(), r.URL.Query().Get("q"))
	superseded := errors.Is(err, domain.ErrSuperseded)
	if superseded {
		found = wallet.Search.Candidates()
	}

	out := make([]candidate, 0, len(found))
	for _, c := range found {
		out = append(out, candidate{SearchCandidate: c, Label: c.Label()})
	}
	respondWithJSON(w, r, http.StatusOK, map[string]any{"candidates": out, "superseded": superseded})
}

func (h *Handler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.wallet == nil {
		h.mu.Unlock()
		h.respondWithDomainError(w, r, domain.ErrNoSession)
		return
	}
	flow := h.wallet.Transfers.NewFlow()
	h.flows[flow.ID()] = flow
	h.mu.Unlock()

	w.Header().Set("Location", fmt.Sprintf("/api/v1/transfers/%s", flow.ID()))
	respondWithJSON(w, r, http.StatusCreated, map[string]string{"id": flow.ID()})
}

// transferForm is what the form shows again after a failed submission.
// The verification code is never echoed back.
type transferForm struct {
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type transferStatus struct {
	ID      string                  `json:"id"`
	Pending bool                    `json:"pending"`
	Form    transferForm            `json:"form"`
	Receipt *domain.TransferReceipt `json:"receipt,omitempty"`
}

func (h *Handler) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	in := flow.Input()
	out := transferStatus{
		ID:      flow.ID(),
		Pending: flow.Pending(),
		Form:    transferForm{To: in.ToHandle, Amount: in.Amount, Description: in.Description},
	}
	if receipt, ok := flow.Receipt(); ok {
		out.Receipt = &receipt
	}
	respondWithJSON(w, r, http.StatusOK, out)
}

func (h *Handler) SubmitTransferHandler(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	var in domain.TransferInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, r, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	out, err := flow.Submit(r.Context(), in)
	if errors.Is(err, domain.ErrMalformedRecord) && out != nil {
		h.logger.ErrorContext(r.Context(), "malformed ledger record", "error", err)
		respondWithJSON(w, r, http.StatusBadGateway, map[string]any{
			"error":        "Ledger returned an incomplete transfer record",
			"balance":      out.Balance,
			"balanceStale": out.BalanceStale,
		})
		return
	}
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, r, http.StatusOK, out)
}

func (h *Handler) GetReceiptHandler(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	receipt, ok := flow.Receipt()
	if !ok {
		respondWithError(w, r, http.StatusNotFound, "No receipt for this transfer")
		return
	}
	respondWithJSON(w, r, http.StatusOK, receipt)
}

func (h *Handler) ExportReceiptHandler(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	receipt, ok := flow.Receipt()
	if !ok {
		respondWithError(w, r, http.StatusNotFound, "No receipt for this transfer")
		return
	}

	format := mux.Vars(r)["format"]
	var (
		body        []byte
		contentType string
	)
	switch format {
	case "html":
		var err error
		if body, err = export.HTML(receipt, time.Local); err != nil {
			h.respondWithDomainError(w, r, err)
			return
		}
		contentType = "text/html; charset=utf-8"
	default:
		body = export.Markdown(receipt, time.Local)
		contentType = "text/markdown; charset=utf-8"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(format)))
	count(r, http.StatusOK)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) DeleteTransferHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.mu.Lock()
	flow, ok := h.flows[id]
	delete(h.flows, id)
	h.mu.Unlock()

	if !ok {
		respondWithError(w, r, http.StatusNotFound, "Transfer not found")
		return
	}
	flow.Close()
	respondWithJSON(w, r, http.StatusNoContent, nil)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) (*service.Wallet, bool) {
	h.mu.RLock()
	wallet := h.wallet
	h.mu.RUnlock()
	if wallet == nil {
		h.respondWithDomainError(w, r, domain.ErrNoSession)
		return nil, false
	}
	return wallet, true
}

func (h *Handler) flow(w http.ResponseWriter, r *http.Request) (*service.TransferFlow, bool) {
	h.mu.RLock()
	flow, ok := h.flows[mux.Vars(r)["id"]]
	h.mu.RUnlock()
	if !ok {
		respondWithError(w, r, http.StatusNotFound, "Transfer not found")
		return nil, false
	}
	return flow, true
}

// respondWithDomainError maps the wallet error taxonomy onto HTTP.
func (h *Handler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		svcErr *domain.ServiceError
		netErr *domain.NetworkError
	)
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondWithError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrCredentialRejected):
		respondWithError(w, r, http.StatusUnauthorized, "Verification code rejected")
	case errors.Is(err, domain.ErrNoSession):
		respondWithError(w, r, http.StatusUnauthorized, "No active session")
	case errors.Is(err, domain.ErrNotVerified):
		respondWithError(w, r, http.StatusForbidden, "Verification required")
	case errors.Is(err, domain.ErrTransferInFlight):
		respondWithError(w, r, http.StatusConflict, "Transfer already in progress")
	case errors.Is(err, domain.ErrFlowCompleted):
		respondWithError(w, r, http.StatusConflict, "Transfer already completed; start a new one")
	case errors.Is(err, domain.ErrFlowClosed), errors.Is(err, domain.ErrSuperseded):
		respondWithError(w, r, http.StatusConflict, "Request was superseded")
	case errors.Is(err, domain.ErrMalformedRecord):
		h.logger.ErrorContext(r.Context(), "malformed ledger record", "error", err)
		respondWithError(w, r, http.StatusBadGateway, "Ledger returned an incomplete transfer record")
	case errors.As(err, &svcErr):
		code := http.StatusUnprocessableEntity
		if svcErr.Status == 0 || svcErr.Status >= http.StatusInternalServerError {
			code = http.StatusBadGateway
		}
		respondWithError(w, r, code, svcErr.Message)
	case errors.As(err, &netErr):
		respondWithError(w, r, http.StatusGatewayTimeout, "Ledger service unreachable, try again")
	default:
		h.logger.ErrorContext(r.Context(), "internal error", "error", err)
		respondWithError(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint(r)))
		defer timer.ObserveDuration()
		next.ServeHTTP(w, r)
	})
}

func endpoint(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func count(r *http.Request, code int) {
	httpRequestsTotal.WithLabelValues(r.Method, endpoint(r), strconv.Itoa(code)).Inc()
}

func respondWithError(w http.ResponseWriter, r *http.Request, code int, message string) {
	respondWithJSON(w, r, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	count(r, code)
	if payload == nil {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// Shutdown abandons the active session's in-flight work.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked()
}
