// Package ledgertest runs an in-process fake of the ledger service.
package ledgertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/coinwallet/internal/models"
)

const (
	ValidCode = "123456"
	Token     = "bearer-token"
)

// Server answers the four ledger endpoints. Handlers can be swapped per test.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int

	Transactions func(req models.CredentialRequest) (int, any)
	Balance      func(req models.CredentialRequest) (int, any)
	Search       func(q string) (int, any)
	Transfer     func(req models.TransferRequest) (int, any)

	LastTransfer models.TransferRequest
	LastAuth     string
}

// New starts a server that accepts ValidCode for user "ana" and is closed
// when the test ends.
func New(t testing.TB) *Server {
	s := &Server{calls: make(map[string]int)}
	s.Transactions = func(req models.CredentialRequest) (int, any) {
		if req.TotpToken != ValidCode {
			return http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid totp"}
		}
		return http.StatusOK, map[string]any{
			"success": true,
			"transactions": []map[string]any{
				{"type": "sent", "toName": "Beto", "amount": -50, "description": "lunch", "createdAt": 1700000000},
				{"type": "received", "awardedBy": "Admin", "amount": 100, "description": "", "createdAt": 1690000000},
			},
		}
	}
	s.Balance = func(req models.CredentialRequest) (int, any) {
		if req.TotpToken != ValidCode {
			return http.StatusUnauthorized, map[string]any{"success": false}
		}
		return http.StatusOK, map[string]any{"success": true, "user": map[string]any{"balance": 950}}
	}
	s.Search = func(q string) (int, any) {
		users := []map[string]string{}
		for _, u := range []models.User{{Name: "Beto", Username: "beto"}, {Name: "Bea", Username: "beatriz"}} {
			if strings.HasPrefix(u.Username, q) {
				users = append(users, map[string]string{"name": u.Name, "username": u.Username})
			}
		}
		return http.StatusOK, map[string]any{"success": true, "users": users}
	}
	s.Transfer = func(req models.TransferRequest) (int, any) {
		if req.TotpToken != ValidCode {
			return http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid totp"}
		}
		return http.StatusOK, map[string]any{
			"success": true,
			"transfer": map[string]any{
				"from":        map[string]string{"name": "Ana", "username": req.FromUsername},
				"to":          map[string]string{"name": "Beto", "username": req.ToUsername},
				"amount":      json.RawMessage(req.Amount.String()),
				"description": req.Description,
				"timestamp":   1700000000,
			},
		}
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		var req models.CredentialRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.record("transactions", r)
		write(w)(s.Transactions(req))
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/balance", func(w http.ResponseWriter, r *http.Request) {
		var req models.CredentialRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.record("balance", r)
		write(w)(s.Balance(req))
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/search-users", func(w http.ResponseWriter, r *http.Request) {
		s.record("search", r)
		write(w)(s.Search(r.URL.Query().Get("q")))
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/transfer", func(w http.ResponseWriter, r *http.Request) {
		var req models.TransferRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.LastTransfer = req
		s.mu.Unlock()
		s.record("transfer", r)
		write(w)(s.Transfer(req))
	}).Methods(http.MethodPost)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Calls returns how many times endpoint was hit.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// Transferred returns the last transfer body and its Authorization header.
func (s *Server) Transferred() (models.TransferRequest, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastTransfer, s.LastAuth
}

func (s *Server) record(endpoint string, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[endpoint]++
	s.LastAuth = r.Header.Get("Authorization")
}

func write(w http.ResponseWriter) func(int, any) {
	return func(code int, payload any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if raw, ok := payload.(string); ok {
			w.Write([]byte(raw))
			return
		}
		json.NewEncoder(w).Encode(payload)
	}
}

// Amount is a helper for building expectations.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
