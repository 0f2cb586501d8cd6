package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Session carries the identity supplied by the external login flow.
type Session struct {
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AuthToken   string `json:"-"`
}

// Valid reports whether the session names a user.
func (s Session) Valid() bool {
	return s.Handle != ""
}

// VerificationCredential is a one-time code forwarded to the ledger service.
type VerificationCredential struct {
	Code string
}

// VerificationState gates the balance and history views.
type VerificationState int

const (
	Unverified VerificationState = iota
	Verified
)

func (s VerificationState) String() string {
	if s == Verified {
		return "verified"
	}
	return "unverified"
}

func (s VerificationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Direction of a transaction relative to the session user.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Transaction is one history row, in the order the service returned it.
type Transaction struct {
	Direction   Direction       `json:"direction"`
	Counterpart string          `json:"counterpart"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// DisplayAmount renders the signed amount with a leading "+" for credits.
func (t Transaction) DisplayAmount() string {
	if t.Amount.IsPositive() {
		return "+" + t.Amount.String()
	}
	return t.Amount.String()
}

// SearchCandidate is a recipient suggestion.
type SearchCandidate struct {
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
}

// Label is the text shown for the candidate; its value is the handle.
func (c SearchCandidate) Label() string {
	return fmt.Sprintf("%s (%s)", c.DisplayName, c.Handle)
}

// TransferInput is what the user typed into a transfer form.
type TransferInput struct {
	ToHandle    string `json:"to"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// Party is one side of a completed transfer.
type Party struct {
	DisplayName string `json:"name"`
	Handle      string `json:"username"`
}

func (p Party) String() string {
	return fmt.Sprintf("%s (%s)", p.DisplayName, p.Handle)
}

// TransferReceipt is the immutable record of a completed transfer.
// It is handed out by value only.
type TransferReceipt struct {
	From        Party           `json:"from"`
	To          Party           `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}
