package models

import (
	"github.com/shopspring/decimal"
)

// Amount is a decimal that travels as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// CredentialRequest is the body of the gated POST endpoints.
type CredentialRequest struct {
	Username  string `json:"username"`
	TotpToken string `json:"totpToken"`
}

// TransactionsResponse is returned by POST /api/transactions.
type TransactionsResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message,omitempty"`
	Transactions []Transaction `json:"transactions"`
}

// Transaction is one history row as the service sends it.
type Transaction struct {
	Type        string `json:"type"`
	ToName      string `json:"toName,omitempty"`
	FromName    string `json:"fromName,omitempty"`
	AwardedBy   string `json:"awardedBy,omitempty"`
	Amount      Amount `json:"amount"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"createdAt"`
}

// BalanceResponse is returned by POST /api/balance.
type BalanceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    struct {
		Balance Amount `json:"balance"`
	} `json:"user"`
}

// SearchUsersResponse is returned by GET /api/search-users.
type SearchUsersResponse struct {
	Success bool   `json:"success"`
	Users   []User `json:"users"`
}

// User is a directory entry, also used for the parties of a transfer.
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// TransferRequest is the body of POST /api/transfer.
type TransferRequest struct {
	FromUsername   string `json:"fromUsername"`
	ToUsername     string `json:"toUsername"`
	Amount         Amount `json:"amount"`
	Description    string `json:"description"`
	OperationToken string `json:"operationToken"`
	TotpToken      string `json:"totpToken"`
}

// TransferResponse is returned by POST /api/transfer.
type TransferResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Transfer *TransferRecord `json:"transfer,omitempty"`
}

// TransferRecord is the service's record of a completed transfer.
type TransferRecord struct {
	From        *User  `json:"from"`
	To          *User  `json:"to"`
	Amount      Amount `json:"amount"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}
