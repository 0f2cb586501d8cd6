package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrCredentialRejected = errors.New("verification code rejected")
	ErrTransferInFlight   = errors.New("transfer already in progress")
	ErrFlowCompleted      = errors.New("transfer flow already completed")
	ErrFlowClosed         = errors.New("transfer flow closed")
	ErrMalformedRecord    = errors.New("malformed transfer record")
	ErrSuperseded         = errors.New("superseded by a newer request")
	ErrNotVerified        = errors.New("verification required")
	ErrNoSession          = errors.New("no active session")
)

// ValidationError describes local input that never reached the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ServiceError is a non-credential failure reported by a reachable ledger
// service. Message is shown to the user verbatim.
type ServiceError struct {
	Message string
	Status  int
}

func (e *ServiceError) Error() string { return e.Message }

// NetworkError is a transport failure or timeout. It is always retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Kind names the error category for metrics and API responses.
func Kind(err error) string {
	var (
		svcErr *ServiceError
		netErr *NetworkError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCredentialRejected):
		return "credential_rejected"
	case errors.As(err, &svcErr):
		return "service"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "internal"
	}
}
