// Package store holds session-scoped backends for the cached verification code.
package store

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a cached code outlives its browsing session.
const DefaultTTL = 12 * time.Hour

// CredentialStore persists at most one verification code per session key.
// Backends do not validate codes.
type CredentialStore interface {
	// Get returns the cached code for key; ok is false when none is cached or it expired.
	Get(ctx context.Context, key string) (code string, ok bool, err error)
	// Put replaces the cached code for key.
	Put(ctx context.Context, key, code string) error
	// Delete drops the cached code for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
