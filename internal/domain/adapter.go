package domain

import (
	"context"
	"time"
)

// AdapterCredentials carries whatever a retrieval backend needs to
// authenticate. Unused fields stay empty.
type AdapterCredentials struct {
	Username string
	Password string
	Token    string
}

// RetrievalAdapter is the capability contract a pluggable backend must
// implement so the broker can delegate retrieval to it instead of the
// local encrypted store. Adapters reject paths outside their configured
// scope before touching the backend; traversal prevention is part of
// the contract, not optional hardening.
type RetrievalAdapter interface {
	Connect(ctx context.Context, target string, creds AdapterCredentials) error
	Retrieve(ctx context.Context, path string) ([]byte, error)
	// CreateEphemeralAccount is optional; adapters that cannot mint
	// short-lived accounts return ErrNotImplemented.
	CreateEphemeralAccount(ctx context.Context, ttl time.Duration, scope string) (AdapterCredentials, error)
	Cleanup() error
}
