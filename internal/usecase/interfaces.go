package usecase

import (
	"context"
	"time"

	"credbroker/internal/domain"
)

type Clock func() time.Time

// NonceRegistry is the single-use state machine behind token
// validation. Consume is atomic.
type NonceRegistry interface {
	Put(ctx context.Context, nonce string, expiresAt time.Time) error
	Consume(ctx context.Context, nonce string) error
	Revoke(ctx context.Context, nonce string) error
}

// SecretStore is the local encrypted vault.
type SecretStore interface {
	StoreSecret(ctx context.Context, vaultID, path, secret, ownerID string, cacheAllowed bool, ttlSeconds *int64) bool
	GetSecret(ctx context.Context, vaultID, path string) (string, bool, error)
	ListSecrets(ctx context.Context, vaultID string) ([]string, error)
	DeleteSecret(ctx context.Context, vaultID, path string) bool
	Describe(ctx context.Context, vaultID, path string) (domain.VaultSecret, bool, error)
}

// Ledger is the hash-chained audit log. AppendEvent is durable before
// it returns.
type Ledger interface {
	AppendEvent(eventType domain.EventType, data map[string]any) (domain.LedgerEntry, error)
	VerifyChain() (bool, error)
	Entries(limit int, typeFilter string) ([]domain.LedgerEntry, error)
	Proof(entryID int64) (domain.InclusionProof, error)
}

// AdapterRegistry resolves external retrieval backends by vault id.
type AdapterRegistry interface {
	Lookup(vaultID string) (domain.RetrievalAdapter, bool)
}
