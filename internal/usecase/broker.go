package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"credbroker/internal/domain"
)

// Broker is the only component allowed to turn a retrieval token into a
// secret value. It owns the vault store handle, the ledger handle, and
// the adapter registry; there are no ambient globals.
type Broker struct {
	issuer   *TokenIssuer
	vault    SecretStore
	ledger   Ledger
	adapters AdapterRegistry
	clock    Clock
	logger   *slog.Logger
}

func NewBroker(issuer *TokenIssuer, vault SecretStore, ledger Ledger, adapters AdapterRegistry, clock Clock, logger *slog.Logger) *Broker {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		issuer:   issuer,
		vault:    vault,
		ledger:   ledger,
		adapters: adapters,
		clock:    clock,
		logger:   logger,
	}
}

type RetrievalResult struct {
	Secret      string             `json:"secret"`
	Proof       domain.LedgerEntry `json:"proof"`
	RetrievedAt time.Time          `json:"retrieved_at"`
}

// RetrieveSecret validates and consumes the token, enforces scope,
// fetches the secret, stamps the ledger, and revokes the nonce. A
// rejected token aborts before any vault access or ledger write, so a
// refusal leaves no trace of what it would have unlocked.
func (b *Broker) RetrieveSecret(ctx context.Context, token, vaultID, path string) (RetrievalResult, error) {
	claims, err := b.issuer.ValidateToken(ctx, token)
	if err != nil {
		return RetrievalResult{}, err
	}

	if claims.VaultID != vaultID || claims.Path != path {
		// A valid token for one scope replayed against another. The
		// nonce is already consumed; the token stays dead.
		return RetrievalResult{}, fmt.Errorf("%w: token scoped to %s/%s, requested %s/%s",
			domain.ErrUnauthorized, claims.VaultID, claims.Path, vaultID, path)
	}

	secret, err := b.fetch(ctx, vaultID, path)
	if err != nil {
		return RetrievalResult{}, err
	}

	retrievedAt := b.clock().UTC()
	entry, err := b.ledger.AppendEvent(domain.EventCredentialRetrieved, map[string]any{
		"req_id":    claims.ReqID,
		"vault_id":  vaultID,
		"path":      path,
		"timestamp": retrievedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		// The stamp must be durably committed before the secret is
		// released; without it the retrieval does not happen.
		return RetrievalResult{}, fmt.Errorf("stamping retrieval for %s: %w", claims.ReqID, err)
	}

	if err := b.issuer.RevokeToken(ctx, claims.Nonce); err != nil {
		b.logger.Warn("post-retrieval nonce revoke failed", "req_id", claims.ReqID, "error", err)
	}

	b.logger.Info("credential retrieved",
		"req_id", claims.ReqID, "vault_id", vaultID, "path", path, "entry_id", entry.EntryID)
	return RetrievalResult{
		Secret:      secret,
		Proof:       entry,
		RetrievedAt: retrievedAt,
	}, nil
}

func (b *Broker) fetch(ctx context.Context, vaultID, path string) (string, error) {
	if b.adapters != nil {
		if adapter, ok := b.adapters.Lookup(vaultID); ok {
			data, err := adapter.Retrieve(ctx, path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		}
	}
	secret, found, err := b.vault.GetSecret(ctx, vaultID, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	if !found {
		return "", fmt.Errorf("%w: %s/%s", domain.ErrSecretNotFound, vaultID, path)
	}
	return secret, nil
}

// StoreSecret writes to the vault and stamps SECRET_STORED before
// reporting success.
func (b *Broker) StoreSecret(ctx context.Context, vaultID, path, secret, ownerID string, cacheAllowed bool, ttlSeconds *int64) (domain.LedgerEntry, error) {
	if !b.vault.StoreSecret(ctx, vaultID, path, secret, ownerID, cacheAllowed, ttlSeconds) {
		return domain.LedgerEntry{}, fmt.Errorf("%w: storing %s/%s", domain.ErrStorage, vaultID, path)
	}
	entry, err := b.ledger.AppendEvent(domain.EventSecretStored, map[string]any{
		"vault_id":  vaultID,
		"path":      path,
		"owner_id":  ownerID,
		"timestamp": b.clock().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("stamping store of %s/%s: %w", vaultID, path, err)
	}
	return entry, nil
}

func (b *Broker) ListSecrets(ctx context.Context, vaultID string) ([]string, error) {
	return b.vault.ListSecrets(ctx, vaultID)
}

// DescribeSecret returns a secret's metadata without touching the
// ciphertext.
func (b *Broker) DescribeSecret(ctx context.Context, vaultID, path string) (domain.VaultSecret, error) {
	meta, found, err := b.vault.Describe(ctx, vaultID, path)
	if err != nil {
		return domain.VaultSecret{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if !found {
		return domain.VaultSecret{}, fmt.Errorf("%w: %s/%s", domain.ErrSecretNotFound, vaultID, path)
	}
	return meta, nil
}

// DeleteSecret removes a secret and stamps SECRET_DELETED before
// reporting success.
func (b *Broker) DeleteSecret(ctx context.Context, vaultID, path string) (domain.LedgerEntry, error) {
	if !b.vault.DeleteSecret(ctx, vaultID, path) {
		return domain.LedgerEntry{}, fmt.Errorf("%w: %s/%s", domain.ErrSecretNotFound, vaultID, path)
	}
	entry, err := b.ledger.AppendEvent(domain.EventSecretDeleted, map[string]any{
		"vault_id":  vaultID,
		"path":      path,
		"timestamp": b.clock().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("stamping delete of %s/%s: %w", vaultID, path, err)
	}
	return entry, nil
}
