package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"credbroker/internal/domain"
	"credbroker/internal/infra/ledger"
)

type vaultStub struct {
	secrets   map[string]string
	failWrite bool
}

func newVaultStub() *vaultStub {
	return &vaultStub{secrets: make(map[string]string)}
}

func (v *vaultStub) StoreSecret(_ context.Context, vaultID, path, secret, _ string, _ bool, _ *int64) bool {
	if v.failWrite {
		return false
	}
	v.secrets[vaultID+"/"+path] = secret
	return true
}

func (v *vaultStub) GetSecret(_ context.Context, vaultID, path string) (string, bool, error) {
	secret, ok := v.secrets[vaultID+"/"+path]
	return secret, ok, nil
}

func (v *vaultStub) ListSecrets(_ context.Context, vaultID string) ([]string, error) {
	var paths []string
	prefix := vaultID + "/"
	for key := range v.secrets {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			paths = append(paths, key[len(prefix):])
		}
	}
	return paths, nil
}

func (v *vaultStub) DeleteSecret(_ context.Context, vaultID, path string) bool {
	key := vaultID + "/" + path
	if _, ok := v.secrets[key]; !ok {
		return false
	}
	delete(v.secrets, key)
	return true
}

func (v *vaultStub) Describe(_ context.Context, vaultID, path string) (domain.VaultSecret, bool, error) {
	if _, ok := v.secrets[vaultID+"/"+path]; !ok {
		return domain.VaultSecret{}, false, nil
	}
	return domain.VaultSecret{VaultID: vaultID, Path: path, OwnerID: "owner-1"}, true, nil
}

type adapterStub struct {
	domain.RetrievalAdapter
	data map[string][]byte
}

func (a *adapterStub) Retrieve(_ context.Context, path string) ([]byte, error) {
	data, ok := a.data[path]
	if !ok {
		return nil, domain.ErrSecretNotFound
	}
	return data, nil
}

type registryStub struct {
	adapters map[string]domain.RetrievalAdapter
}

func (r *registryStub) Lookup(vaultID string) (domain.RetrievalAdapter, bool) {
	adapter, ok := r.adapters[vaultID]
	return adapter, ok
}

type brokerFixture struct {
	broker *Broker
	issuer *TokenIssuer
	vault  *vaultStub
	ledger *ledger.Ledger
	nonces *nonceStub

	makeApproval func() domain.OwnerApproval
}

func newBrokerFixture(t *testing.T, clock Clock, adapters AdapterRegistry) *brokerFixture {
	t.Helper()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "audit.ledger"), nil)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { led.Close() })

	issuer, nonces, makeApproval := newTestIssuer(t, clock)
	vault := newVaultStub()
	broker := NewBroker(issuer, vault, led, adapters, clock, nil)
	return &brokerFixture{
		broker:       broker,
		issuer:       issuer,
		vault:        vault,
		ledger:       led,
		nonces:       nonces,
		makeApproval: makeApproval,
	}
}

func TestRetrieveSecret_EndToEnd(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	ctx := context.Background()

	fx.vault.secrets["clinic-db/prod/password"] = "hunter2"

	token, err := fx.issuer.IssueToken(ctx, fx.makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	result, err := fx.broker.RetrieveSecret(ctx, token.Token, "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("retrieve secret: %v", err)
	}
	if result.Secret != "hunter2" {
		t.Fatalf("secret = %q", result.Secret)
	}
	if result.Proof.EntryID != 1 {
		t.Fatalf("proof entry id = %d, want 1", result.Proof.EntryID)
	}
	if result.Proof.Data["req_id"] != testReqID {
		t.Fatalf("proof data = %v", result.Proof.Data)
	}

	// The consumed token is dead for good.
	_, err = fx.broker.RetrieveSecret(ctx, token.Token, "clinic-db", "prod/password")
	if !errors.Is(err, domain.ErrNonceReused) {
		t.Fatalf("replay: expected ErrNonceReused, got %v", err)
	}

	ok, err := fx.ledger.VerifyChain()
	if err != nil || !ok {
		t.Fatalf("ledger after retrieval: ok=%v err=%v", ok, err)
	}
	entries, err := fx.ledger.Entries(0, "")
	if err != nil {
		t.Fatalf("ledger entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want only the retrieval stamp", len(entries))
	}
}

func TestRetrieveSecret_ScopeMismatch(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	ctx := context.Background()

	fx.vault.secrets["clinic-db/prod/password"] = "hunter2"
	fx.vault.secrets["clinic-db/prod/api-key"] = "sk-123"

	token, err := fx.issuer.IssueToken(ctx, fx.makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	_, err = fx.broker.RetrieveSecret(ctx, token.Token, "clinic-db", "prod/api-key")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Scope refusal consumed the nonce: the token cannot be retried
	// even against its proper scope.
	_, err = fx.broker.RetrieveSecret(ctx, token.Token, "clinic-db", "prod/password")
	if !errors.Is(err, domain.ErrNonceReused) {
		t.Fatalf("expected ErrNonceReused after scope refusal, got %v", err)
	}
}

func TestRetrieveSecret_RejectedTokenLeavesNoTrace(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	ctx := context.Background()

	fx.vault.secrets["clinic-db/prod/password"] = "hunter2"

	_, err := fx.broker.RetrieveSecret(ctx, "bm90IGEgdG9rZW4=", "clinic-db", "prod/password")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	entries, err := fx.ledger.Entries(0, "")
	if err != nil {
		t.Fatalf("ledger entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected token left %d ledger entries", len(entries))
	}
}

func TestRetrieveSecret_MissingSecret(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	ctx := context.Background()

	token, err := fx.issuer.IssueToken(ctx, fx.makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	_, err = fx.broker.RetrieveSecret(ctx, token.Token, "clinic-db", "prod/password")
	if !errors.Is(err, domain.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}

	entries, _ := fx.ledger.Entries(0, "")
	if len(entries) != 0 {
		t.Fatalf("failed retrieval left %d ledger entries", len(entries))
	}
}

func TestRetrieveSecret_AdapterBackend(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	registry := &registryStub{adapters: map[string]domain.RetrievalAdapter{
		"lab-lis": &adapterStub{data: map[string][]byte{"prod/password": []byte("from-adapter")}},
	}}
	fx := newBrokerFixture(t, testClock(now), registry)
	ctx := context.Background()

	// The vault has a different value; the adapter must win for its
	// vault id.
	fx.vault.secrets["lab-lis/prod/password"] = "from-vault"

	approval := fx.makeApproval()
	token, err := fx.issuer.IssueToken(ctx, approval, "lab-lis", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	result, err := fx.broker.RetrieveSecret(ctx, token.Token, "lab-lis", "prod/password")
	if err != nil {
		t.Fatalf("retrieve via adapter: %v", err)
	}
	if result.Secret != "from-adapter" {
		t.Fatalf("secret = %q, want the adapter value", result.Secret)
	}
}

func TestStoreSecret_StampsLedger(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	ctx := context.Background()

	entry, err := fx.broker.StoreSecret(ctx, "clinic-db", "prod/password", "hunter2", "owner-1", false, nil)
	if err != nil {
		t.Fatalf("store secret: %v", err)
	}
	if entry.Data["event_type"] != string(domain.EventSecretStored) {
		t.Fatalf("unexpected event: %v", entry.Data)
	}
	if fx.vault.secrets["clinic-db/prod/password"] != "hunter2" {
		t.Fatal("secret not written to vault")
	}
}

func TestStoreSecret_WriteFailure(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	fx.vault.failWrite = true

	_, err := fx.broker.StoreSecret(context.Background(), "clinic-db", "prod/password", "hunter2", "owner-1", false, nil)
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	entries, _ := fx.ledger.Entries(0, "")
	if len(entries) != 0 {
		t.Fatalf("failed store left %d ledger entries", len(entries))
	}
}

func TestDeleteSecret(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	ctx := context.Background()

	fx.vault.secrets["clinic-db/prod/password"] = "hunter2"
	entry, err := fx.broker.DeleteSecret(ctx, "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	if entry.Data["event_type"] != string(domain.EventSecretDeleted) {
		t.Fatalf("unexpected event: %v", entry.Data)
	}

	_, err = fx.broker.DeleteSecret(ctx, "clinic-db", "prod/password")
	if !errors.Is(err, domain.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound on second delete, got %v", err)
	}
}

func TestDescribeSecret(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	fx := newBrokerFixture(t, testClock(now), nil)
	ctx := context.Background()

	fx.vault.secrets["clinic-db/prod/password"] = "hunter2"
	meta, err := fx.broker.DescribeSecret(ctx, "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("describe secret: %v", err)
	}
	if meta.VaultID != "clinic-db" || meta.Path != "prod/password" || meta.OwnerID != "owner-1" {
		t.Fatalf("meta = %+v", meta)
	}

	_, err = fx.broker.DescribeSecret(ctx, "clinic-db", "prod/missing")
	if !errors.Is(err, domain.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
}
