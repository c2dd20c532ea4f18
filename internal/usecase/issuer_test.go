package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"credbroker/internal/domain"
	"credbroker/internal/infra/crypto"
)

// nonceStub mirrors the single-use state machine of the real
// registries: unknown nonces fail closed.
type nonceStub struct {
	states map[string]string
}

func newNonceStub() *nonceStub {
	return &nonceStub{states: make(map[string]string)}
}

func (s *nonceStub) Put(_ context.Context, nonce string, _ time.Time) error {
	s.states[nonce] = "unused"
	return nil
}

func (s *nonceStub) Consume(_ context.Context, nonce string) error {
	if s.states[nonce] != "unused" {
		return fmt.Errorf("%w: nonce already consumed or unknown", domain.ErrNonceReused)
	}
	s.states[nonce] = "used"
	return nil
}

func (s *nonceStub) Revoke(_ context.Context, nonce string) error {
	if s.states[nonce] == "unused" {
		s.states[nonce] = "revoked"
	}
	return nil
}

func newTestIssuer(t *testing.T, clock Clock) (*TokenIssuer, *nonceStub, func() domain.OwnerApproval) {
	t.Helper()
	signKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate sign key: %v", err)
	}
	ownerKey, ownerPub := ownerKeyPair(t)
	nonces := newNonceStub()
	issuer := NewTokenIssuer(signKey, ownerPub, nonces, 2*time.Minute, clock)

	makeApproval := func() domain.OwnerApproval {
		approval, err := SignApproval(testReqID, "dr-oncall", ownerKey, 300, clock)
		if err != nil {
			t.Fatalf("sign approval: %v", err)
		}
		return approval
	}
	return issuer, nonces, makeApproval
}

func TestIssueToken_ValidApproval(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, nonces, makeApproval := newTestIssuer(t, testClock(now))
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token.Token == "" || token.Nonce == "" {
		t.Fatalf("incomplete token: %+v", token)
	}
	if !token.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("token expiry = %v, want issue time + ttl", token.ExpiresAt)
	}
	if nonces.states[token.Nonce] != "unused" {
		t.Fatal("issued nonce not recorded as unused")
	}

	claims, err := issuer.ValidateToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.ReqID != testReqID || claims.VaultID != "clinic-db" || claims.Path != "prod/password" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestIssueToken_ExpiredApproval(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, _, makeApproval := newTestIssuer(t, testClock(now))
	approval := makeApproval()

	late := NewTokenIssuer(issuer.signKey, issuer.ownerKey, newNonceStub(), 2*time.Minute,
		testClock(now.Add(301*time.Second)))
	_, err := late.IssueToken(context.Background(), approval, "clinic-db", "prod/password")
	if !errors.Is(err, domain.ErrApprovalExpired) {
		t.Fatalf("expected ErrApprovalExpired, got %v", err)
	}
}

func TestIssueToken_BadSignature(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, _, makeApproval := newTestIssuer(t, testClock(now))

	approval := makeApproval()
	approval.ApproverID = "intruder"
	_, err := issuer.IssueToken(context.Background(), approval, "clinic-db", "prod/password")
	if !errors.Is(err, domain.ErrApprovalInvalid) {
		t.Fatalf("expected ErrApprovalInvalid, got %v", err)
	}
}

func TestIssueToken_RequiresScope(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, _, makeApproval := newTestIssuer(t, testClock(now))

	_, err := issuer.IssueToken(context.Background(), makeApproval(), "", "prod/password")
	if !errors.Is(err, domain.ErrApprovalInvalid) {
		t.Fatalf("expected ErrApprovalInvalid for empty vault id, got %v", err)
	}
}

func TestValidateToken_SingleUse(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, _, makeApproval := newTestIssuer(t, testClock(now))
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := issuer.ValidateToken(ctx, token.Token); err != nil {
		t.Fatalf("first validation: %v", err)
	}
	if _, err := issuer.ValidateToken(ctx, token.Token); !errors.Is(err, domain.ErrNonceReused) {
		t.Fatalf("second validation: expected ErrNonceReused, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	clock := testClock(now)
	issuer, _, makeApproval := newTestIssuer(t, clock)
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	lateIssuer := NewTokenIssuer(issuer.signKey, issuer.ownerKey, issuer.nonces, 2*time.Minute,
		testClock(now.Add(3*time.Minute)))
	_, err = lateIssuer.ValidateToken(ctx, token.Token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateToken_Revoked(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, _, makeApproval := newTestIssuer(t, testClock(now))
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := issuer.RevokeToken(ctx, token.Nonce); err != nil {
		t.Fatalf("revoke token: %v", err)
	}
	if _, err := issuer.ValidateToken(ctx, token.Token); !errors.Is(err, domain.ErrNonceReused) {
		t.Fatalf("expected ErrNonceReused after revocation, got %v", err)
	}
}

func TestValidateToken_TamperedClaims(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, _, makeApproval := newTestIssuer(t, testClock(now))
	ctx := context.Background()

	token, err := issuer.IssueToken(ctx, makeApproval(), "clinic-db", "prod/password")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// Re-target the claims without re-signing.
	claims, err := issuer.DecodeToken(token.Token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	claims.Path = "prod/other-secret"
	env, _ := decodeToken(token.Token)
	env.Claims = claims
	wire, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("encode forged token: %v", err)
	}
	forged := base64.StdEncoding.EncodeToString(wire)

	if _, err := issuer.ValidateToken(ctx, forged); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidateToken_Malformed(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	issuer, _, _ := newTestIssuer(t, testClock(now))

	for _, token := range []string{
		"not base64 at all!!",
		base64.StdEncoding.EncodeToString([]byte("not json")),
	} {
		_, err := issuer.ValidateToken(context.Background(), token)
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("token %q: expected ErrInvalidSignature, got %v", token, err)
		}
	}
}
