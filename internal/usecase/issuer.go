package usecase

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"credbroker/internal/domain"
	"credbroker/internal/infra/crypto"
)

const DefaultTokenTTL = 2 * time.Minute

// tokenEnvelope is the wire form of a retrieval token: base64 of this
// JSON object, signature over the canonical JSON of the claims.
type tokenEnvelope struct {
	Claims    domain.TokenClaims `json:"claims"`
	Signature string             `json:"signature"`
}

// TokenIssuer exchanges verified owner approvals for short-lived,
// single-use, scope-bound retrieval tokens, and owns the nonce
// lifecycle.
type TokenIssuer struct {
	signKey  ed25519.PrivateKey
	ownerKey ed25519.PublicKey
	nonces   NonceRegistry
	tokenTTL time.Duration
	clock    Clock
}

func NewTokenIssuer(signKey ed25519.PrivateKey, ownerKey ed25519.PublicKey, nonces NonceRegistry, tokenTTL time.Duration, clock Clock) *TokenIssuer {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		signKey:  signKey,
		ownerKey: ownerKey,
		nonces:   nonces,
		tokenTTL: tokenTTL,
		clock:    clock,
	}
}

// IssueToken derives a token from a valid approval, 1:1. The token's
// TTL is independent of and shorter than the approval's.
func (i *TokenIssuer) IssueToken(ctx context.Context, approval domain.OwnerApproval, vaultID, path string) (domain.IssuedToken, error) {
	now := i.clock().UTC()
	if approval.Expired(now) {
		return domain.IssuedToken{}, fmt.Errorf("%w: req_id=%s approved_ts=%s ttl=%ds",
			domain.ErrApprovalExpired, approval.ReqID, approval.ApprovedTS.Format(time.RFC3339), approval.TTLSeconds)
	}
	if !VerifyApproval(approval, i.ownerKey) {
		return domain.IssuedToken{}, fmt.Errorf("%w: req_id=%s", domain.ErrApprovalInvalid, approval.ReqID)
	}
	if vaultID == "" || path == "" {
		return domain.IssuedToken{}, fmt.Errorf("%w: vault id and path are required", domain.ErrApprovalInvalid)
	}

	nonce, err := newNonce()
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("generating nonce: %w", err)
	}
	expiry := now.Add(i.tokenTTL)
	claims := domain.TokenClaims{
		ReqID:    approval.ReqID,
		VaultID:  vaultID,
		Path:     path,
		Nonce:    nonce,
		IssuedTS: now.Unix(),
		ExpiryTS: expiry.Unix(),
	}

	canonical, err := crypto.Canonical(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("canonicalizing claims: %w", err)
	}
	sig, err := crypto.Sign(i.signKey, canonical)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("signing token: %w", err)
	}

	wire, err := json.Marshal(tokenEnvelope{Claims: claims, Signature: sig})
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("encoding token: %w", err)
	}
	if err := i.nonces.Put(ctx, nonce, expiry); err != nil {
		return domain.IssuedToken{}, fmt.Errorf("recording nonce: %w", err)
	}

	return domain.IssuedToken{
		Token:     base64.StdEncoding.EncodeToString(wire),
		Nonce:     nonce,
		ExpiresAt: expiry,
	}, nil
}

// ValidateToken checks signature, expiry, and nonce state, in that
// order, and consumes the nonce on success. Validation and consumption
// are one operation: there is no way to validate the same token twice.
func (i *TokenIssuer) ValidateToken(ctx context.Context, token string) (domain.TokenClaims, error) {
	env, err := decodeToken(token)
	if err != nil {
		return domain.TokenClaims{}, err
	}

	canonical, err := crypto.Canonical(env.Claims)
	if err != nil {
		return domain.TokenClaims{}, fmt.Errorf("%w: uncanonicalizable claims", domain.ErrInvalidSignature)
	}
	if err := crypto.Verify(i.signKey.Public().(ed25519.PublicKey), canonical, env.Signature); err != nil {
		return domain.TokenClaims{}, err
	}
	if i.clock().UTC().After(env.Claims.ExpiresAt()) {
		return domain.TokenClaims{}, fmt.Errorf("%w: req_id=%s expiry_ts=%d",
			domain.ErrTokenExpired, env.Claims.ReqID, env.Claims.ExpiryTS)
	}
	if err := i.nonces.Consume(ctx, env.Claims.Nonce); err != nil {
		return domain.TokenClaims{}, err
	}
	return env.Claims, nil
}

// DecodeToken returns the claims without validating or consuming
// anything, for inspection only.
func (i *TokenIssuer) DecodeToken(token string) (domain.TokenClaims, error) {
	env, err := decodeToken(token)
	if err != nil {
		return domain.TokenClaims{}, err
	}
	return env.Claims, nil
}

// RevokeToken is the administrative kill-switch and the broker's
// defense-in-depth second call after retrieval.
func (i *TokenIssuer) RevokeToken(ctx context.Context, nonce string) error {
	return i.nonces.Revoke(ctx, nonce)
}

func decodeToken(token string) (tokenEnvelope, error) {
	wire, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return tokenEnvelope{}, fmt.Errorf("%w: malformed token encoding", domain.ErrInvalidSignature)
	}
	var env tokenEnvelope
	if err := json.Unmarshal(wire, &env); err != nil {
		return tokenEnvelope{}, fmt.Errorf("%w: malformed token payload", domain.ErrInvalidSignature)
	}
	return env, nil
}

func newNonce() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
