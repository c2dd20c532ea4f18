// Package nonce tracks single-use token nonces. A nonce moves
// Unused -> Used (first successful validation) or Unused -> Revoked
// (kill-switch); both transitions are terminal and there is no way
// back.
package nonce

import (
	"context"
	"time"
)

// Registry is the durable record of nonce state. Consume must be
// atomic: two callers racing on the same nonce get exactly one success.
type Registry interface {
	// Put records a fresh nonce as Unused.
	Put(ctx context.Context, nonce string, expiresAt time.Time) error
	// Consume transitions Unused -> Used. An unknown, already used,
	// or revoked nonce fails with ErrNonceReused.
	Consume(ctx context.Context, nonce string) error
	// Revoke transitions Unused -> Revoked. Idempotent; revoking a
	// consumed nonce is a no-op, since Used is already terminal.
	Revoke(ctx context.Context, nonce string) error
}

type state string

const (
	stateUnused  state = "unused"
	stateUsed    state = "used"
	stateRevoked state = "revoked"
)
