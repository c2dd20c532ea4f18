package usecase

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"credbroker/internal/domain"
	"credbroker/internal/infra/crypto"
)

// approvalPayload is the exact signed surface of an owner approval.
// Field set and canonical ordering are fixed; changing either breaks
// every previously issued approval.
type approvalPayload struct {
	ApprovedTS string `json:"approved_ts"`
	ApproverID string `json:"approver"`
	ReqID      string `json:"req_id"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

func approvalSigningBytes(approval domain.OwnerApproval) ([]byte, error) {
	return crypto.Canonical(approvalPayload{
		ApprovedTS: approval.ApprovedTS.UTC().Format(time.RFC3339),
		ApproverID: approval.ApproverID,
		ReqID:      approval.ReqID,
		TTLSeconds: approval.TTLSeconds,
	})
}

// SignApproval turns an owner's private key and a request id into a
// signed approval record. It has no side effects and is designed to
// run fully offline.
func SignApproval(reqID, approverID string, key ed25519.PrivateKey, ttlSeconds int64, clock Clock) (domain.OwnerApproval, error) {
	if err := domain.ValidateRequestID(reqID); err != nil {
		return domain.OwnerApproval{}, err
	}
	if approverID == "" {
		return domain.OwnerApproval{}, fmt.Errorf("%w: approver id is required", domain.ErrApprovalInvalid)
	}
	if ttlSeconds <= 0 {
		return domain.OwnerApproval{}, fmt.Errorf("%w: ttl must be positive", domain.ErrApprovalInvalid)
	}
	if clock == nil {
		clock = time.Now
	}

	approval := domain.OwnerApproval{
		ReqID:      reqID,
		ApproverID: approverID,
		ApprovedTS: clock().UTC().Truncate(time.Second),
		TTLSeconds: ttlSeconds,
	}
	payload, err := approvalSigningBytes(approval)
	if err != nil {
		return domain.OwnerApproval{}, fmt.Errorf("canonicalizing approval: %w", err)
	}
	sig, err := crypto.Sign(key, payload)
	if err != nil {
		return domain.OwnerApproval{}, fmt.Errorf("signing approval: %w", err)
	}
	approval.Signature = sig
	return approval, nil
}

// SignApprovalFile is SignApproval with the private key loaded from a
// passphrase-protected key file.
func SignApprovalFile(reqID, approverID, keyPath, passphrase string, ttlSeconds int64, clock Clock) (domain.OwnerApproval, error) {
	if err := domain.ValidateRequestID(reqID); err != nil {
		return domain.OwnerApproval{}, err
	}
	key, err := crypto.ReadKeyFile(keyPath, passphrase)
	if err != nil {
		return domain.OwnerApproval{}, err
	}
	return SignApproval(reqID, approverID, key, ttlSeconds, clock)
}

// VerifyApproval recomputes the signed payload and checks the
// signature. Tampered or malformed approvals return false, never an
// error.
func VerifyApproval(approval domain.OwnerApproval, pubKey ed25519.PublicKey) bool {
	payload, err := approvalSigningBytes(approval)
	if err != nil {
		return false
	}
	return crypto.Verify(pubKey, payload, approval.Signature) == nil
}
