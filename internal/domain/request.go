package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRetrieved RequestStatus = "RETRIEVED"
	RequestExpired   RequestStatus = "EXPIRED"
	RequestDenied    RequestStatus = "DENIED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// CredentialRequest is created by the requesting caller, never by the
// broker. The broker only tracks and audits it.
type CredentialRequest struct {
	ReqID       string        `json:"req_id"`
	RequesterID string        `json:"requester_id"`
	VaultID     string        `json:"vault_id"`
	Path        string        `json:"path"`
	Reason      string        `json:"reason"`
	Emergency   bool          `json:"emergency"`
	Status      RequestStatus `json:"status"`
	CreatedTS   time.Time     `json:"created_ts"`
	ExpiresTS   time.Time     `json:"expires_ts"`
}

func (r CredentialRequest) Expired(now time.Time) bool {
	return !r.ExpiresTS.IsZero() && now.After(r.ExpiresTS)
}

// ValidateRequestID checks the REQ-YYYYMMDD-HHMMSS-{12 hex} format:
// four dash-separated fields, literal REQ, 8-digit date, 6-digit time,
// 12-character lowercase hex suffix.
func ValidateRequestID(reqID string) error {
	parts := strings.Split(reqID, "-")
	if len(parts) != 4 {
		return fmt.Errorf("%w: %q", ErrInvalidRequestID, reqID)
	}
	if parts[0] != "REQ" {
		return fmt.Errorf("%w: %q", ErrInvalidRequestID, reqID)
	}
	if !allDigits(parts[1]) || len(parts[1]) != 8 {
		return fmt.Errorf("%w: %q", ErrInvalidRequestID, reqID)
	}
	if !allDigits(parts[2]) || len(parts[2]) != 6 {
		return fmt.Errorf("%w: %q", ErrInvalidRequestID, reqID)
	}
	if len(parts[3]) != 12 || !allHex(parts[3]) {
		return fmt.Errorf("%w: %q", ErrInvalidRequestID, reqID)
	}
	return nil
}

// NewRequestID mints a request id for callers. The broker itself never
// calls this on behalf of a retrieval.
func NewRequestID(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("REQ-%s-%s", now.UTC().Format("20060102-150405"), hex.EncodeToString(suffix)), nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func allHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
