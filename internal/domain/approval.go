package domain

import "time"

// OwnerApproval is produced offline by the approval signer. The
// signature covers the canonical JSON of the other four fields.
type OwnerApproval struct {
	ReqID      string    `json:"req_id"`
	ApproverID string    `json:"approver"`
	ApprovedTS time.Time `json:"approved_ts"`
	TTLSeconds int64     `json:"ttl_seconds"`
	Signature  string    `json:"signature"`
}

func (a OwnerApproval) ExpiresAt() time.Time {
	return a.ApprovedTS.Add(time.Duration(a.TTLSeconds) * time.Second)
}

func (a OwnerApproval) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt())
}
