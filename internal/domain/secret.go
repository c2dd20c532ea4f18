package domain

import "time"

// VaultSecret describes a stored secret. The plaintext value is never
// part of this record; it exists only transiently during retrieval.
type VaultSecret struct {
	VaultID      string    `json:"vault_id"`
	Path         string    `json:"path"`
	OwnerID      string    `json:"owner_id"`
	CacheAllowed bool      `json:"cache_allowed"`
	TTLSeconds   *int64    `json:"ttl_seconds,omitempty"`
	CreatedTS    time.Time `json:"created_ts"`
}
