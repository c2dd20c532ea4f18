package domain

import "time"

// TokenClaims is the signed payload of a retrieval token. Timestamps
// are unix seconds so the canonical serialization stays integer-only.
type TokenClaims struct {
	ReqID    string `json:"req_id"`
	VaultID  string `json:"vault_id"`
	Path     string `json:"path"`
	Nonce    string `json:"nonce"`
	IssuedTS int64  `json:"issued_ts"`
	ExpiryTS int64  `json:"expiry_ts"`
}

func (c TokenClaims) ExpiresAt() time.Time {
	return time.Unix(c.ExpiryTS, 0).UTC()
}

// IssuedToken is what the issuer hands back: the encoded wire token
// plus the fields a caller needs without decoding it.
type IssuedToken struct {
	Token     string    `json:"token"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}
