package domain

type EventType string

const (
	EventCredentialRequest   EventType = "CREDENTIAL_REQUEST"
	EventCredentialApproved  EventType = "CREDENTIAL_APPROVED"
	EventCredentialRetrieved EventType = "CREDENTIAL_RETRIEVED"
	EventCredentialDenied    EventType = "CREDENTIAL_DENIED"
	EventSecretStored        EventType = "SECRET_STORED"
	EventSecretDeleted       EventType = "SECRET_DELETED"
)

// LedgerEntry is one line of the hash-chained audit log.
// Hash = SHA256(previous_hash bytes || canonical JSON of data). The
// first entry has an empty previous hash.
type LedgerEntry struct {
	EntryID      int64          `json:"entry_id"`
	Timestamp    string         `json:"timestamp"`
	PreviousHash string         `json:"previous_hash"`
	Data         map[string]any `json:"data"`
	Hash         string         `json:"hash"`
}

// InclusionProof proves a single ledger entry against the merkle root
// over all entry hashes at a given chain size.
type InclusionProof struct {
	EntryID   int64    `json:"entry_id"`
	LeafIndex int64    `json:"leaf_index"`
	TreeSize  int64    `json:"tree_size"`
	Path      []string `json:"path"`
	RootHash  string   `json:"root_hash"`
}
