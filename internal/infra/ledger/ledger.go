// Package ledger implements the append-only, hash-chained audit log.
// Entries are stored one JSON object per line; the file is never
// rewritten in place. Each entry's hash is
// SHA256(previous_hash bytes || canonical JSON of data), so deleting or
// editing any line breaks verification of everything after it.
package ledger

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"credbroker/internal/domain"
	"credbroker/internal/infra/crypto"
	"credbroker/internal/infra/merkle"
)

type Ledger struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	prevHash string
	count    int64
	clock    func() time.Time
	logger   *slog.Logger
}

// Open opens (or creates) a ledger file and replays it to restore the
// chain head. The returned handle is long-lived; appends reuse it.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{
		file:   file,
		path:   path,
		clock:  time.Now,
		logger: logger,
	}
	entries, err := l.readAll()
	if err != nil {
		file.Close()
		return nil, err
	}
	if n := len(entries); n > 0 {
		l.prevHash = entries[n-1].Hash
		l.count = entries[n-1].EntryID
	}
	return l, nil
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// AppendEvent stamps an event into the chain. The entire
// read-prev/hash/write/fsync sequence holds the mutex; two concurrent
// appends racing on the previous hash would corrupt the chain. The
// entry is durable on disk before this returns.
func (l *Ledger) AppendEvent(eventType domain.EventType, data map[string]any) (domain.LedgerEntry, error) {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["event_type"] = string(eventType)

	canonical, err := crypto.Canonical(payload)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("canonicalizing event data: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := domain.LedgerEntry{
		EntryID:      l.count + 1,
		Timestamp:    l.clock().UTC().Format(time.RFC3339Nano),
		PreviousHash: l.prevHash,
		Data:         payload,
		Hash:         chainHash(l.prevHash, canonical),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("encoding ledger entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("writing ledger entry %d: %w", entry.EntryID, err)
	}
	if err := l.file.Sync(); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("syncing ledger entry %d: %w", entry.EntryID, err)
	}

	l.prevHash = entry.Hash
	l.count = entry.EntryID
	return entry, nil
}

// VerifyChain replays every entry from disk, recomputing each hash from
// its recorded data and the previous entry's hash. A false result is a
// security event, not a transient fault; the error names the first
// corrupted entry and is never auto-repaired.
func (l *Ledger) VerifyChain() (bool, error) {
	entries, err := l.readAll()
	if err != nil {
		return false, err
	}

	prevHash := ""
	for i, entry := range entries {
		if entry.EntryID != int64(i)+1 {
			return false, l.integrityError(entry.EntryID, "entry id out of sequence")
		}
		if entry.PreviousHash != prevHash {
			return false, l.integrityError(entry.EntryID, "broken previous hash link")
		}
		canonical, err := crypto.Canonical(entry.Data)
		if err != nil {
			return false, l.integrityError(entry.EntryID, "uncanonicalizable data")
		}
		if chainHash(prevHash, canonical) != entry.Hash {
			return false, l.integrityError(entry.EntryID, "hash mismatch")
		}
		prevHash = entry.Hash
	}
	return true, nil
}

// Entries returns committed entries in order. A limit <= 0 means all;
// typeFilter matches the event_type recorded inside data.
func (l *Ledger) Entries(limit int, typeFilter string) ([]domain.LedgerEntry, error) {
	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if typeFilter != "" {
			eventType, _ := entry.Data["event_type"].(string)
			if eventType != typeFilter {
				continue
			}
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Proof builds a merkle inclusion proof for one entry against the root
// over all entry hashes currently committed.
func (l *Ledger) Proof(entryID int64) (domain.InclusionProof, error) {
	entries, err := l.readAll()
	if err != nil {
		return domain.InclusionProof{}, err
	}
	if entryID < 1 || entryID > int64(len(entries)) {
		return domain.InclusionProof{}, fmt.Errorf("%w: entry %d not in ledger", domain.ErrChainIntegrity, entryID)
	}

	leaves := make([][]byte, len(entries))
	for i, entry := range entries {
		leaf, err := hex.DecodeString(entry.Hash)
		if err != nil || len(leaf) != merkle.HashSize {
			return domain.InclusionProof{}, l.integrityError(entry.EntryID, "malformed entry hash")
		}
		leaves[i] = leaf
	}

	index := int(entryID - 1)
	path, err := merkle.Proof(leaves, index)
	if err != nil {
		return domain.InclusionProof{}, err
	}
	rootHash, err := merkle.Root(leaves)
	if err != nil {
		return domain.InclusionProof{}, err
	}

	hexPath := make([]string, len(path))
	for i, sibling := range path {
		hexPath[i] = hex.EncodeToString(sibling)
	}
	return domain.InclusionProof{
		EntryID:   entryID,
		LeafIndex: int64(index),
		TreeSize:  int64(len(leaves)),
		Path:      hexPath,
		RootHash:  hex.EncodeToString(rootHash),
	}, nil
}

func (l *Ledger) readAll() ([]domain.LedgerEntry, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger for read: %w", err)
	}
	defer file.Close()

	var entries []domain.LedgerEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.LedgerEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("%w: unparseable entry at line %d", domain.ErrChainIntegrity, lineNo)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return entries, nil
}

func (l *Ledger) integrityError(entryID int64, reason string) error {
	l.logger.Error("ledger chain verification failed", "entry_id", entryID, "reason", reason)
	return fmt.Errorf("%w: entry %d: %s", domain.ErrChainIntegrity, entryID, reason)
}

func chainHash(prevHash string, canonicalData []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonicalData)
	return hex.EncodeToString(h.Sum(nil))
}
