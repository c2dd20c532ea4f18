package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"credbroker/internal/domain"
)

type memoryEntry struct {
	state     state
	expiresAt time.Time
}

type memoryRegistry struct {
	mu   sync.Mutex
	now  func() time.Time
	data map[string]*memoryEntry
}

type MemoryConfig struct {
	Now func() time.Time
}

// NewMemoryRegistry builds the single-process registry. Multi-process
// deployments use the redis variant instead.
func NewMemoryRegistry(cfg MemoryConfig) Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &memoryRegistry{
		now:  cfg.Now,
		data: make(map[string]*memoryEntry),
	}
}

func (m *memoryRegistry) Put(_ context.Context, nonce string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.data[nonce]; ok && !m.now().After(entry.expiresAt) {
		// A live entry never resets to unused; used and revoked are
		// final states.
		return fmt.Errorf("nonce already registered")
	}
	m.data[nonce] = &memoryEntry{state: stateUnused, expiresAt: expiresAt}
	return nil
}

func (m *memoryRegistry) Consume(_ context.Context, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[nonce]
	if !ok || entry.state != stateUnused || m.now().After(entry.expiresAt) {
		// Unknown and expired nonces are treated as already consumed:
		// fail closed.
		return fmt.Errorf("%w: nonce already consumed or unknown", domain.ErrNonceReused)
	}
	entry.state = stateUsed
	return nil
}

func (m *memoryRegistry) Revoke(_ context.Context, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[nonce]
	if !ok {
		return nil
	}
	if entry.state == stateUnused {
		entry.state = stateRevoked
	}
	return nil
}

// CleanupExpired drops nonces whose expiry has passed. Expired tokens
// fail validation on their own claims; this just bounds memory.
func (m *memoryRegistry) CleanupExpired() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for nonce, entry := range m.data {
		if now.After(entry.expiresAt) {
			delete(m.data, nonce)
			removed++
		}
	}
	return removed
}
