package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned when the revocation backend cannot be reached.
var ErrUnavailable = errors.New("session: revocation store unavailable")

// RevocationStore remembers revoked token ids until the token would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocations is a process-local RevocationStore.
type MemoryRevocations struct {
	mu         sync.RWMutex
	now        func() time.Time
	maxEntries int
	entries    map[string]time.Time
}

var _ RevocationStore = (*MemoryRevocations)(nil)

// NewMemoryRevocations returns an empty store. A non-positive maxEntries
// defaults to 10000; when full the entry closest to expiry is dropped.
func NewMemoryRevocations(maxEntries int, now func() time.Time) *MemoryRevocations {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocations{
		now:        now,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
	}
}

// Revoke records tokenID until the given expiry. Already-expired ids are ignored.
func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" || !until.After(m.now()) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupLocked()
	if _, ok := m.entries[tokenID]; !ok && len(m.entries) >= m.maxEntries {
		m.evictOneLocked()
	}
	m.entries[tokenID] = until
	return nil
}

// IsRevoked reports whether tokenID was revoked and has not yet expired.
func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	until, ok := m.entries[tokenID]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		m.mu.Lock()
		delete(m.entries, tokenID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Len reports how many revocations are held, expired ones included.
func (m *MemoryRevocations) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryRevocations) cleanupLocked() {
	now := m.now()
	for id, until := range m.entries {
		if !now.Before(until) {
			delete(m.entries, id)
		}
	}
}

func (m *MemoryRevocations) evictOneLocked() {
	var (
		victim   string
		earliest time.Time
	)
	for id, until := range m.entries {
		if victim == "" || until.Before(earliest) {
			victim, earliest = id, until
		}
	}
	delete(m.entries, victim)
}
