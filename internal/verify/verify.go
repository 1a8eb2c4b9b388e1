// Package verify holds the short-lived record that a claimant scanned the
// right location code during the current claim session.
package verify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store records verified claim sessions keyed by instance. A session is
// identified by the claimant and the claim token minted when the instance
// entered in_progress.
type Store interface {
	Mark(ctx context.Context, instanceID, staffID int64, token string) error
	IsVerified(ctx context.Context, instanceID, staffID int64, token string) (bool, error)
	Invalidate(ctx context.Context, instanceID int64) error
}

type session struct {
	staffID int64
	token   string
	expires time.Time
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]session
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[int64]session)}
}

// SetClock replaces the time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) Mark(_ context.Context, instanceID, staffID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := session{staffID: staffID, token: token}
	if m.ttl > 0 {
		s.expires = m.now().Add(m.ttl)
	}
	m.sessions[instanceID] = s
	return nil
}

func (m *MemoryStore) IsVerified(_ context.Context, instanceID, staffID int64, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[instanceID]
	if !ok {
		return false, nil
	}
	if !s.expires.IsZero() && !m.now().Before(s.expires) {
		delete(m.sessions, instanceID)
		return false, nil
	}
	return s.staffID == staffID && s.token == token, nil
}

func (m *MemoryStore) Invalidate(_ context.Context, instanceID int64) error {
	m.mu.Lock()
	delete(m.sessions, instanceID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func sessionValue(staffID int64, token string) string {
	return fmt.Sprintf("%d:%s", staffID, token)
}
