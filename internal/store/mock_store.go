// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject write failures

package store

import (
	"context"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session       // keyed by device ID
	history  map[string][]*HistoryEntry // keyed by device ID
	nextID   int64

	// CommitErr, when set, is returned by CommitTurn before any state is
	// touched. Used to exercise persistence-failure paths.
	CommitErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
		history:  make(map[string][]*HistoryEntry),
		nextID:   1,
	}
}

// GetSession retrieves a session by device ID.
func (m *MockStore) GetSession(ctx context.Context, deviceID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[deviceID]
	if !ok {
		return nil, ErrNotFound
	}

	// Make a copy to avoid external modification
	s := *sess
	return &s, nil
}

// CommitTurn stores the session upsert and both history entries, or nothing
// when CommitErr is set.
func (m *MockStore) CommitTurn(ctx context.Context, rec *TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CommitErr != nil {
		return m.CommitErr
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	sess, ok := m.sessions[rec.DeviceID]
	if !ok {
		sess = &Session{DeviceID: rec.DeviceID}
		m.sessions[rec.DeviceID] = sess
	}
	if rec.HasContinuation {
		sess.ContinuationToken = rec.ContinuationToken
		sess.HasContinuation = true
	}
	sess.UpdatedAt = ts

	for _, entry := range []*HistoryEntry{
		{DeviceID: rec.DeviceID, Role: RoleUser, Content: rec.UserText, Timestamp: ts},
		{DeviceID: rec.DeviceID, Role: RoleModel, Content: rec.ModelText, Timestamp: ts},
	} {
		entry.ID = m.nextID
		m.nextID++
		m.history[rec.DeviceID] = append(m.history[rec.DeviceID], entry)
	}

	return nil
}

// ListHistory returns up to limit entries for a device, oldest first.
func (m *MockStore) ListHistory(ctx context.Context, deviceID string, limit int) ([]*HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.history[deviceID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	out := make([]*HistoryEntry, len(entries))
	for i, e := range entries {
		copied := *e
		out[i] = &copied
	}
	return out, nil
}

// ListSessions returns all sessions, most recently updated first.
func (m *MockStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		s := *sess
		out = append(out, &s)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt.After(out[i].UpdatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
