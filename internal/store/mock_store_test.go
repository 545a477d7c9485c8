// ABOUTME: Tests for the in-memory mock store
// ABOUTME: Verifies it matches SQLite semantics for upsert, retention, and failure injection

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_SessionLifecycle(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	_, err := m.GetSession(ctx, "dev-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.CommitTurn(ctx, &TurnRecord{
		DeviceID: "dev-1", ContinuationToken: "sig-1", HasContinuation: true,
		UserText: "q", ModelText: "a",
	}))

	sess, err := m.GetSession(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", sess.ContinuationToken)

	// A turn without a token keeps the stored one.
	require.NoError(t, m.CommitTurn(ctx, &TurnRecord{
		DeviceID: "dev-1", HasContinuation: false,
		UserText: "q2", ModelText: "a2",
	}))
	sess, err = m.GetSession(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", sess.ContinuationToken)

	entries, err := m.ListHistory(ctx, "dev-1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestMockStore_CommitErrLeavesNoState(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	m.CommitErr = errors.New("disk full")
	err := m.CommitTurn(ctx, &TurnRecord{DeviceID: "dev-1", UserText: "q", ModelText: "a"})
	require.Error(t, err)

	_, err = m.GetSession(ctx, "dev-1")
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := m.ListHistory(ctx, "dev-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.CommitTurn(ctx, &TurnRecord{
		DeviceID: "dev-1", ContinuationToken: "sig", HasContinuation: true,
		UserText: "q", ModelText: "a",
	}))

	sess, err := m.GetSession(ctx, "dev-1")
	require.NoError(t, err)
	sess.ContinuationToken = "mutated"

	again, err := m.GetSession(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "sig", again.ContinuationToken)
}
