package lockmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantMatrix(t *testing.T) {
	m := New(time.Millisecond)

	require.NoError(t, m.Acquire("r1", 1, ShareLock))
	require.NoError(t, m.Acquire("r1", 2, ShareLock), "S+S is compatible")

	err := m.Acquire("r1", 3, ExclusiveLock)
	require.ErrorIs(t, err, ErrLockConflict, "X must deny while other xids hold S")
}

func TestUpgradeGrantedWhenSoleHolder(t *testing.T) {
	m := New(time.Millisecond)
	require.NoError(t, m.Acquire("r1", 1, ShareLock))
	require.NoError(t, m.Acquire("r1", 1, ExclusiveLock), "sole S holder may upgrade to X")
	assert.True(t, m.Holds("r1", 1, ExclusiveLock))
}

func TestExclusiveDeniesEverythingElse(t *testing.T) {
	m := New(time.Millisecond)
	require.NoError(t, m.Acquire("r1", 1, ExclusiveLock))

	err := m.Acquire("r1", 2, ShareLock)
	require.ErrorIs(t, err, ErrLockConflict)
	err = m.Acquire("r1", 2, ExclusiveLock)
	require.ErrorIs(t, err, ErrLockConflict)
}

func TestReleaseRemovesEmptyResourceEntry(t *testing.T) {
	m := New(time.Millisecond)
	require.NoError(t, m.Acquire("r1", 1, ExclusiveLock))
	m.Release("r1", 1)

	require.NoError(t, m.Acquire("r1", 2, ExclusiveLock), "resource must be free after release")
}

func TestReleaseAllDropsEveryLockForXid(t *testing.T) {
	m := New(time.Millisecond)
	require.NoError(t, m.Acquire("r1", 1, ShareLock))
	require.NoError(t, m.Acquire("r2", 1, ExclusiveLock))
	m.ReleaseAll(1)

	require.NoError(t, m.Acquire("r1", 2, ExclusiveLock))
	require.NoError(t, m.Acquire("r2", 2, ExclusiveLock))
}
