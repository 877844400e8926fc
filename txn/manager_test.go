package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/reldb-core/redolog"
	"github.com/zhukovaskychina/reldb-core/undolog"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(Config{
		DataDir:         t.TempDir(),
		BufferPoolPages: 16,
		LockWaitTimeout: time.Millisecond,
	})
	require.NoError(t, err)
	return m
}

func TestStartAssignsIncreasingXids(t *testing.T) {
	m := newTestManager(t)
	x1, err := m.Start()
	require.NoError(t, err)
	x2, err := m.Start()
	require.NoError(t, err)
	assert.Greater(t, x2, x1)
}

func TestCommitReleasesLocksAndForgetsUndo(t *testing.T) {
	m := newTestManager(t)
	xid, err := m.Start()
	require.NoError(t, err)

	require.NoError(t, m.Locks.Acquire("row-1", xid, 1))
	require.NoError(t, m.Commit(xid))
	assert.False(t, m.Locks.Holds("row-1", xid, 1))

	err = m.Commit(xid)
	assert.ErrorIs(t, err, ErrUnknownXid)
}

func TestAbortUndoesBufferedMutation(t *testing.T) {
	m := newTestManager(t)
	xid, err := m.Start()
	require.NoError(t, err)

	pageno, pg, err := m.AllocatePage("t", 0)
	require.NoError(t, err)
	sid, err := pg.Insert([]byte("row-a"))
	require.NoError(t, err)

	ul, err := m.UndoLogFor(xid)
	require.NoError(t, err)
	require.NoError(t, ul.Write(undolog.Record{
		Xid: xid, Action: redolog.ActionTableDelete, Relation: "t",
		Location: &redolog.Location{PageNo: pageno, Sid: uint32(sid)},
	}))

	require.NoError(t, m.Abort(xid))

	pg2, err := m.FetchPage("t", pageno)
	require.NoError(t, err)
	assert.Nil(t, pg2.Select(sid), "aborted insert must be undone by a delete")
}

func TestCheckpointFlushesDirtyPages(t *testing.T) {
	m := newTestManager(t)
	pageno, pg, err := m.AllocatePage("t", 0)
	require.NoError(t, err)
	_, err = pg.Insert([]byte("row"))
	require.NoError(t, err)

	require.NoError(t, m.Checkpoint())
	assert.Empty(t, m.Pool.IterDirty())

	f, err := m.Files.File("t")
	require.NoError(t, err)
	n, err := f.PageCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int(pageno)+1)
}
