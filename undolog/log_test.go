package undolog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/reldb-core/redolog"
)

func TestReadReverseReturnsRecordsMostRecentFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	l, err := s.Open(7)
	require.NoError(t, err)
	require.NoError(t, l.Write(BeginSentinel(7)))
	require.NoError(t, l.Write(Record{
		Xid: 7, Action: redolog.ActionTableDelete, Relation: "t",
		Location: &redolog.Location{PageNo: 1, Sid: 0}, Data: []byte("row-a"),
	}))
	require.NoError(t, l.Write(Record{
		Xid: 7, Action: redolog.ActionTableUpdate, Relation: "t",
		Location: &redolog.Location{PageNo: 1, Sid: 1}, Data: []byte("pre-image"),
	}))
	require.NoError(t, l.Flush())

	recs, err := l.ReadReverse()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, redolog.ActionTableUpdate, recs[0].Action, "most recent mutation undoes first")
	assert.Equal(t, redolog.ActionTableDelete, recs[1].Action)
	assert.Equal(t, redolog.ActionBegin, recs[2].Action)
}

func TestForgetRemovesUndoFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	l, err := s.Open(3)
	require.NoError(t, err)
	require.NoError(t, l.Write(BeginSentinel(3)))
	require.NoError(t, l.Flush())

	path := filepath.Join(dir, "undo", "3")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Forget(3))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenReturnsSameLogForSameXid(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	l1, err := s.Open(1)
	require.NoError(t, err)
	l2, err := s.Open(1)
	require.NoError(t, err)
	assert.Same(t, l1, l2)
}
