package bptree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/reldb-core/dbtype"
)

func intKey(i int64) dbtype.Key {
	return dbtype.NewKey(dbtype.Int64(i))
}

func TestInsertFindRoundTrip(t *testing.T) {
	tree := New()
	for i := int64(0); i < 5; i++ {
		require.NoError(t, tree.Insert(intKey(i), []byte(fmt.Sprintf("v%d", i))))
	}
	for i := int64(0); i < 5; i++ {
		vals, err := tree.Find(intKey(i))
		require.NoError(t, err)
		require.Len(t, vals, 1)
		assert.Equal(t, fmt.Sprintf("v%d", i), string(vals[0]))
	}
}

func TestInsertForcesLeafSplitAndChainsNextLeaf(t *testing.T) {
	tree := New()
	for i := int64(0); i < int64(Order)*3; i++ {
		require.NoError(t, tree.Insert(intKey(i), []byte(fmt.Sprintf("v%d", i))))
	}
	assert.False(t, tree.root.isLeaf, "root should have split into an internal node")

	keys, vals, err := tree.FindRange(dbtype.NegInf(), dbtype.PosInf())
	require.NoError(t, err)
	require.Len(t, keys, int(Order)*3)
	for i, k := range keys {
		assert.True(t, k.Equal(intKey(int64(i))))
		assert.Equal(t, fmt.Sprintf("v%d", i), string(vals[i]))
	}
}

func TestInsertDuplicateKeysSpanLeaves(t *testing.T) {
	tree := New()
	for i := 0; i < int(Order)*2; i++ {
		require.NoError(t, tree.Insert(intKey(1), []byte(fmt.Sprintf("dup%d", i))))
	}
	vals, err := tree.Find(intKey(1))
	require.NoError(t, err)
	assert.Len(t, vals, int(Order)*2)
}

func TestFindRangeIsStrictlyHalfOpen(t *testing.T) {
	tree := New()
	for i := int64(0); i < 10; i++ {
		require.NoError(t, tree.Insert(intKey(i), []byte{byte(i)}))
	}
	keys, _, err := tree.FindRange(intKey(2), intKey(7))
	require.NoError(t, err)
	require.Len(t, keys, 4)
	assert.True(t, keys[0].Equal(intKey(3)))
	assert.True(t, keys[3].Equal(intKey(6)))
}

func TestDeleteRemovesAllMatchingEntries(t *testing.T) {
	tree := New()
	for i := 0; i < int(Order)*2; i++ {
		require.NoError(t, tree.Insert(intKey(1), []byte(fmt.Sprintf("dup%d", i))))
	}
	require.NoError(t, tree.Insert(intKey(2), []byte("two")))

	require.NoError(t, tree.Delete(intKey(1), nil))

	vals, err := tree.Find(intKey(1))
	require.NoError(t, err)
	assert.Empty(t, vals)

	vals, err = tree.Find(intKey(2))
	require.NoError(t, err)
	require.Len(t, vals, 1)
}

func TestDeleteWithValueFilterKeepsOtherDuplicates(t *testing.T) {
	tree := New()
	require.NoError(t, tree.Insert(intKey(1), []byte("a")))
	require.NoError(t, tree.Insert(intKey(1), []byte("b")))

	require.NoError(t, tree.Delete(intKey(1), []byte("a")))

	vals, err := tree.Find(intKey(1))
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, "b", string(vals[0]))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	tree := New()
	for i := int64(0); i < int64(Order)*3; i++ {
		require.NoError(t, tree.Insert(intKey(i), []byte(fmt.Sprintf("v%d", i))))
	}

	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, tree.Serialize(path, false))

	loaded, err := Deserialize(path, false)
	require.NoError(t, err)

	keys, vals, err := loaded.FindRange(dbtype.NegInf(), dbtype.PosInf())
	require.NoError(t, err)
	require.Len(t, keys, int(Order)*3)
	for i, k := range keys {
		assert.True(t, k.Equal(intKey(int64(i))))
		assert.Equal(t, fmt.Sprintf("v%d", i), string(vals[i]))
	}
}
