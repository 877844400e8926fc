package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/reldb-core/page"
)

func k(n uint32) Key { return Key{Relation: "t", PageNo: n} }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	p := NewPool(2)
	require.NoError(t, p.Put(k(1), page.New(false)))
	require.NoError(t, p.Put(k(2), page.New(false)))
	require.NoError(t, p.Put(k(3), page.New(false))) // evicts k(1)

	_, ok := p.Get(k(1))
	assert.False(t, ok, "k(1) should have been evicted")
	_, ok = p.Get(k(2))
	assert.True(t, ok)
	_, ok = p.Get(k(3))
	assert.True(t, ok)
}

func TestPinProtectsFromEviction(t *testing.T) {
	p := NewPool(2)
	require.NoError(t, p.Put(k(1), page.New(false)))
	require.NoError(t, p.Put(k(2), page.New(false)))
	p.Pin(k(1))

	require.NoError(t, p.Put(k(3), page.New(false))) // must evict k(2), not k(1)

	_, ok := p.Get(k(1))
	assert.True(t, ok, "pinned page must survive eviction")
	_, ok = p.Get(k(2))
	assert.False(t, ok)
}

func TestAllPinnedReturnsNoSpace(t *testing.T) {
	p := NewPool(1)
	require.NoError(t, p.Put(k(1), page.New(false)))
	p.Pin(k(1))

	err := p.Put(k(2), page.New(false))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSpace)
	_, ok := p.Get(k(2))
	assert.False(t, ok, "rolled-back insertion must not appear in the cache")
}

func TestDirtyTrackingSurvivesEviction(t *testing.T) {
	p := NewPool(1)
	require.NoError(t, p.Put(k(1), page.New(false)))
	p.MarkDirty(k(1))

	require.NoError(t, p.Put(k(2), page.New(false))) // evicts k(1), still dirty

	dirty := p.IterDirty()
	require.Len(t, dirty, 1)
	assert.Equal(t, k(1), dirty[0])

	_, ok := p.PageFor(k(1))
	assert.True(t, ok, "evicted-but-dirty page must remain reachable for the checkpointer")
}

func TestFindMaxPagenoAcrossRelations(t *testing.T) {
	p := NewPool(4)
	require.NoError(t, p.Put(Key{Relation: "a", PageNo: 0}, page.New(false)))
	require.NoError(t, p.Put(Key{Relation: "a", PageNo: 3}, page.New(false)))
	require.NoError(t, p.Put(Key{Relation: "b", PageNo: 9}, page.New(false)))
	p.MarkDirty(Key{Relation: "a", PageNo: 0})
	p.MarkDirty(Key{Relation: "a", PageNo: 3})

	assert.Equal(t, 3, p.FindMaxPageno("a"))
	assert.Equal(t, -1, p.FindMaxPageno("b"))
	assert.Equal(t, -1, p.FindMaxPageno("nonexistent"))
}
