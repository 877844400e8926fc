package engine

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/reldb-core/ast"
	"github.com/zhukovaskychina/reldb-core/catalog"
	"github.com/zhukovaskychina/reldb-core/dbtype"
)

func testHandle(t *testing.T) *Handle {
	cat := catalog.New()
	cat.AddTable(catalog.TableInfo{Name: "accounts", Columns: []string{"id", "name"}})
	cat.AddIndex(catalog.IndexInfo{Name: "accounts_id_idx", Table: "accounts", Columns: []string{"id"}})

	h, err := Open(DefaultConfig(t.TempDir()), cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestOpenCreatesDataDirAndRecoversCleanly(t *testing.T) {
	h := testHandle(t)
	assert.NotNil(t, h.Txn)
}

func TestInsertCommitAbortRoundTrip(t *testing.T) {
	h := testHandle(t)
	table := h.Table("accounts")

	xid, err := h.Begin()
	require.NoError(t, err)
	loc, err := table.InsertOne(xid, []byte("alice"))
	require.NoError(t, err)
	require.NoError(t, h.Commit(xid))

	got, err := table.GetOne(loc)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(got))

	xid2, err := h.Begin()
	require.NoError(t, err)
	loc2, err := table.InsertOne(xid2, []byte("bob"))
	require.NoError(t, err)
	require.NoError(t, h.Abort(xid2))

	dead, err := table.IsDead(loc2)
	require.NoError(t, err)
	assert.True(t, dead)
}

func TestIndexPersistsAcrossFlushAndReload(t *testing.T) {
	dataDir := t.TempDir()
	cat := catalog.New()
	cat.AddTable(catalog.TableInfo{Name: "accounts", Columns: []string{"id", "name"}})
	cat.AddIndex(catalog.IndexInfo{Name: "accounts_id_idx", Table: "accounts", Columns: []string{"id"}})

	h, err := Open(DefaultConfig(dataDir), cat)
	require.NoError(t, err)
	ix, err := h.Index("accounts_id_idx")
	require.NoError(t, err)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, ix.Insert(dbtype.NewKey(dbtype.Int64(i)), []byte(fmt.Sprintf("loc%d", i))))
	}
	require.NoError(t, h.FlushIndex("accounts_id_idx"))
	require.NoError(t, h.Close())

	path := filepath.Join(dataDir, "accounts_id_idx.idx")
	assert.FileExists(t, path)

	h2, err := Open(DefaultConfig(dataDir), cat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h2.Close() })
	reloaded, err := h2.Index("accounts_id_idx")
	require.NoError(t, err)
	vals, err := reloaded.Find(dbtype.NewKey(dbtype.Int64(3)))
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, "loc3", string(vals[0]))
}

func TestPlanSelectsTableScanWithoutPredicate(t *testing.T) {
	h := testHandle(t)
	sel := &ast.Select{From: []string{"accounts"}, Projection: []ast.Expr{ast.Star{}}}
	phys, err := h.Plan(sel)
	require.NoError(t, err)
	assert.NotNil(t, phys)
}
