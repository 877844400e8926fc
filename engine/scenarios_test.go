package engine

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/reldb-core/ast"
	"github.com/zhukovaskychina/reldb-core/catalog"
	"github.com/zhukovaskychina/reldb-core/dbtype"
	"github.com/zhukovaskychina/reldb-core/heap"
	"github.com/zhukovaskychina/reldb-core/lockmgr"
	"github.com/zhukovaskychina/reldb-core/plan"
)

func scenarioCatalog() *catalog.Catalog {
	cat := catalog.New()
	cat.AddTable(catalog.TableInfo{Name: "t", Columns: []string{"a", "b"}})
	cat.AddIndex(catalog.IndexInfo{Name: "ix", Table: "t", Columns: []string{"a"}})
	cat.AddTable(catalog.TableInfo{Name: "t1", Columns: []string{"id"}})
	cat.AddTable(catalog.TableInfo{Name: "t2", Columns: []string{"id"}})
	return cat
}

func encodeLoc(loc heap.Location) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], loc.PageNo)
	binary.LittleEndian.PutUint32(buf[4:8], loc.Sid)
	return buf
}

func decodeLoc(b []byte) heap.Location {
	return heap.Location{
		PageNo: binary.LittleEndian.Uint32(b[0:4]),
		Sid:    binary.LittleEndian.Uint32(b[4:8]),
	}
}

// TestScenarioInsertThenScan is S1: insert (1,2),(3,4),(5,6) into t(a,b)
// and scan the table back in insertion order.
func TestScenarioInsertThenScan(t *testing.T) {
	h, err := Open(DefaultConfig(t.TempDir()), scenarioCatalog())
	require.NoError(t, err)
	defer h.Close()

	table := h.Table("t")
	xid, err := h.Begin()
	require.NoError(t, err)

	rows := [][2]int64{{1, 2}, {3, 4}, {5, 6}}
	for _, r := range rows {
		_, err := table.InsertOne(xid, dbtype.EncodeTuple(dbtype.Tuple{dbtype.Int64(r[0]), dbtype.Int64(r[1])}))
		require.NoError(t, err)
	}
	require.NoError(t, h.Commit(xid))

	var got [][2]int64
	require.NoError(t, table.GetAllLocations(func(loc heap.Location) error {
		raw, err := table.GetOne(loc)
		if err != nil {
			return err
		}
		tup, err := dbtype.DecodeTuple(raw)
		if err != nil {
			return err
		}
		got = append(got, [2]int64{tup[0].Int(), tup[1].Int()})
		return nil
	}))
	assert.Equal(t, rows, got)
}

// TestScenarioIndexPointLookup is S2: insert (1,10),(2,20),(1,11),(3,30)
// into t(a,b) with an index on t(a); WHERE t.a=1 must return both rows
// with a=1, matching IndexScan(ix)'s access path.
func TestScenarioIndexPointLookup(t *testing.T) {
	h, err := Open(DefaultConfig(t.TempDir()), scenarioCatalog())
	require.NoError(t, err)
	defer h.Close()

	table := h.Table("t")
	ix, err := h.Index("ix")
	require.NoError(t, err)

	xid, err := h.Begin()
	require.NoError(t, err)
	rows := [][2]int64{{1, 10}, {2, 20}, {1, 11}, {3, 30}}
	for _, r := range rows {
		loc, err := table.InsertOne(xid, dbtype.EncodeTuple(dbtype.Tuple{dbtype.Int64(r[0]), dbtype.Int64(r[1])}))
		require.NoError(t, err)
		require.NoError(t, ix.Insert(dbtype.NewKey(dbtype.Int64(r[0])), encodeLoc(loc)))
	}
	require.NoError(t, h.Commit(xid))

	sel := &ast.Select{
		From:       []string{"t"},
		Projection: []ast.Expr{ast.Identifier{Table: "t", Column: "a"}, ast.Identifier{Table: "t", Column: "b"}},
		Where: &ast.BinaryOperation{
			Op:    ast.OpEq,
			Left:  ast.Identifier{Table: "t", Column: "a"},
			Right: ast.Constant{Value: dbtype.Int64(1)},
		},
	}
	phys, err := h.Plan(sel)
	require.NoError(t, err)
	require.Contains(t, plan.Explain(phys), "IndexScan(ix")

	locs, err := ix.Find(dbtype.NewKey(dbtype.Int64(1)))
	require.NoError(t, err)
	require.Len(t, locs, 2)
	for _, lb := range locs {
		raw, err := table.GetOne(decodeLoc(lb))
		require.NoError(t, err)
		tup, err := dbtype.DecodeTuple(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(1), tup[0].Int())
	}
}

// TestScenarioCoveredIndexScan is S3: SELECT t.a WHERE t.a=2 is answered
// by CoveredIndexScan(ix) alone, because the index's column list matches
// the single-column projection.
func TestScenarioCoveredIndexScan(t *testing.T) {
	h, err := Open(DefaultConfig(t.TempDir()), scenarioCatalog())
	require.NoError(t, err)
	defer h.Close()

	sel := &ast.Select{
		From:       []string{"t"},
		Projection: []ast.Expr{ast.Identifier{Table: "t", Column: "a"}},
		Where: &ast.BinaryOperation{
			Op:    ast.OpEq,
			Left:  ast.Identifier{Table: "t", Column: "a"},
			Right: ast.Constant{Value: dbtype.Int64(2)},
		},
	}
	phys, err := h.Plan(sel)
	require.NoError(t, err)
	assert.Contains(t, plan.Explain(phys), "CoveredIndexScan(ix")
}

// TestScenarioCrashBetweenUndoFlushAndCommit is S4: a transaction's undo
// record and redo record reach disk but COMMIT never does (simulating a
// crash). Reopening the engine must run recovery, synthesize an ABORT for
// the dangling xid, and leave the row dead.
func TestScenarioCrashBetweenUndoFlushAndCommit(t *testing.T) {
	dataDir := t.TempDir()
	cat := scenarioCatalog()

	h, err := Open(DefaultConfig(dataDir), cat)
	require.NoError(t, err)

	table := h.Table("t")
	xid, err := h.Begin()
	require.NoError(t, err)
	loc, err := table.InsertOne(xid, dbtype.EncodeTuple(dbtype.Tuple{dbtype.Int64(9), dbtype.Int64(9)}))
	require.NoError(t, err)

	ul, err := h.Txn.UndoLogFor(xid)
	require.NoError(t, err)
	require.NoError(t, ul.Flush())
	require.NoError(t, h.Txn.Redo.Flush())
	// No Commit, no Abort: the process "crashes" here.

	h2, err := Open(DefaultConfig(dataDir), cat)
	require.NoError(t, err)
	defer h2.Close()

	table2 := h2.Table("t")
	dead, err := table2.IsDead(loc)
	require.NoError(t, err)
	assert.True(t, dead, "recovery should have rolled the dangling transaction back")

	pg, err := h2.Txn.FetchPage("t", loc.PageNo)
	require.NoError(t, err)
	assert.True(t, pg.LSN() > 0, "the undo applied during recovery should have stamped the page lsn")
}

// TestScenarioJoinPromotion is S5: a CROSS join with a column-to-column
// equality predicate is rewritten into an INNER join carrying that
// predicate, not a Filter sitting above a cross product.
func TestScenarioJoinPromotion(t *testing.T) {
	cat := scenarioCatalog()
	b := plan.NewBuilder(cat)
	sel := &ast.Select{
		From:       []string{"t1", "t2"},
		Projection: []ast.Expr{ast.Star{}},
		Joins:      []ast.Join{{Type: "CROSS", Left: "t1", Right: "t2"}},
		Where: &ast.BinaryOperation{
			Op:    ast.OpEq,
			Left:  ast.Identifier{Table: "t1", Column: "id"},
			Right: ast.Identifier{Table: "t2", Column: "id"},
		},
	}
	logical, err := b.BuildSelect(sel)
	require.NoError(t, err)

	join, ok := logical.Children()[0].(*plan.LogicalJoin)
	require.True(t, ok)
	assert.Equal(t, "INNER", join.Type)
	assert.NotNil(t, join.Condition)

	phys, err := b.Physical(logical, 2)
	require.NoError(t, err)
	explain := plan.Explain(phys)
	assert.Contains(t, explain, "Join(INNER)")
	assert.NotContains(t, explain, "Filter(")
}

// TestScenarioLockUpgrade is S6: T1 acquires S(r) then upgrades to X(r)
// as the sole holder; a concurrent T2 requesting S(r) is denied while T1
// still holds X(r).
func TestScenarioLockUpgrade(t *testing.T) {
	h, err := Open(DefaultConfig(t.TempDir()), scenarioCatalog())
	require.NoError(t, err)
	defer h.Close()

	const resource = "t:row1"
	locks := h.Txn.Locks

	t1, err := h.Begin()
	require.NoError(t, err)
	require.NoError(t, locks.Acquire(resource, t1, lockmgr.ShareLock))
	require.NoError(t, locks.Acquire(resource, t1, lockmgr.ExclusiveLock))
	assert.True(t, locks.Holds(resource, t1, lockmgr.ExclusiveLock))

	t2, err := h.Begin()
	require.NoError(t, err)

	var wg sync.WaitGroup
	var t2Err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		t2Err = locks.Acquire(resource, t2, lockmgr.ShareLock)
	}()
	wg.Wait()

	assert.ErrorIs(t, t2Err, lockmgr.ErrLockConflict)

	locks.ReleaseAll(t1)
	require.NoError(t, h.Abort(t1))
	require.NoError(t, h.Abort(t2))
}
