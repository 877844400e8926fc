package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhukovaskychina/reldb-core/ast"
	"github.com/zhukovaskychina/reldb-core/catalog"
)

func testCatalog() *catalog.Catalog {
	c := catalog.New()
	c.AddTable(catalog.TableInfo{Name: "accounts", Columns: []string{"id", "name", "balance"}})
	c.AddTable(catalog.TableInfo{Name: "orders", Columns: []string{"id", "account_id", "total"}})
	c.AddIndex(catalog.IndexInfo{Name: "accounts_id_idx", Table: "accounts", Columns: []string{"id"}})
	c.AddIndex(catalog.IndexInfo{Name: "accounts_name_idx", Table: "accounts", Columns: []string{"name"}})
	c.AddFunction(catalog.FunctionInfo{Name: "count", IsAggregate: true})
	return c
}

func TestTableScanWhenNoPredicate(t *testing.T) {
	b := NewBuilder(testCatalog())
	sel := &ast.Select{
		From:       []string{"accounts"},
		Projection: []ast.Expr{ast.Star{}},
	}
	logical, err := b.BuildSelect(sel)
	require.NoError(t, err)

	phys, err := b.Physical(logical, 3)
	require.NoError(t, err)
	assert.Contains(t, Explain(phys), "TableScan(accounts)")
}

func TestIndexScanWhenPredicateMatchesNonCoveringIndex(t *testing.T) {
	b := NewBuilder(testCatalog())
	sel := &ast.Select{
		From: []string{"accounts"},
		Projection: []ast.Expr{
			ast.Identifier{Table: "accounts", Column: "id"},
			ast.Identifier{Table: "accounts", Column: "balance"},
		},
		Where: &ast.BinaryOperation{
			Op:    ast.OpEq,
			Left:  ast.Identifier{Table: "accounts", Column: "id"},
			Right: ast.Constant{},
		},
	}
	logical, err := b.BuildSelect(sel)
	require.NoError(t, err)

	phys, err := b.Physical(logical, 2)
	require.NoError(t, err)
	assert.Contains(t, Explain(phys), "IndexScan(accounts_id_idx")
}

func TestCoveredIndexScanWhenColumnListMatchesProjectionLength(t *testing.T) {
	b := NewBuilder(testCatalog())
	sel := &ast.Select{
		From: []string{"accounts"},
		Projection: []ast.Expr{
			ast.Identifier{Table: "accounts", Column: "id"},
		},
		Where: &ast.BinaryOperation{
			Op:    ast.OpEq,
			Left:  ast.Identifier{Table: "accounts", Column: "id"},
			Right: ast.Constant{},
		},
	}
	logical, err := b.BuildSelect(sel)
	require.NoError(t, err)

	phys, err := b.Physical(logical, 1)
	require.NoError(t, err)
	assert.Contains(t, Explain(phys), "CoveredIndexScan(accounts_id_idx")
}

func TestMultiTableFromWithoutJoinIsRejected(t *testing.T) {
	b := NewBuilder(testCatalog())
	sel := &ast.Select{
		From:       []string{"accounts", "orders"},
		Projection: []ast.Expr{ast.Star{}},
	}
	_, err := b.BuildSelect(sel)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMultiTableNoJoin)
}

func TestUnqualifiedProjectionColumnIsRejected(t *testing.T) {
	b := NewBuilder(testCatalog())
	sel := &ast.Select{
		From:       []string{"accounts"},
		Projection: []ast.Expr{ast.Identifier{Column: "id"}},
	}
	_, err := b.BuildSelect(sel)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnqualifiedColumn)
}

func TestCrossJoinPromotedToInnerOnColumnToColumnPredicate(t *testing.T) {
	b := NewBuilder(testCatalog())
	sel := &ast.Select{
		From:       []string{"accounts", "orders"},
		Projection: []ast.Expr{ast.Star{}},
		Joins: []ast.Join{
			{Type: "CROSS", Left: "accounts", Right: "orders"},
		},
		Where: &ast.BinaryOperation{
			Op:    ast.OpEq,
			Left:  ast.Identifier{Table: "accounts", Column: "id"},
			Right: ast.Identifier{Table: "orders", Column: "account_id"},
		},
	}
	logical, err := b.BuildSelect(sel)
	require.NoError(t, err)

	join, ok := logical.Children()[0].(*LogicalJoin)
	require.True(t, ok)
	assert.Equal(t, "INNER", join.Type)
	assert.NotNil(t, join.Condition)
}

func TestExplainRendersDepthFirstIndentedTree(t *testing.T) {
	b := NewBuilder(testCatalog())
	sel := &ast.Select{
		From:       []string{"accounts"},
		Projection: []ast.Expr{ast.Star{}},
		OrderBy:    []ast.OrderBy{{Column: ast.Identifier{Table: "accounts", Column: "id"}, Direction: ast.Ascending}},
	}
	logical, err := b.BuildSelect(sel)
	require.NoError(t, err)

	phys, err := b.Physical(logical, 3)
	require.NoError(t, err)

	out := Explain(phys)
	assert.Contains(t, out, "Projection")
	assert.Contains(t, out, "  Sort(id ASC)")
	assert.Contains(t, out, "    TableScan(accounts)")
}
