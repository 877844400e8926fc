package plan

import (
	"fmt"

	"github.com/zhukovaskychina/reldb-core/ast"
	"github.com/zhukovaskychina/reldb-core/catalog"
)

// PhysicalPlan is one executor operator in the physical tree.
type PhysicalPlan interface {
	Children() []PhysicalPlan
	String() string
}

// BasePhysicalPlan is embedded by every concrete physical node.
type BasePhysicalPlan struct {
	children []PhysicalPlan
}

func (p *BasePhysicalPlan) Children() []PhysicalPlan { return p.children }

// TableScan is a full sequential scan with an optional pushed-down
// filter condition.
type TableScan struct {
	BasePhysicalPlan
	Table     string
	Condition *ast.BinaryOperation
}

func (s *TableScan) String() string {
	if s.Condition == nil {
		return fmt.Sprintf("TableScan(%s)", s.Table)
	}
	return fmt.Sprintf("TableScan(%s, %s)", s.Table, conditionString(s.Condition))
}

// IndexScan fetches matching locations via index, then the base table.
type IndexScan struct {
	BasePhysicalPlan
	Index     catalog.IndexInfo
	Condition *ast.BinaryOperation
}

func (s *IndexScan) String() string {
	return fmt.Sprintf("IndexScan(%s, %s)", s.Index.Name, conditionString(s.Condition))
}

// CoveredIndexScan answers entirely from the index, without a table
// fetch, because the index's column list matches the projection length.
type CoveredIndexScan struct {
	BasePhysicalPlan
	Index     catalog.IndexInfo
	Condition *ast.BinaryOperation
}

func (s *CoveredIndexScan) String() string {
	return fmt.Sprintf("CoveredIndexScan(%s, %s)", s.Index.Name, conditionString(s.Condition))
}

// LocationScan is the access path of the underlying table returning
// locations rather than tuples, wrapped by PhysicalUpdate/PhysicalDelete.
type LocationScan struct {
	BasePhysicalPlan
	Access PhysicalPlan
}

func (s *LocationScan) String() string { return fmt.Sprintf("LocationScan(%s)", s.Access) }

type Filter struct {
	BasePhysicalPlan
	Condition *ast.BinaryOperation
}

func (f *Filter) String() string { return fmt.Sprintf("Filter(%s)", conditionString(f.Condition)) }

type Join struct {
	BasePhysicalPlan
	Type      string
	Condition *ast.BinaryOperation
}

func (j *Join) String() string { return fmt.Sprintf("Join(%s)", j.Type) }

type Sort struct {
	BasePhysicalPlan
	Column ast.Identifier
	Asc    bool
}

func (s *Sort) String() string {
	dir := ast.Descending
	if s.Asc {
		dir = ast.Ascending
	}
	return fmt.Sprintf("Sort(%s %s)", s.Column.Column, dir)
}

type Group struct {
	BasePhysicalPlan
	GroupCol ast.Identifier
	AggFunc  string
	AggArg   ast.Identifier
}

func (g *Group) String() string {
	return fmt.Sprintf("Group(%s, %s(%s))", g.GroupCol.Column, g.AggFunc, g.AggArg.Column)
}

type Projection struct {
	BasePhysicalPlan
	Exprs []ast.Expr
}

func (*Projection) String() string { return "Projection" }

// PhysicalUpdate wraps a LocationScan, applying Set to every returned
// location.
type PhysicalUpdate struct {
	BasePhysicalPlan
	Set map[string]ast.Expr
}

func (*PhysicalUpdate) String() string { return "Update" }

// PhysicalDelete wraps a LocationScan, deleting every returned location.
type PhysicalDelete struct {
	BasePhysicalPlan
}

func (*PhysicalDelete) String() string { return "Delete" }

func conditionString(c *ast.BinaryOperation) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s %s %s", exprString(c.Left), c.Op, exprString(c.Right))
}

func exprString(e ast.Expr) string {
	switch v := e.(type) {
	case ast.Identifier:
		return v.Table + "." + v.Column
	case ast.Constant:
		return fmt.Sprintf("%v", v.Value)
	default:
		return fmt.Sprintf("%v", e)
	}
}

// Physical turns the rewritten logical tree into a physical tree,
// applying access-path selection at every Scan.
func (b *Builder) Physical(node LogicalPlan, projectedCols int) (PhysicalPlan, error) {
	switch n := node.(type) {
	case *LogicalScan:
		return b.selectAccessPath(n, projectedCols)

	case *LogicalJoin:
		children, err := b.physicalChildren(n.Children(), projectedCols)
		if err != nil {
			return nil, err
		}
		return &Join{BasePhysicalPlan: BasePhysicalPlan{children: children}, Type: n.Type, Condition: n.Condition}, nil

	case *LogicalFilter:
		child, err := b.Physical(n.Children()[0], projectedCols)
		if err != nil {
			return nil, err
		}
		return &Filter{BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{child}}, Condition: n.Condition}, nil

	case *LogicalSort:
		child, err := b.Physical(n.Children()[0], projectedCols)
		if err != nil {
			return nil, err
		}
		return &Sort{BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{child}}, Column: n.Column, Asc: n.Asc}, nil

	case *LogicalGroup:
		child, err := b.Physical(n.Children()[0], projectedCols)
		if err != nil {
			return nil, err
		}
		return &Group{
			BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{child}},
			GroupCol:         n.GroupCol,
			AggFunc:          n.AggFunc,
			AggArg:           n.AggArg,
		}, nil

	case *LogicalProjection:
		child, err := b.Physical(n.Children()[0], len(n.Exprs))
		if err != nil {
			return nil, err
		}
		return &Projection{BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{child}}, Exprs: n.Exprs}, nil
	}
	return nil, logicalErr("physical", fmt.Errorf("unhandled logical node %T", node))
}

func (b *Builder) physicalChildren(children []LogicalPlan, projectedCols int) ([]PhysicalPlan, error) {
	out := make([]PhysicalPlan, 0, len(children))
	for _, c := range children {
		p, err := b.Physical(c, projectedCols)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// selectAccessPath implements the four-step access-path algorithm.
func (b *Builder) selectAccessPath(scan *LogicalScan, projectedCols int) (PhysicalPlan, error) {
	if scan.Condition == nil {
		return &TableScan{Table: scan.Table}, nil
	}

	col, ok := conditionColumn(scan.Condition, scan.Table)
	if !ok {
		return &TableScan{Table: scan.Table, Condition: scan.Condition}, nil
	}

	var candidates []catalog.IndexInfo
	for _, ix := range b.cat.IndexesForTable(scan.Table) {
		if len(ix.Columns) > 0 && ix.Columns[0] == col {
			candidates = append(candidates, ix)
		}
	}
	if len(candidates) == 0 {
		return &TableScan{Table: scan.Table, Condition: scan.Condition}, nil
	}

	for _, ix := range candidates {
		if len(ix.Columns) == projectedCols {
			return &CoveredIndexScan{Index: ix, Condition: scan.Condition}, nil
		}
	}

	best := candidates[0]
	for _, ix := range candidates[1:] {
		if len(ix.Columns) < len(best.Columns) {
			best = ix
		}
	}
	return &IndexScan{Index: best, Condition: scan.Condition}, nil
}

// conditionColumn returns the column name of whichever side of cond is a
// TableColumn identifier belonging to table.
func conditionColumn(cond *ast.BinaryOperation, table string) (string, bool) {
	if id, ok := cond.Left.(ast.Identifier); ok && id.Table == table {
		return id.Column, true
	}
	if id, ok := cond.Right.(ast.Identifier); ok && id.Table == table {
		return id.Column, true
	}
	return "", false
}

// BuildPhysicalUpdate wraps access's location-returning form in
// PhysicalUpdate.
func BuildPhysicalUpdate(access PhysicalPlan, set map[string]ast.Expr) *PhysicalUpdate {
	scan := &LocationScan{BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{access}}, Access: access}
	return &PhysicalUpdate{BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{scan}}, Set: set}
}

// BuildPhysicalDelete wraps access's location-returning form in
// PhysicalDelete.
func BuildPhysicalDelete(access PhysicalPlan) *PhysicalDelete {
	scan := &LocationScan{BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{access}}, Access: access}
	return &PhysicalDelete{BasePhysicalPlan: BasePhysicalPlan{children: []PhysicalPlan{scan}}}
}
