// Package plan implements the rule-based planner: logical tree
// construction, a root-down rewrite pass, and physical access-path
// selection. There is no cost estimation, statistics collection, or
// query decorrelation/parallelization — the planner here is rule-based,
// not cost-based.
package plan

import (
	"fmt"

	"github.com/zhukovaskychina/reldb-core/ast"
	"github.com/zhukovaskychina/reldb-core/catalog"
)

// LogicalPlan is one node of the logical tree; BaseLogicalPlan is
// embedded by every concrete node to supply the Children()/SetChildren()
// plumbing.
type LogicalPlan interface {
	Children() []LogicalPlan
	SetChildren(children []LogicalPlan)
	String() string
}

// BaseLogicalPlan is embedded by every concrete logical node.
type BaseLogicalPlan struct {
	children []LogicalPlan
}

func (p *BaseLogicalPlan) Children() []LogicalPlan { return p.children }
func (p *BaseLogicalPlan) SetChildren(c []LogicalPlan) { p.children = c }

// LogicalScan is a single-table scan, optionally carrying a pushed-down
// condition after rewrite.
type LogicalScan struct {
	BaseLogicalPlan
	Table     string
	Condition *ast.BinaryOperation
}

func (s *LogicalScan) String() string { return fmt.Sprintf("Scan(%s)", s.Table) }

// LogicalJoin is a two-table join, Type starting as whatever the AST's
// explicit JOIN names (an implicit multi-table FROM is rejected).
type LogicalJoin struct {
	BaseLogicalPlan
	Type      string
	Left      string
	Right     string
	Condition *ast.BinaryOperation
}

func (j *LogicalJoin) String() string { return fmt.Sprintf("Join(%s)", j.Type) }

// LogicalFilter holds the single WHERE Condition before rewrite folds it
// into a join or scan condition slot.
type LogicalFilter struct {
	BaseLogicalPlan
	Condition *ast.BinaryOperation
}

func (*LogicalFilter) String() string { return "Filter" }

// LogicalSort is one ORDER BY column.
type LogicalSort struct {
	BaseLogicalPlan
	Column ast.Identifier
	Asc    bool
}

func (s *LogicalSort) String() string { return fmt.Sprintf("Sort(%s)", s.Column.Column) }

// LogicalGroup is GROUP BY with exactly one aggregate over one argument.
type LogicalGroup struct {
	BaseLogicalPlan
	GroupCol ast.Identifier
	AggFunc  string
	AggArg   ast.Identifier
}

func (g *LogicalGroup) String() string {
	return fmt.Sprintf("Group(%s, %s(%s))", g.GroupCol.Column, g.AggFunc, g.AggArg.Column)
}

// LogicalProjection is the top-level SELECT list.
type LogicalProjection struct {
	BaseLogicalPlan
	Exprs []ast.Expr
}

func (*LogicalProjection) String() string { return "Projection" }

// Builder constructs and rewrites the logical tree against cat.
type Builder struct {
	cat *catalog.Catalog
}

func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{cat: cat}
}

// BuildSelect runs logical construction followed by the root-down
// rewrite pass, returning a tree ready for physical planning.
func (b *Builder) BuildSelect(sel *ast.Select) (LogicalPlan, error) {
	from, err := b.buildFrom(sel)
	if err != nil {
		return nil, err
	}

	var filter *LogicalFilter
	if sel.Where != nil {
		filter = &LogicalFilter{
			BaseLogicalPlan: BaseLogicalPlan{children: []LogicalPlan{from}},
			Condition:       sel.Where,
		}
	}

	projected, err := b.resolveProjection(sel.Projection, sel.From)
	if err != nil {
		return nil, err
	}

	var top LogicalPlan = from
	if filter != nil {
		top = filter
	}
	top, err = b.rewriteFilter(top)
	if err != nil {
		return nil, err
	}

	if len(sel.OrderBy) > 0 {
		ob := sel.OrderBy[0]
		top = &LogicalSort{
			BaseLogicalPlan: BaseLogicalPlan{children: []LogicalPlan{top}},
			Column:          ob.Column,
			Asc:             ob.Direction != ast.Descending,
		}
	}

	if sel.GroupBy != nil {
		top = &LogicalGroup{
			BaseLogicalPlan: BaseLogicalPlan{children: []LogicalPlan{top}},
			GroupCol:        sel.GroupBy.Column,
			AggFunc:         sel.GroupBy.AggFunc,
			AggArg:          sel.GroupBy.AggArg,
		}
	}

	proj := &LogicalProjection{
		BaseLogicalPlan: BaseLogicalPlan{children: []LogicalPlan{top}},
		Exprs:           projected,
	}
	return proj, nil
}

// buildFrom resolves FROM into a Scan or, when an explicit JOIN clause is
// present, a Join of two Scans. A join-less multi-table FROM is rejected
// with ErrMultiTableNoJoin.
func (b *Builder) buildFrom(sel *ast.Select) (LogicalPlan, error) {
	if len(sel.From) == 0 {
		return nil, logicalErr("build_from", ErrEmptyFrom)
	}
	for _, name := range sel.From {
		if _, ok := b.cat.TableByName(name); !ok {
			return nil, logicalErr("build_from", ErrUnknownTable)
		}
	}

	if len(sel.Joins) == 0 {
		if len(sel.From) != 1 {
			return nil, logicalErr("build_from", ErrMultiTableNoJoin)
		}
		return &LogicalScan{Table: sel.From[0]}, nil
	}

	j := sel.Joins[0]
	left := &LogicalScan{Table: j.Left}
	right := &LogicalScan{Table: j.Right}
	return &LogicalJoin{
		BaseLogicalPlan: BaseLogicalPlan{children: []LogicalPlan{left, right}},
		Type:            j.Type,
		Left:            j.Left,
		Right:           j.Right,
		Condition:       j.Condition,
	}, nil
}

// resolveProjection expands Star into one qualified Identifier per
// column of every scanned table, and requires every explicit Identifier
// be qualified and every FunctionOperation name an aggregate known to
// the catalog. More than one aggregate is rejected with
// NotImplementedError.
func (b *Builder) resolveProjection(exprs []ast.Expr, tables []string) ([]ast.Expr, error) {
	var out []ast.Expr
	aggregates := 0
	for _, e := range exprs {
		switch v := e.(type) {
		case ast.Star:
			for _, tableName := range tables {
				table, ok := b.cat.TableByName(tableName)
				if !ok {
					return nil, logicalErr("resolve_projection", ErrUnknownTable)
				}
				for _, col := range table.Columns {
					out = append(out, ast.Identifier{Table: tableName, Column: col})
				}
			}
		case ast.Identifier:
			if v.Table == "" {
				return nil, logicalErr("resolve_projection", ErrUnqualifiedColumn)
			}
			out = append(out, v)
		case *ast.FunctionOperation:
			fn, ok := b.cat.FunctionByName(v.Name)
			if !ok || !fn.IsAggregate {
				return nil, logicalErr("resolve_projection", ErrUnknownFunction)
			}
			aggregates++
			if aggregates > 1 {
				return nil, notImplemented("multiple aggregates")
			}
			out = append(out, v)
		default:
			out = append(out, v)
		}
	}
	return out, nil
}

// rewriteFilter folds a WHERE condition into a join or scan via one of
// three rewrite cases, or strips the no-op Filter for a constant-only
// predicate. A condition with a nested operation on either side (a
// multi-column predicate) is rejected with NotImplementedError.
func (b *Builder) rewriteFilter(node LogicalPlan) (LogicalPlan, error) {
	filter, ok := node.(*LogicalFilter)
	if !ok {
		return node, nil
	}
	cond := filter.Condition
	child := filter.Children()[0]

	if _, nested := cond.Left.(*ast.BinaryOperation); nested {
		return nil, notImplemented("multi-column predicate")
	}
	if _, nested := cond.Right.(*ast.BinaryOperation); nested {
		return nil, notImplemented("multi-column predicate")
	}

	_, leftIsCol := cond.Left.(ast.Identifier)
	_, rightIsCol := cond.Right.(ast.Identifier)

	switch c := child.(type) {
	case *LogicalJoin:
		if leftIsCol && rightIsCol {
			if c.Type != "CROSS" {
				return nil, notImplemented("non-cross join with column-to-column WHERE")
			}
			c.Type = "INNER"
			c.Condition = cond
			return c, nil
		}
		if leftIsCol || rightIsCol {
			// One side is a constant: still a join-level filter, attach as-is.
			c.Condition = cond
			return c, nil
		}
		// Constant-only predicate: no-op hook, left unattached.
		return c, nil

	case *LogicalScan:
		if leftIsCol || rightIsCol {
			c.Condition = cond
			return c, nil
		}
		return c, nil
	}
	return filter, nil
}
