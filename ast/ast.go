// Package ast defines the statement and expression node types the
// planner consumes. The parser that produces them is an external
// collaborator — this package exists only to give the planner (and the
// demo command) a concrete, parser-shaped input to build against.
package ast

import "github.com/zhukovaskychina/reldb-core/dbtype"

// Expr is any expression node usable on either side of a predicate or in
// a projection list.
type Expr interface {
	isExpr()
}

// Identifier is a qualified column reference, table.column.
type Identifier struct {
	Table  string
	Column string
}

func (Identifier) isExpr() {}

// Constant wraps a literal value.
type Constant struct {
	Value dbtype.Value
}

func (Constant) isExpr() {}

// Star represents the unqualified "*" projection item, expanded per-scan
// by the planner.
type Star struct{}

func (Star) isExpr() {}

// Comparison and boolean operators the planner understands:
// lower-case strings only.
const (
	OpEq    = "="
	OpNe    = "!="
	OpGt    = ">"
	OpGe    = ">="
	OpLt    = "<"
	OpLe    = "<="
	OpAnd   = "and"
	OpOr    = "or"
	OpNot   = "not"
)

// BinaryOperation is a two-operand expression: a comparison (used as a
// WHERE/JOIN condition) or a boolean combination.
type BinaryOperation struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryOperation) isExpr() {}

// FunctionOperation is a function call in a projection list; Name must
// name a known aggregate for the planner's projection resolution to
// accept it.
type FunctionOperation struct {
	Name string
	Args []Expr
}

func (*FunctionOperation) isExpr() {}

// Order-by direction strings.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// OrderBy is one ORDER BY item.
type OrderBy struct {
	Column    Identifier
	Direction string
}

// Join is one explicit JOIN clause between two named tables.
type Join struct {
	Type      string // e.g. "CROSS", "INNER"
	Left      string
	Right     string
	Condition *BinaryOperation
}

// GroupBy is a single grouping column with exactly one aggregate over
// exactly one argument column.
type GroupBy struct {
	Column  Identifier
	AggFunc string
	AggArg  Identifier
}

// Select is a SELECT statement's parsed shape.
type Select struct {
	From       []string
	Projection []Expr
	Where      *BinaryOperation
	Joins      []Join
	OrderBy    []OrderBy
	GroupBy    *GroupBy
}

// ColumnDef is one column in a CREATE TABLE statement.
type ColumnDef struct {
	Name string
	Type string
}

// Insert is an INSERT statement.
type Insert struct {
	Table   string
	Columns []string
	Values  []dbtype.Value
}

// Update is an UPDATE statement.
type Update struct {
	Table string
	Set   map[string]dbtype.Value
	Where *BinaryOperation
}

// Delete is a DELETE statement.
type Delete struct {
	Table string
	Where *BinaryOperation
}

// CreateTable is a CREATE TABLE statement.
type CreateTable struct {
	Table   string
	Columns []ColumnDef
}

// CreateIndex is a CREATE INDEX statement.
type CreateIndex struct {
	Index   string
	Table   string
	Columns []string
}

// Command is a small administrative statement (e.g. CHECKPOINT) with no
// further structure.
type Command struct {
	Name string
	Args []string
}
