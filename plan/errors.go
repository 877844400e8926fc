package plan

import "errors"

// Sentinel errors, in the same {Op, Err}-wrapping style as page.PageError
// and buffer.PoolError.
var (
	ErrUnknownTable       = errors.New("plan: unknown table")
	ErrUnknownFunction    = errors.New("plan: unknown function")
	ErrUnqualifiedColumn  = errors.New("plan: unqualified column reference")
	ErrEmptyFrom          = errors.New("plan: empty FROM clause")
	ErrMultiTableNoJoin   = errors.New("plan: multiple FROM tables require an explicit JOIN")
	ErrMultiColumnJoin    = errors.New("plan: non-cross join with column-to-column WHERE")
)

// SQLLogicalPlanError reports any failure building or rewriting the
// logical tree.
type SQLLogicalPlanError struct {
	Op  string
	Err error
}

func (e *SQLLogicalPlanError) Error() string {
	return "plan: " + e.Op + ": " + e.Err.Error()
}
func (e *SQLLogicalPlanError) Unwrap() error { return e.Err }

func logicalErr(op string, err error) error {
	return &SQLLogicalPlanError{Op: op, Err: err}
}

// NotImplementedError reports a deliberately-restricted feature: multi-
// column predicates, multiple aggregates, or a non-cross join paired
// with a column-to-column WHERE predicate.
type NotImplementedError struct {
	Feature string
}

func (e *NotImplementedError) Error() string {
	return "plan: not implemented: " + e.Feature
}

func notImplemented(feature string) error {
	return &NotImplementedError{Feature: feature}
}
