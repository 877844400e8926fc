// Package dbtype implements the engine's tagged-union value system: the
// Value/Tuple/Key types that flow through records, B+ tree keys and the
// planner's constants. The storage layer never interprets record
// bytes itself — dbtype is what the layers above it (heap, bptree, plan) use
// to give those bytes meaning.
package dbtype

import (
	"github.com/shopspring/decimal"
)

// Kind tags the payload carried by a Value.
type Kind byte

const (
	KindNull Kind = iota
	KindInt64
	KindDecimal
	KindText
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt64:
		return "INT"
	case KindDecimal:
		return "DECIMAL"
	case KindText:
		return "TEXT"
	case KindBool:
		return "BOOL"
	default:
		return "UNKNOWN"
	}
}

// Value is a single typed column value. The zero Value is NULL.
type Value struct {
	kind Kind
	i    int64
	d    decimal.Decimal
	s    string
	b    bool
}

func Null() Value               { return Value{kind: KindNull} }
func Int64(v int64) Value       { return Value{kind: KindInt64, i: v} }
func Decimal(v decimal.Decimal) Value { return Value{kind: KindDecimal, d: v} }
func Text(v string) Value       { return Value{kind: KindText, s: v} }
func Bool(v bool) Value         { return Value{kind: KindBool, b: v} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Int() int64    { return v.i }
func (v Value) Dec() decimal.Decimal { return v.d }
func (v Value) Str() string   { return v.s }
func (v Value) Bool() bool    { return v.b }

// Compare orders NULL below every non-null value, and otherwise compares same-kind values.
// Comparing two distinct non-null kinds is an error the caller should
// treat as a logical violation (mismatched column types reaching the
// comparator is never supposed to happen once the planner has type
// checked a predicate).
func (v Value) Compare(other Value) int {
	if v.kind == KindNull && other.kind == KindNull {
		return 0
	}
	if v.kind == KindNull {
		return -1
	}
	if other.kind == KindNull {
		return 1
	}
	switch v.kind {
	case KindInt64:
		switch {
		case v.i < other.i:
			return -1
		case v.i > other.i:
			return 1
		default:
			return 0
		}
	case KindDecimal:
		return v.d.Cmp(other.d)
	case KindText:
		switch {
		case v.s < other.s:
			return -1
		case v.s > other.s:
			return 1
		default:
			return 0
		}
	case KindBool:
		if v.b == other.b {
			return 0
		}
		if !v.b {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (v Value) Equal(other Value) bool { return v.Compare(other) == 0 }

// Tuple is an ordered list of column values, e.g. a projected row or a
// composite B+ tree key's components.
type Tuple []Value

// Compare is lexicographic over the shared prefix; a shorter tuple that
// is a strict prefix of a longer one compares less.
func (t Tuple) Compare(other Tuple) int {
	for i := 0; i < len(t) && i < len(other); i++ {
		if c := t[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(t) < len(other):
		return -1
	case len(t) > len(other):
		return 1
	default:
		return 0
	}
}
