// Package catalog is a minimal in-memory catalog: one row per table
// (table_name, columns), per index (index_name, table_name, columns),
// and per function (function_name, is_aggregate). Persistence, DDL, and
// statistics are out of scope — this exists only to let the planner and
// the demo command exercise the full pipeline.
package catalog

// TableInfo describes one table's name and column list.
type TableInfo struct {
	Name    string
	Columns []string
}

// IndexInfo describes one index: its name, owning table, and ordered
// column list — leading columns matter for left-prefix matching during
// access-path selection.
type IndexInfo struct {
	Name    string
	Table   string
	Columns []string
}

// FunctionInfo describes one known function, aggregate or not.
type FunctionInfo struct {
	Name        string
	IsAggregate bool
}

// Catalog is a thin in-memory registry; it has no persistence and does
// no validation beyond exact-name lookup.
type Catalog struct {
	tables    []TableInfo
	indexes   []IndexInfo
	functions []FunctionInfo
}

func New() *Catalog {
	return &Catalog{}
}

func (c *Catalog) AddTable(t TableInfo) { c.tables = append(c.tables, t) }

func (c *Catalog) AddIndex(ix IndexInfo) { c.indexes = append(c.indexes, ix) }

func (c *Catalog) AddFunction(f FunctionInfo) { c.functions = append(c.functions, f) }

// Tables returns every registered table.
func (c *Catalog) Tables() []TableInfo { return c.tables }

// Indexes returns every registered index.
func (c *Catalog) Indexes() []IndexInfo { return c.indexes }

// Functions returns every registered function.
func (c *Catalog) Functions() []FunctionInfo { return c.functions }

// TableByName returns the table named name, or false if unknown.
func (c *Catalog) TableByName(name string) (TableInfo, bool) {
	for _, t := range c.tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableInfo{}, false
}

// IndexesForTable returns every index defined on table, in registration
// order.
func (c *Catalog) IndexesForTable(table string) []IndexInfo {
	var out []IndexInfo
	for _, ix := range c.indexes {
		if ix.Table == table {
			out = append(out, ix)
		}
	}
	return out
}

// FunctionByName returns the function named name, or false if unknown.
func (c *Catalog) FunctionByName(name string) (FunctionInfo, bool) {
	for _, f := range c.functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionInfo{}, false
}
