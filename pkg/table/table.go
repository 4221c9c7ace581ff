// Package table defines the tabular result returned by every execution
// channel. Both the query channel and the bulk channel produce a [Table] with
// the same column set for the same procedure, so callers above the channel
// layer never need to know which protocol served a call.
package table

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Table is an ordered set of named columns and the rows beneath them.
// Rows[i][j] is the value of Columns[j] in row i.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: columns, Rows: [][]any{}}
}

// FromRecords builds a table from row maps using columns as the column order.
func FromRecords(columns []string, records []map[string]any) *Table {
	t := New(columns...)
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = rec[c]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Append adds a row. It panics if the row width does not match the columns.
func (t *Table) Append(values ...any) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("table: row has %d values, want %d", len(values), len(t.Columns)))
	}
	t.Rows = append(t.Rows, values)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// Column returns all values of the named column, or false if absent.
func (t *Table) Column(name string) ([]any, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Value returns the value of column name in row r.
func (t *Table) Value(r int, name string) (any, bool) {
	i := t.Index(name)
	if i < 0 || r < 0 || r >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[r][i], true
}

// Records returns the rows as column-name keyed maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for r, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c] = row[i]
		}
		out[r] = rec
	}
	return out
}

// SameSchema reports whether t and o expose the same column set, ignoring
// order.
func (t *Table) SameSchema(o *Table) bool {
	if len(t.Columns) != len(o.Columns) {
		return false
	}
	a := slices.Clone(t.Columns)
	b := slices.Clone(o.Columns)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// MarshalJSON encodes a nil row slice as an empty array.
func (t *Table) MarshalJSON() ([]byte, error) {
	type alias Table
	out := alias(*t)
	if out.Rows == nil {
		out.Rows = [][]any{}
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	return json.Marshal(out)
}
