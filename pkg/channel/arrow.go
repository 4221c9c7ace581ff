package channel

import (
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// recordsToTable converts Arrow batches sharing schema into a table. A nil
// schema falls back to the first batch's, then to fallback column names.
func recordsToTable(schema *arrow.Schema, records []arrow.Record, fallback []string) *table.Table {
	if schema == nil && len(records) > 0 {
		schema = records[0].Schema()
	}
	if schema == nil {
		return table.New(fallback...)
	}
	cols := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = f.Name
	}

	t := table.New(cols...)
	for _, rec := range records {
		for r := 0; r < int(rec.NumRows()); r++ {
			row := make([]any, len(cols))
			for c := range cols {
				row[c] = arrowValue(rec.Column(c), r)
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// arrowValue returns element i of arr as a plain Go value, matching what the
// Bolt driver yields for the same Cypher type.
func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Dictionary:
		return arrowValue(a.Dictionary(), a.GetValueIndex(i))
	case *array.List:
		start, end := a.ValueOffsets(i)
		return listValues(a.ListValues(), int(start), int(end))
	case *array.LargeList:
		start, end := a.ValueOffsets(i)
		return listValues(a.ListValues(), int(start), int(end))
	case *array.FixedSizeList:
		n := int(a.DataType().(*arrow.FixedSizeListType).Len())
		return listValues(a.ListValues(), i*n, (i+1)*n)
	}
	return arr.GetOneForMarshal(i)
}

func listValues(values arrow.Array, start, end int) []any {
	out := make([]any, 0, end-start)
	for j := start; j < end; j++ {
		out = append(out, arrowValue(values, j))
	}
	return out
}

// idColumns are the columns that identify an entity in property streams.
var idColumns = []string{"nodeId", "nodeLabels", "sourceNodeId", "targetNodeId", "relationshipType"}

// melt turns a wide property table (one column per property) into the long
// form produced by the Cypher procedures: one row per entity and property,
// with the property name in nameCol and its value in "propertyValue".
// Properties are emitted in the order of props when given.
func melt(t *table.Table, nameCol string, props []string) *table.Table {
	var ids, propIdx []int
	var propNames []string
	for i, c := range t.Columns {
		if slices.Contains(idColumns, c) {
			ids = append(ids, i)
		}
	}
	if len(props) == 0 {
		for _, c := range t.Columns {
			if !slices.Contains(idColumns, c) {
				props = append(props, c)
			}
		}
	}
	for _, p := range props {
		if i := t.Index(p); i >= 0 {
			propIdx = append(propIdx, i)
			propNames = append(propNames, p)
		}
	}

	var cols []string
	for _, i := range ids {
		if t.Columns[i] != "nodeLabels" {
			cols = append(cols, t.Columns[i])
		}
	}
	cols = append(cols, nameCol, "propertyValue")
	labelIdx := t.Index("nodeLabels")
	if labelIdx >= 0 {
		cols = append(cols, "nodeLabels")
	}

	out := table.New(cols...)
	for _, row := range t.Rows {
		for k, pi := range propIdx {
			r := make([]any, 0, len(cols))
			for _, i := range ids {
				if i != labelIdx {
					r = append(r, row[i])
				}
			}
			r = append(r, propNames[k], row[pi])
			if labelIdx >= 0 {
				r = append(r, row[labelIdx])
			}
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// renameValue renames the single property column of t to "propertyValue".
func renameValue(t *table.Table) *table.Table {
	out := &table.Table{Columns: slices.Clone(t.Columns), Rows: t.Rows}
	for i, c := range out.Columns {
		if !slices.Contains(idColumns, c) {
			out.Columns[i] = "propertyValue"
			break
		}
	}
	return out
}
