package output

import (
	"fmt"
	"math"
)

// Kind is the value type of a table column.
type Kind int

// Column kinds. Values held in a row must match their column's kind:
// KindString holds string or nil, KindInt holds int64, KindNullInt holds
// int64 or nil, KindFloat holds float64 or nil, KindBool holds bool.
const (
	KindString Kind = iota
	KindInt
	KindNullInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindNullInt:
		return "nullable int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Column names a table column and its kind.
type Column struct {
	Name string
	Kind Kind
}

// Table is an in-memory, column-typed row table.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []Column) *Table {
	return &Table{Columns: columns}
}

// Append adds a row. The row must have one value per column.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d values for %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// AddColumn appends a column with one value per existing row.
func (t *Table) AddColumn(col Column, values []any) error {
	if t.ColumnIndex(col.Name) >= 0 {
		return fmt.Errorf("column %q already exists", col.Name)
	}
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", col.Name, len(values), len(t.Rows))
	}
	t.Columns = append(t.Columns, col)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Float returns v as a float64 and whether it is non-null. NaN counts as null.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case float32:
		return Float(float64(x))
	case int64:
		return float64(x), true
	}
	return 0, false
}
