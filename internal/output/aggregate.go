package output

import (
	"errors"
	"fmt"
	"strings"
)

// HelperColumn is the join-key column added by the genome count merger.
// It is never written to the output.
const HelperColumn = "cell_gene_test"

// ErrNoTables is returned when the aggregator has nothing to concatenate.
var ErrNoTables = errors.New("no classified tables to aggregate")

// SchemaMismatchError reports a table whose columns differ from the first
// table added to an Aggregator.
type SchemaMismatchError struct {
	Table    string
	Expected []Column
	Got      []Column
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: expected columns [%s], got [%s]",
		e.Table, describe(e.Expected), describe(e.Got))
}

func describe(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + ":" + c.Kind.String()
	}
	return strings.Join(parts, " ")
}

// Aggregator concatenates per-sample classified tables that share one schema.
type Aggregator struct {
	columns []Column
	rows    [][]any
	tables  int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends the rows of t. The first table fixes the schema; every later
// table must match it exactly in names, order and kinds.
func (a *Aggregator) Add(name string, t *Table) error {
	if a.tables == 0 {
		a.columns = append([]Column(nil), t.Columns...)
	} else if !sameColumns(a.columns, t.Columns) {
		return &SchemaMismatchError{Table: name, Expected: a.columns, Got: t.Columns}
	}
	a.rows = append(a.rows, t.Rows...)
	a.tables++
	return nil
}

// Tables returns the number of tables added.
func (a *Aggregator) Tables() int {
	return a.tables
}

// Result returns the concatenated table with nullable-int columns converted
// to float columns.
func (a *Aggregator) Result() (*Table, error) {
	if a.tables == 0 {
		return nil, ErrNoTables
	}
	t := &Table{Columns: append([]Column(nil), a.columns...), Rows: a.rows}
	NormalizeNullableInts(t)
	return t, nil
}

// NormalizeNullableInts converts every KindNullInt column of t to KindFloat
// in place, so null-bearing integer columns serialize like float columns.
func NormalizeNullableInts(t *Table) {
	for j, c := range t.Columns {
		if c.Kind != KindNullInt {
			continue
		}
		t.Columns[j].Kind = KindFloat
		for _, row := range t.Rows {
			if n, ok := row[j].(int64); ok {
				row[j] = float64(n)
			} else {
				row[j] = nil
			}
		}
	}
}

func sameColumns(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
