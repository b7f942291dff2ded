// Package output provides the classified-table model, the cross-sample
// aggregator and the tab-separated writer.
package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// TabWriter writes a Table in tab-delimited format without a row index.
// The HelperColumn is skipped.
type TabWriter struct {
	w       *bufio.Writer
	columns []Column
	keep    []int
}

// NewTabWriter creates a new tab-delimited writer for the given columns.
func NewTabWriter(w io.Writer, columns []Column) *TabWriter {
	tw := &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
	for i, c := range columns {
		if c.Name != HelperColumn {
			tw.keep = append(tw.keep, i)
		}
	}
	return tw
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	names := make([]string, len(tw.keep))
	for i, j := range tw.keep {
		names[i] = tw.columns[j].Name
	}
	_, err := tw.w.WriteString(strings.Join(names, "\t") + "\n")
	return err
}

// Write writes a single row.
func (tw *TabWriter) Write(row []any) error {
	if len(row) != len(tw.columns) {
		return fmt.Errorf("row has %d values for %d columns", len(row), len(tw.columns))
	}
	values := make([]string, len(tw.keep))
	for i, j := range tw.keep {
		values[i] = FormatValue(tw.columns[j].Kind, row[j])
	}
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// WriteTable writes the header and every row of t to w.
func WriteTable(w io.Writer, t *Table) error {
	tw := NewTabWriter(w, t.Columns)
	if err := tw.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := tw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return tw.Flush()
}

// FormatValue renders a cell. Nulls are empty, booleans are True/False and
// floats use the shortest representation with a trailing ".0" when integral.
func FormatValue(kind Kind, v any) string {
	if v == nil {
		return ""
	}
	switch kind {
	case KindBool:
		if b, ok := v.(bool); ok && b {
			return "True"
		}
		return "False"
	case KindFloat:
		f, ok := Float(v)
		if !ok {
			return ""
		}
		return formatFloat(f)
	}

	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case bool:
		return FormatValue(KindBool, x)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
