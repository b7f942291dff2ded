// Package metadata loads per-cell metadata tables and joins them onto
// classified records by cell key.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/inodb/juncclass/internal/gzio"
)

// CellColumn is the join key shared by metadata and classified tables.
const CellColumn = "cell"

// ErrDuplicateCell is returned when a metadata table lists a cell twice.
var ErrDuplicateCell = errors.New("duplicate cell in metadata")

// Table maps cell keys to metadata values.
type Table struct {
	columns []string
	byCell  map[string][]string
}

// Load reads a tab-separated metadata file with a header row containing a
// "cell" column. Every column is read as a string.
func Load(path string) (*Table, error) {
	rc, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer rc.Close()

	t, err := Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse reads a metadata table from r. A table with a header and no rows is
// valid and matches no cell.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var records [][]string
	if header, ok := headerOnly(data); ok {
		records = [][]string{header}
	} else {
		df := dataframe.ReadCSV(bytes.NewReader(data),
			dataframe.WithDelimiter('\t'),
			dataframe.WithLazyQuotes(true),
			dataframe.HasHeader(true),
			dataframe.DetectTypes(false),
			dataframe.DefaultType(series.String),
		)
		if df.Err != nil {
			return nil, fmt.Errorf("parse metadata: %w", df.Err)
		}
		records = df.Records()
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("parse metadata: no header")
	}
	header := records[0]

	cellIdx := -1
	for i, name := range header {
		if name == CellColumn {
			cellIdx = i
		}
	}
	if cellIdx < 0 {
		return nil, fmt.Errorf("parse metadata: required column %q not found", CellColumn)
	}

	t := &Table{byCell: make(map[string][]string, len(records)-1)}
	for i, name := range header {
		if i != cellIdx {
			t.columns = append(t.columns, name)
		}
	}

	for _, rec := range records[1:] {
		cell := rec[cellIdx]
		if _, dup := t.byCell[cell]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCell, cell)
		}
		values := make([]string, 0, len(t.columns))
		for i, v := range rec {
			if i == cellIdx {
				continue
			}
			if v == "NaN" {
				v = ""
			}
			values = append(values, v)
		}
		t.byCell[cell] = values
	}
	return t, nil
}

// headerOnly returns the header fields of data when nothing but blank lines
// follows the header line.
func headerOnly(data []byte) ([]string, bool) {
	line, rest, _ := bytes.Cut(data, []byte("\n"))
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 || len(bytes.TrimSpace(rest)) > 0 {
		return nil, false
	}
	return strings.Split(string(line), "\t"), true
}

// Columns returns the metadata column names in file order, without "cell".
func (t *Table) Columns() []string {
	return t.columns
}

// Len returns the number of cells.
func (t *Table) Len() int {
	return len(t.byCell)
}

// Lookup returns the metadata values for cell, aligned with Columns.
func (t *Table) Lookup(cell string) ([]string, bool) {
	v, ok := t.byCell[cell]
	return v, ok
}
