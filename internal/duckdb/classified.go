package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/juncclass/internal/output"
)

// ClassifiedTable is the table holding the exported classified rows.
const ClassifiedTable = "classified"

// Run describes one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	Samples    int
	Rows       int
	OutputPath string
}

func sqlType(k output.Kind) string {
	switch k {
	case output.KindInt, output.KindNullInt:
		return "BIGINT"
	case output.KindFloat:
		return "DOUBLE"
	case output.KindBool:
		return "BOOLEAN"
	}
	return "VARCHAR"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// exportColumns returns the indices of t's columns that are written out.
func exportColumns(t *output.Table) []int {
	idx := make([]int, 0, len(t.Columns))
	for i, c := range t.Columns {
		if c.Name != output.HelperColumn {
			idx = append(idx, i)
		}
	}
	return idx
}

// WriteTable replaces the classified table with the rows of t using the
// Appender API. The helper join column is not exported.
func (s *Store) WriteTable(t *output.Table) error {
	cols := exportColumns(t)
	defs := make([]string, len(cols))
	for i, j := range cols {
		c := t.Columns[j]
		defs[i] = quoteIdent(c.Name) + " " + sqlType(c.Kind)
	}

	if _, err := s.db.Exec("DROP TABLE IF EXISTS " + ClassifiedTable); err != nil {
		return fmt.Errorf("drop %s: %w", ClassifiedTable, err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", ClassifiedTable, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create %s: %w", ClassifiedTable, err)
	}
	if t.NumRows() == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", ClassifiedTable)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	values := make([]driver.Value, len(cols))
	for n, row := range t.Rows {
		for i, j := range cols {
			values[i] = row[j]
		}
		if err := appender.AppendRow(values...); err != nil {
			return fmt.Errorf("append row %d: %w", n, err)
		}
	}

	return appender.Flush()
}

// CountByChannel returns the number of exported rows per channel.
func (s *Store) CountByChannel() (map[string]int64, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT channel, count(*) FROM %s GROUP BY channel", ClassifiedTable))
	if err != nil {
		return nil, fmt.Errorf("count by channel: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var channel string
		var n int64
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, fmt.Errorf("scan channel count: %w", err)
		}
		counts[channel] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel counts: %w", err)
	}
	return counts, nil
}

// RecordRun logs a pipeline run in the runs table.
func (s *Store) RecordRun(r Run) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO runs VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, int64(r.Samples), int64(r.Rows), r.OutputPath)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the recorded runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, started_at, sample_count, row_count, output_path
		FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var samples, n int64
		if err := rows.Scan(&r.ID, &r.StartedAt, &samples, &n, &r.OutputPath); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Samples = int(samples)
		r.Rows = int(n)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
