package duckdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/juncclass/internal/output"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTable() *output.Table {
	t := output.NewTable([]output.Column{
		{Name: "refName_newR1", Kind: output.KindString},
		{Name: "juncPosR1A", Kind: output.KindInt},
		{Name: "NHR1A", Kind: output.KindFloat},
		{Name: "splice_ann", Kind: output.KindBool},
		{Name: "channel", Kind: output.KindString},
		{Name: output.HelperColumn, Kind: output.KindString},
	})
	t.Rows = [][]any{
		{"R1", int64(100), 1.0, true, "lane1", "g,b"},
		{"R2", int64(200), nil, false, "lane1", "g,b"},
		{nil, int64(300), 2.0, false, "lane2", "g,b"},
	}
	return t
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Empty(t, s.Path())
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, path)
}

func TestWriteTable(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteTable(sampleTable()))

	counts, err := s.CountByChannel()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"lane1": 2, "lane2": 1}, counts)

	var nulls int64
	require.NoError(t, s.DB().QueryRow(
		`SELECT count(*) FROM classified WHERE "NHR1A" IS NULL`).Scan(&nulls))
	assert.Equal(t, int64(1), nulls)

	var spliced int64
	require.NoError(t, s.DB().QueryRow(
		`SELECT count(*) FROM classified WHERE splice_ann`).Scan(&spliced))
	assert.Equal(t, int64(1), spliced)

	var pos int64
	require.NoError(t, s.DB().QueryRow(
		`SELECT "juncPosR1A" FROM classified WHERE "refName_newR1" = 'R2'`).Scan(&pos))
	assert.Equal(t, int64(200), pos)
}

func TestWriteTable_SkipsHelperColumn(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteTable(sampleTable()))

	var n int64
	require.NoError(t, s.DB().QueryRow(
		`SELECT count(*) FROM information_schema.columns WHERE table_name = 'classified'`).Scan(&n))
	assert.Equal(t, int64(5), n)
}

func TestWriteTable_Replaces(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteTable(sampleTable()))
	require.NoError(t, s.WriteTable(sampleTable()))

	counts, err := s.CountByChannel()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["lane1"])
}

func TestWriteTable_Empty(t *testing.T) {
	s := openInMemory(t)
	tbl := sampleTable()
	tbl.Rows = nil
	require.NoError(t, s.WriteTable(tbl))

	counts, err := s.CountByChannel()
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestRecordRun(t *testing.T) {
	s := openInMemory(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.RecordRun(Run{
		ID: "run-1", StartedAt: started, Samples: 2, Rows: 3, OutputPath: "out.tsv",
	}))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.True(t, started.Equal(runs[0].StartedAt))
	assert.Equal(t, 2, runs[0].Samples)
	assert.Equal(t, 3, runs[0].Rows)
	assert.Equal(t, "out.tsv", runs[0].OutputPath)
}
