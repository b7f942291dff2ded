// Package genomecounts joins per-lane gene-level expression counts onto
// classified junction tables.
package genomecounts

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"

	"github.com/inodb/juncclass/internal/gtf"
	"github.com/inodb/juncclass/internal/gzio"
	"github.com/inodb/juncclass/internal/output"
)

// Count table layout.
const (
	CountsFile = "counts.tsv.gz"
	ColGene    = "gene"
	ColCell    = "cell"
	ColCount   = "count"
)

// ColGenomeCounts is the column added to classified tables.
const ColGenomeCounts = "genom_gene_counts"

// Columns of the classified table read by the merger.
const (
	colGene    = "geneR1A_uniq"
	colBarcode = "barcode"
	colChannel = "channel"
)

// Key identifies a gene in a cell.
type Key struct {
	Gene string
	Cell string
}

// Counts maps (gene name, cell) to a summed count.
type Counts map[Key]float64

// Merger sums per-lane gene counts and joins them onto classified rows.
type Merger struct {
	dir    string
	names  gtf.GeneNames
	logger *zap.Logger
}

// NewMerger creates a merger reading <dir>/<lane>/counts.tsv.gz and naming
// genes through names.
func NewMerger(dir string, names gtf.GeneNames) *Merger {
	return &Merger{
		dir:    dir,
		names:  names,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for skipped lanes.
func (m *Merger) SetLogger(l *zap.Logger) {
	m.logger = l
}

// LanePath returns the count file path of lane.
func (m *Merger) LanePath(lane string) string {
	return filepath.Join(m.dir, lane, CountsFile)
}

// LoadLane reads one lane's count file and sums counts per (gene name, cell).
// Genes without a name are dropped.
func (m *Merger) LoadLane(lane string) (Counts, error) {
	rc, err := gzio.Open(m.LanePath(lane))
	if err != nil {
		return nil, fmt.Errorf("open counts for lane %s: %w", lane, err)
	}
	defer rc.Close()

	counts, err := m.parse(rc)
	if err != nil {
		return nil, fmt.Errorf("lane %s: %w", lane, err)
	}
	return counts, nil
}

func (m *Merger) parse(r io.Reader) (Counts, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read counts: %w", err)
	}
	if header, ok := headerOnly(data); ok {
		for _, name := range []string{ColGene, ColCell, ColCount} {
			if !slices.Contains(header, name) {
				return nil, fmt.Errorf("parse counts: required column %q not found", name)
			}
		}
		return Counts{}, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.WithDelimiter('\t'),
		dataframe.WithLazyQuotes(true),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse counts: %w", df.Err)
	}

	cols := make(map[string]series.Series, 3)
	for _, name := range []string{ColGene, ColCell, ColCount} {
		s := df.Col(name)
		if s.Err != nil {
			return nil, fmt.Errorf("parse counts: required column %q not found", name)
		}
		cols[name] = s
	}

	genes := cols[ColGene].Records()
	cells := cols[ColCell].Records()
	values := cols[ColCount].Float()

	counts := make(Counts, len(genes))
	for i, id := range genes {
		name, ok := m.names.Lookup(id)
		if !ok {
			continue
		}
		v := values[i]
		if math.IsNaN(v) {
			return nil, fmt.Errorf("parse counts: row %d: invalid count %q", i+1, cols[ColCount].Elem(i).String())
		}
		counts[Key{Gene: name, Cell: cells[i]}] += v
	}
	return counts, nil
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

// Sum loads every lane and adds their counts. A key absent from a lane takes
// its value from the lanes that have it. Unreadable lanes are logged and
// skipped. The returned slice lists the lanes that contributed.
func (m *Merger) Sum(lanes []string) (Counts, []string) {
	total := make(Counts)
	var merged []string
	for _, lane := range lanes {
		counts, err := m.LoadLane(lane)
		if err != nil {
			m.logger.Warn("skipping genome counts for lane",
				zap.String("lane", lane),
				zap.Error(err))
			continue
		}
		for k, v := range counts {
			total[k] += v
		}
		merged = append(merged, lane)
	}
	m.logger.Info("summed genome counts",
		zap.Int("lanes", len(merged)),
		zap.Int("keys", len(total)))
	return total, merged
}

// Merge adds the helper column and the genome count column to t. Rows whose
// channel is one of lanes that contributed counts get the summed count for
// their (gene, barcode); every other row gets null.
func (m *Merger) Merge(t *output.Table, lanes []string) error {
	geneIdx := t.ColumnIndex(colGene)
	barcodeIdx := t.ColumnIndex(colBarcode)
	channelIdx := t.ColumnIndex(colChannel)
	for name, idx := range map[string]int{colGene: geneIdx, colBarcode: barcodeIdx, colChannel: channelIdx} {
		if idx < 0 {
			return fmt.Errorf("merge genome counts: table has no %q column", name)
		}
	}

	total, merged := m.Sum(lanes)
	inMerged := make(map[string]bool, len(merged))
	for _, lane := range merged {
		inMerged[lane] = true
	}

	keys := make([]any, len(t.Rows))
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		gene, _ := row[geneIdx].(string)
		barcode, _ := row[barcodeIdx].(string)
		keys[i] = gene + "," + barcode

		channel, _ := row[channelIdx].(string)
		if !inMerged[channel] || gene == "" {
			continue
		}
		if v, ok := total[Key{Gene: gene, Cell: barcode}]; ok {
			values[i] = v
		}
	}

	if err := t.AddColumn(output.Column{Name: output.HelperColumn, Kind: output.KindString}, keys); err != nil {
		return fmt.Errorf("merge genome counts: %w", err)
	}
	if err := t.AddColumn(output.Column{Name: ColGenomeCounts, Kind: output.KindFloat}, values); err != nil {
		return fmt.Errorf("merge genome counts: %w", err)
	}
	return nil
}
