// Package pipeline runs junction read classification end to end: reference
// loading, per-sample classification, aggregation and output.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/juncclass/internal/classify"
	"github.com/inodb/juncclass/internal/duckdb"
	"github.com/inodb/juncclass/internal/genomecounts"
	"github.com/inodb/juncclass/internal/gtf"
	"github.com/inodb/juncclass/internal/metadata"
	"github.com/inodb/juncclass/internal/output"
	"github.com/inodb/juncclass/internal/reference"
	"github.com/inodb/juncclass/internal/sample"
)

// Option validation errors.
var (
	ErrNoInputs     = errors.New("no class inputs given")
	ErrNoOutput     = errors.New("output path required")
	ErrNoReferences = errors.New("exon bounds and splice junction files required")
	ErrNoMetaPath   = errors.New("--include-meta requires a metadata file")
	ErrNoGTF        = errors.New("genome count merging requires a GTF file")
)

// Options configures a pipeline run.
type Options struct {
	Inputs     []sample.Input
	OutputPath string

	ExonPath    string
	SplicePath  string
	RefCacheDir string

	IncludeMeta bool
	MetaPath    string

	GTFPath         string
	GenomeCountsDir string

	DuckDBPath string

	// Accepted for command-line compatibility and recorded in the run log.
	Suffix  string
	Prefix  string
	Prefix2 string
}

// Validate checks that the options describe a runnable pipeline.
func (o *Options) Validate() error {
	switch {
	case len(o.Inputs) == 0:
		return ErrNoInputs
	case o.OutputPath == "":
		return ErrNoOutput
	case o.ExonPath == "" || o.SplicePath == "":
		return ErrNoReferences
	case o.IncludeMeta && o.MetaPath == "":
		return ErrNoMetaPath
	case o.GenomeCountsDir != "" && o.GTFPath == "":
		return ErrNoGTF
	}
	return nil
}

// SampleResult reports the outcome of one sample.
type SampleResult struct {
	Name       string
	Files      []string
	InputRows  int
	OutputRows int
	Err        error // non-nil when the sample was skipped
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID      string
	Samples    []SampleResult
	Rows       int
	CacheHit   bool
	OutputPath string
}

// Skipped returns the names of samples absent from the output.
func (s *Summary) Skipped() []string {
	var names []string
	for _, r := range s.Samples {
		if r.Err != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// Pipeline classifies every sample of a run.
type Pipeline struct {
	opts   Options
	logger *zap.Logger
}

// New creates a pipeline for opts.
func New(opts Options) *Pipeline {
	return &Pipeline{
		opts:   opts,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for progress messages.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Run executes the pipeline. Reference, metadata, classification,
// aggregation and output errors are fatal. A sample whose inputs cannot be
// read is logged and left out of the output.
func (p *Pipeline) Run() (*Summary, error) {
	if err := p.opts.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	summary := &Summary{RunID: uuid.NewString(), OutputPath: p.opts.OutputPath}
	log := p.logger.With(zap.String("run_id", summary.RunID))

	log.Info("starting classification",
		zap.Int("class_inputs", len(p.opts.Inputs)),
		zap.String("suffix", p.opts.Suffix),
		zap.String("prefix", p.opts.Prefix),
		zap.String("prefix2", p.opts.Prefix2))

	refs, hit, err := reference.LoadCached(p.opts.RefCacheDir, p.opts.ExonPath, p.opts.SplicePath)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	summary.CacheHit = hit
	log.Info("loaded references",
		zap.Int("exon_bounds", refs.ExonBoundCount()),
		zap.Int("splice_junctions", refs.SpliceCount()),
		zap.Int("chromosomes", len(refs.Chromosomes())),
		zap.Bool("cache_hit", hit))

	classifier := classify.NewClassifier(refs)
	classifier.SetLogger(log)
	if p.opts.IncludeMeta {
		meta, err := metadata.Load(p.opts.MetaPath)
		if err != nil {
			return nil, fmt.Errorf("load metadata: %w", err)
		}
		if err := checkMetaColumns(meta.Columns()); err != nil {
			return nil, err
		}
		classifier.SetMetadata(meta)
		log.Info("loaded metadata",
			zap.Int("cells", meta.Len()),
			zap.Strings("columns", meta.Columns()))
	}

	agg := output.NewAggregator()
	var lanes []string
	for _, g := range sample.GroupInputs(p.opts.Inputs) {
		res := SampleResult{Name: g.Name, Files: g.Files}

		raw, err := sample.ReadGroup(g)
		if err != nil {
			log.Warn("skipping sample",
				zap.String("sample", g.Name),
				zap.Strings("files", g.Files),
				zap.Error(err))
			res.Err = err
			summary.Samples = append(summary.Samples, res)
			continue
		}
		res.InputRows = len(raw)

		records, err := classifier.ClassifyLane(raw, g.Name)
		if err != nil {
			return nil, fmt.Errorf("classify sample %s: %w", g.Name, err)
		}

		if err := agg.Add(g.Name, classify.ToTable(records, classifier.MetadataColumns())); err != nil {
			return nil, err
		}
		res.OutputRows = len(records)
		summary.Samples = append(summary.Samples, res)
		lanes = append(lanes, g.Name)

		log.Info("classified sample",
			zap.String("sample", g.Name),
			zap.Strings("files", g.Files),
			zap.Int("input_rows", res.InputRows),
			zap.Int("output_rows", res.OutputRows))
	}

	table, err := agg.Result()
	if err != nil {
		return nil, err
	}
	log.Info("aggregated samples",
		zap.Int("tables", agg.Tables()),
		zap.Int("rows", table.NumRows()))

	if p.opts.GenomeCountsDir != "" {
		names, err := gtf.LoadGeneNames(p.opts.GTFPath)
		if err != nil {
			return nil, fmt.Errorf("load gene names: %w", err)
		}
		merger := genomecounts.NewMerger(p.opts.GenomeCountsDir, names)
		merger.SetLogger(log)
		if err := merger.Merge(table, lanes); err != nil {
			return nil, err
		}
	}

	if err := writeTSV(p.opts.OutputPath, table); err != nil {
		return nil, err
	}
	summary.Rows = table.NumRows()
	log.Info("wrote classified table",
		zap.String("path", p.opts.OutputPath),
		zap.Int("rows", summary.Rows),
		zap.Strings("skipped_samples", summary.Skipped()))

	if p.opts.DuckDBPath != "" {
		if err := p.export(table, summary, started, log); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

func (p *Pipeline) export(t *output.Table, summary *Summary, started time.Time, log *zap.Logger) error {
	store, err := duckdb.Open(p.opts.DuckDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.WriteTable(t); err != nil {
		return fmt.Errorf("export to duckdb: %w", err)
	}
	if err := store.RecordRun(duckdb.Run{
		ID:         summary.RunID,
		StartedAt:  started,
		Samples:    len(summary.Samples) - len(summary.Skipped()),
		Rows:       summary.Rows,
		OutputPath: p.opts.OutputPath,
	}); err != nil {
		return err
	}

	counts, err := store.CountByChannel()
	if err != nil {
		return err
	}
	for channel, n := range counts {
		log.Debug("exported channel", zap.String("channel", channel), zap.Int64("rows", n))
	}
	log.Info("exported to duckdb", zap.String("path", store.Path()))
	return nil
}

// checkMetaColumns rejects metadata columns that would shadow classified
// columns.
func checkMetaColumns(columns []string) error {
	reserved := make(map[string]bool)
	for _, c := range classify.Columns(nil) {
		reserved[c.Name] = true
	}
	reserved[genomecounts.ColGenomeCounts] = true
	reserved[output.HelperColumn] = true

	for _, name := range columns {
		if reserved[name] {
			return fmt.Errorf("metadata column %q collides with a classified column", name)
		}
	}
	return nil
}

func writeTSV(path string, t *output.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := output.WriteTable(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
