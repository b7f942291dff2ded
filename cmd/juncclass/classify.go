package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/juncclass/internal/pipeline"
	"github.com/inodb/juncclass/internal/sample"
)

// Config keys shared by classify flags, the config file and JUNCCLASS_*
// environment variables.
const (
	keyExon         = "reference.exon"
	keySplice       = "reference.splice"
	keyRefCacheDir  = "reference.cache_dir"
	keyGTF          = "reference.gtf"
	keyMeta         = "metadata.path"
	keyIncludeMeta  = "metadata.include"
	keyGenomeCounts = "genome_counts.dir"
	keyDuckDB       = "duckdb.path"
)

// defaultSuffix is the FDR suffix used by earlier releases of the workflow.
const defaultSuffix = "_fg_so_aa_ag_ae_il_0.15"

// legacyFlagNames maps flag spellings of the previous command line onto the
// current ones, so existing workflow invocations keep working.
func legacyFlagNames(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "splice":
		name = "splices"
	case "include_meta":
		name = "include-meta"
	}
	return pflag.NormalizedName(name)
}

func newClassifyCmd(logger **zap.Logger) *cobra.Command {
	var (
		names      []string
		inputs     []string
		outputPath string
		suffix     string
		prefix     string
		prefix2    string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify junction reads of one or more samples",
		Long: `Classify junction reads per sample and write one tab-separated table.

Each -i class input is paired with the -n sample name at the same position.
Repeating a sample name groups several class inputs into one sample. A sample
whose inputs cannot be read is logged and left out of the output.`,
		Example: `  juncclass classify -n TSP1_lung_1 -i lung1.tsv -n TSP1_lung_2 -i lung2.tsv \
      -e exon_bounds.tsv -s splices.tsv -o classified.tsv

  # attach per-cell metadata and keep a queryable copy
  juncclass classify -n S1 -i a.tsv -n S1 -i b.tsv -e exons.json.gz -s splices.json.gz \
      --include-meta --meta cells.tsv --duckdb classified.duckdb -o classified.tsv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := sample.Pair(names, inputs)
			if err != nil {
				return &usageError{err: err}
			}

			opts := pipeline.Options{
				Inputs:          pairs,
				OutputPath:      outputPath,
				ExonPath:        viper.GetString(keyExon),
				SplicePath:      viper.GetString(keySplice),
				RefCacheDir:     viper.GetString(keyRefCacheDir),
				IncludeMeta:     viper.GetBool(keyIncludeMeta),
				MetaPath:        viper.GetString(keyMeta),
				GTFPath:         viper.GetString(keyGTF),
				GenomeCountsDir: viper.GetString(keyGenomeCounts),
				DuckDBPath:      viper.GetString(keyDuckDB),
				Suffix:          suffix,
				Prefix:          prefix,
				Prefix2:         prefix2,
			}
			return runClassify(opts, *logger)
		},
	}

	f := cmd.Flags()
	f.SetNormalizeFunc(legacyFlagNames)
	f.StringArrayVarP(&names, "sample-names", "n", nil, "sample name for the class input at the same position (repeatable)")
	f.StringArrayVarP(&inputs, "class-inputs", "i", nil, "class input file, plain or gzipped (repeatable)")
	f.StringVarP(&outputPath, "output-tsv", "o", "", "output table path")
	f.StringP("exon", "e", "", "exon boundary reference (TSV or JSON, optionally gzipped)")
	f.StringP("splices", "s", "", "splice junction reference (TSV or JSON, optionally gzipped)")
	f.StringP("gtf", "g", "", "GTF file for gene names")
	f.Bool("include-meta", false, "join per-cell metadata onto every row")
	f.String("meta", "", "per-cell metadata table with a cell column")
	f.String("ref-cache-dir", "", "directory for the binary reference cache (disabled when empty)")
	f.String("genome-counts-dir", "", "directory of <sample>/counts.tsv.gz gene count tables to merge")
	f.String("duckdb", "", "also export the classified table to this DuckDB database")
	f.StringVar(&suffix, "suff", defaultSuffix, "annotation window suffix (recorded only)")
	f.StringVar(&prefix, "prefix", "", "annotation prefix (recorded only)")
	f.StringVar(&prefix2, "prefix2", "", "secondary annotation prefix (recorded only)")

	for key, flag := range map[string]string{
		keyExon:         "exon",
		keySplice:       "splices",
		keyGTF:          "gtf",
		keyIncludeMeta:  "include-meta",
		keyMeta:         "meta",
		keyRefCacheDir:  "ref-cache-dir",
		keyGenomeCounts: "genome-counts-dir",
		keyDuckDB:       "duckdb",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func runClassify(opts pipeline.Options, logger *zap.Logger) error {
	if err := opts.Validate(); err != nil {
		return &usageError{err: err}
	}

	p := pipeline.New(opts)
	p.SetLogger(logger)
	summary, err := p.Run()
	if err != nil {
		return err
	}

	logger.Info("done",
		zap.String("output", summary.OutputPath),
		zap.Int("rows", summary.Rows),
		zap.Int("samples", len(summary.Samples)-len(summary.Skipped())),
		zap.Strings("skipped", summary.Skipped()))
	return nil
}
