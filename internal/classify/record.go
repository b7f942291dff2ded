package classify

import (
	"database/sql"

	"github.com/inodb/juncclass/internal/output"
)

// UnknownGene is the sentinel gene identifier for reads without a gene call.
const UnknownGene = "unknown"

// Record is one classified junction call: a representative alignment for a
// (barcode, refName) pair, with its read support and annotation flags.
type Record struct {
	RefName  string
	Barcode  string
	Gene     string // empty when missing
	JuncPosA int64
	JuncPosB int64
	ChrA     string
	ChrB     string
	NH       sql.NullInt64

	NumReads         int64
	GeneCountPerCell int64
	GeneFrac         sql.NullFloat64

	ExonAnnA  bool
	ExonAnnB  bool
	BothAnn   bool
	SpliceAnn bool

	Cell string
	// Meta holds metadata values aligned with the classifier's metadata
	// columns; nil when the cell has no metadata row.
	Meta []string

	NoneAnn            bool
	OneAnn             bool
	JustBothAnn        bool
	NoneAnnKnownGene   bool
	NoneAnnUnknownGene bool

	Channel string
}

// Output column names.
const (
	ColRefName            = "refName_newR1"
	ColBarcode            = "barcode"
	ColGene               = "geneR1A_uniq"
	ColJuncPosA           = "juncPosR1A"
	ColJuncPosB           = "juncPosR1B"
	ColChrA               = "chrR1A"
	ColChrB               = "chrR1B"
	ColNH                 = "NHR1A"
	ColNumReads           = "numReads"
	ColGeneCountNoFilt    = "gene_count_per_cell_no_filt"
	ColGeneFracNoFilt     = "gene_frac_no_filt"
	ColGeneCountFilt      = "gene_count_per_cell_filt"
	ColGeneFracFilt       = "gene_frac_filt"
	ColExonAnnA           = "exon_annR1A"
	ColExonAnnB           = "exon_annR1B"
	ColBothAnn            = "both_ann"
	ColSpliceAnn          = "splice_ann"
	ColCell               = "cell"
	ColNoneAnn            = "none_ann"
	ColOneAnn             = "one_ann"
	ColJustBothAnn        = "just_both_ann"
	ColNoneAnnKnownGene   = "none_ann_known_gene"
	ColNoneAnnUnknownGene = "none_ann_unknown_gene"
	ColChannel            = "channel"
)

var leadingColumns = []output.Column{
	{Name: ColRefName, Kind: output.KindString},
	{Name: ColBarcode, Kind: output.KindString},
	{Name: ColGene, Kind: output.KindString},
	{Name: ColJuncPosA, Kind: output.KindInt},
	{Name: ColJuncPosB, Kind: output.KindInt},
	{Name: ColChrA, Kind: output.KindString},
	{Name: ColChrB, Kind: output.KindString},
	{Name: ColNH, Kind: output.KindNullInt},
	{Name: ColNumReads, Kind: output.KindInt},
	{Name: ColGeneCountNoFilt, Kind: output.KindInt},
	{Name: ColGeneFracNoFilt, Kind: output.KindFloat},
	{Name: ColGeneCountFilt, Kind: output.KindFloat},
	{Name: ColGeneFracFilt, Kind: output.KindFloat},
	{Name: ColExonAnnA, Kind: output.KindBool},
	{Name: ColExonAnnB, Kind: output.KindBool},
	{Name: ColBothAnn, Kind: output.KindBool},
	{Name: ColSpliceAnn, Kind: output.KindBool},
	{Name: ColCell, Kind: output.KindString},
}

var trailingColumns = []output.Column{
	{Name: ColNoneAnn, Kind: output.KindBool},
	{Name: ColOneAnn, Kind: output.KindBool},
	{Name: ColJustBothAnn, Kind: output.KindBool},
	{Name: ColNoneAnnKnownGene, Kind: output.KindBool},
	{Name: ColNoneAnnUnknownGene, Kind: output.KindBool},
	{Name: ColChannel, Kind: output.KindString},
}

// Columns returns the classified table schema. Metadata columns sit between
// "cell" and the derived flags.
func Columns(metaColumns []string) []output.Column {
	cols := make([]output.Column, 0, len(leadingColumns)+len(metaColumns)+len(trailingColumns))
	cols = append(cols, leadingColumns...)
	for _, name := range metaColumns {
		cols = append(cols, output.Column{Name: name, Kind: output.KindString})
	}
	return append(cols, trailingColumns...)
}

// ToTable converts classified records to a table with the Columns schema.
func ToTable(records []Record, metaColumns []string) *output.Table {
	t := output.NewTable(Columns(metaColumns))
	t.Rows = make([][]any, 0, len(records))
	for i := range records {
		t.Rows = append(t.Rows, records[i].row(len(metaColumns)))
	}
	return t
}

func (r *Record) row(nMeta int) []any {
	row := make([]any, 0, len(leadingColumns)+nMeta+len(trailingColumns))

	var gene, nh, frac any
	if r.Gene != "" {
		gene = r.Gene
	}
	if r.NH.Valid {
		nh = r.NH.Int64
	}
	if r.GeneFrac.Valid {
		frac = r.GeneFrac.Float64
	}

	row = append(row,
		r.RefName, r.Barcode, gene, r.JuncPosA, r.JuncPosB, r.ChrA, r.ChrB, nh,
		r.NumReads, r.GeneCountPerCell, frac, nil, nil,
		r.ExonAnnA, r.ExonAnnB, r.BothAnn, r.SpliceAnn,
		r.Cell,
	)
	for i := 0; i < nMeta; i++ {
		if r.Meta == nil || r.Meta[i] == "" {
			row = append(row, nil)
		} else {
			row = append(row, r.Meta[i])
		}
	}
	return append(row,
		r.NoneAnn, r.OneAnn, r.JustBothAnn, r.NoneAnnKnownGene, r.NoneAnnUnknownGene,
		r.Channel,
	)
}
