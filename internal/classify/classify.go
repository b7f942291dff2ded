// Package classify implements per-lane junction read classification:
// molecule deduplication, per-cell read support, per-gene fractions and
// annotation against exon-boundary and splice-junction reference sets.
package classify

import (
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/inodb/juncclass/internal/classinput"
	"github.com/inodb/juncclass/internal/reference"
)

// ErrEmptyLane is returned when a lane is classified without an identifier.
var ErrEmptyLane = errors.New("empty lane identifier")

// ReferenceLookup answers exon-boundary and splice-junction membership
// queries. Unknown chromosomes must answer false.
type ReferenceLookup interface {
	IsExonBound(chrom string, pos int64) bool
	IsSplice(chrom string, j reference.Junction) bool
}

// MetadataLookup returns per-cell metadata values.
type MetadataLookup interface {
	Columns() []string
	Lookup(cell string) ([]string, bool)
}

// Classifier classifies the raw records of one lane at a time.
type Classifier struct {
	refs   ReferenceLookup
	meta   MetadataLookup
	logger *zap.Logger
}

// NewClassifier creates a classifier annotating against refs.
func NewClassifier(refs ReferenceLookup) *Classifier {
	return &Classifier{
		refs:   refs,
		logger: zap.NewNop(),
	}
}

// SetMetadata enables the left join of per-cell metadata on the cell key.
func (c *Classifier) SetMetadata(m MetadataLookup) {
	c.meta = m
}

// SetLogger sets the logger for progress messages.
func (c *Classifier) SetLogger(l *zap.Logger) {
	c.logger = l
}

// MetadataColumns returns the metadata columns joined onto every record.
func (c *Classifier) MetadataColumns() []string {
	if c.meta == nil {
		return nil
	}
	return c.meta.Columns()
}

// ClassifyLane classifies the raw records of one lane. Only aligned records
// are considered. The output has one record per (barcode, refName) pair in
// order of first occurrence.
func (c *Classifier) ClassifyLane(raw []classinput.Record, lane string) ([]Record, error) {
	if lane == "" {
		return nil, ErrEmptyLane
	}

	molecules := DedupMolecules(raw)
	records := CollapseReads(molecules)
	AggregateGenes(records)

	for i := range records {
		r := &records[i]
		c.annotate(r)
		r.Cell = lane + "_" + r.Barcode
		r.Channel = lane
		if c.meta != nil {
			if values, ok := c.meta.Lookup(r.Cell); ok {
				r.Meta = values
			}
		}
		deriveFlags(r)
	}

	c.logger.Debug("classified lane",
		zap.String("lane", lane),
		zap.Int("raw_records", len(raw)),
		zap.Int("molecules", len(molecules)),
		zap.Int("junction_calls", len(records)))

	return records, nil
}

type moleculeKey struct {
	barcode, umi, refName string
}

// DedupMolecules keeps aligned records only and drops repeated
// (barcode, UMI, refName) triples, keeping the first occurrence.
func DedupMolecules(raw []classinput.Record) []classinput.Record {
	seen := make(map[moleculeKey]struct{}, len(raw))
	out := make([]classinput.Record, 0, len(raw))
	for _, r := range raw {
		if r.FileType != classinput.FileTypeAligned {
			continue
		}
		k := moleculeKey{r.Barcode, r.UMI, r.RefName}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

type callKey struct {
	barcode, refName string
}

// CollapseReads collapses molecules sharing a (barcode, refName) pair into
// one record whose NumReads is the number of molecules in the pair. The
// first molecule of each pair supplies the record's fields.
func CollapseReads(molecules []classinput.Record) []Record {
	index := make(map[callKey]int, len(molecules))
	var records []Record
	for _, m := range molecules {
		k := callKey{m.Barcode, m.RefName}
		if i, ok := index[k]; ok {
			records[i].NumReads++
			continue
		}
		index[k] = len(records)
		records = append(records, Record{
			RefName:  m.RefName,
			Barcode:  m.Barcode,
			Gene:     m.Gene,
			JuncPosA: m.JuncPosA,
			JuncPosB: m.JuncPosB,
			ChrA:     m.ChrA,
			ChrB:     m.ChrB,
			NH:       m.NH,
			NumReads: 1,
		})
	}
	return records
}

type geneCellKey struct {
	gene, barcode string
}

// AggregateGenes sets GeneCountPerCell to the total NumReads of all records
// sharing the record's (gene, barcode) pair and GeneFrac to the record's
// share of that total.
func AggregateGenes(records []Record) {
	totals := make(map[geneCellKey]int64)
	for i := range records {
		totals[geneCellKey{records[i].Gene, records[i].Barcode}] += records[i].NumReads
	}
	for i := range records {
		r := &records[i]
		r.GeneCountPerCell = totals[geneCellKey{r.Gene, r.Barcode}]
		r.GeneFrac = fraction(r.NumReads, r.GeneCountPerCell)
	}
}

// fraction returns num/den, or null when den is zero.
func fraction(num, den int64) sql.NullFloat64 {
	if den == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(num) / float64(den), Valid: true}
}

func (c *Classifier) annotate(r *Record) {
	r.ExonAnnA = c.refs.IsExonBound(r.ChrA, r.JuncPosA)
	r.ExonAnnB = c.refs.IsExonBound(r.ChrB, r.JuncPosB)
	r.BothAnn = r.ExonAnnA && r.ExonAnnB
	// Inter-chromosomal junctions are never splice annotated.
	if r.ChrA == r.ChrB {
		r.SpliceAnn = c.refs.IsSplice(r.ChrA, reference.NewJunction(r.JuncPosA, r.JuncPosB))
	}
}

func deriveFlags(r *Record) {
	r.NoneAnn = !r.SpliceAnn && !r.BothAnn && !r.ExonAnnA && !r.ExonAnnB
	r.OneAnn = r.ExonAnnA != r.ExonAnnB
	r.JustBothAnn = r.BothAnn && !r.SpliceAnn
	known := r.Gene != "" && r.Gene != UnknownGene
	r.NoneAnnKnownGene = r.NoneAnn && known
	r.NoneAnnUnknownGene = r.NoneAnn && !known
}
