package classify

import (
	"database/sql"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/juncclass/internal/classinput"
	"github.com/inodb/juncclass/internal/reference"
)

func testRefs() *reference.Sets {
	s := reference.NewSets()
	s.AddExonBound("chr1", 100)
	s.AddExonBound("chr1", 200)
	s.AddSplice("chr1", 100, 200)
	return s
}

func rec(barcode, umi, refName, gene, chrA, chrB string, posA, posB int64) classinput.Record {
	return classinput.Record{
		RefName:  refName,
		UMI:      umi,
		Barcode:  barcode,
		Gene:     gene,
		JuncPosA: posA,
		JuncPosB: posB,
		ChrA:     chrA,
		ChrB:     chrB,
		FileType: classinput.FileTypeAligned,
	}
}

func classifyOne(t *testing.T, r classinput.Record) Record {
	t.Helper()
	out, err := NewClassifier(testRefs()).ClassifyLane([]classinput.Record{r}, "lane1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func TestClassifyLane_KnownSplice(t *testing.T) {
	r := classifyOne(t, rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 200))

	assert.True(t, r.ExonAnnA)
	assert.True(t, r.ExonAnnB)
	assert.True(t, r.BothAnn)
	assert.True(t, r.SpliceAnn)
	assert.False(t, r.NoneAnn)
	assert.False(t, r.OneAnn)
	assert.False(t, r.JustBothAnn)
	assert.False(t, r.NoneAnnKnownGene)
	assert.False(t, r.NoneAnnUnknownGene)
}

func TestClassifyLane_OneEndAnnotated(t *testing.T) {
	r := classifyOne(t, rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 300))

	assert.True(t, r.ExonAnnA)
	assert.False(t, r.ExonAnnB)
	assert.True(t, r.OneAnn)
	assert.False(t, r.BothAnn)
	assert.False(t, r.SpliceAnn)
	assert.False(t, r.NoneAnn)
	assert.False(t, r.JustBothAnn)
	assert.False(t, r.NoneAnnKnownGene)
	assert.False(t, r.NoneAnnUnknownGene)
}

func TestClassifyLane_BothExonsNovelJunction(t *testing.T) {
	refs := testRefs()
	refs.AddExonBound("chr1", 500)

	out, err := NewClassifier(refs).ClassifyLane([]classinput.Record{
		rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 500),
	}, "lane1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.True(t, out[0].BothAnn)
	assert.False(t, out[0].SpliceAnn)
	assert.True(t, out[0].JustBothAnn)
}

func TestClassifyLane_NoAnnotationGenePartition(t *testing.T) {
	tests := []struct {
		gene        string
		knownGene   bool
		unknownGene bool
	}{
		{"geneX", true, false},
		{UnknownGene, false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("gene=%q", tt.gene), func(t *testing.T) {
			r := classifyOne(t, rec("B1", "U1", "R1", tt.gene, "chr1", "chr1", 1, 2))
			assert.True(t, r.NoneAnn)
			assert.Equal(t, tt.knownGene, r.NoneAnnKnownGene)
			assert.Equal(t, tt.unknownGene, r.NoneAnnUnknownGene)
		})
	}
}

func TestClassifyLane_UnknownChromosome(t *testing.T) {
	r := classifyOne(t, rec("B1", "U1", "R1", "geneX", "chrUn_gl000220", "chrUn_gl000220", 100, 200))

	assert.False(t, r.ExonAnnA)
	assert.False(t, r.ExonAnnB)
	assert.False(t, r.SpliceAnn)
	assert.True(t, r.NoneAnn)
}

func TestClassifyLane_InterChromosomalNeverSplice(t *testing.T) {
	refs := testRefs()
	refs.AddExonBound("chr2", 200)
	refs.AddSplice("chr2", 100, 200)

	out, err := NewClassifier(refs).ClassifyLane([]classinput.Record{
		rec("B1", "U1", "R1", "geneX", "chr1", "chr2", 100, 200),
	}, "lane1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.True(t, out[0].BothAnn)
	assert.False(t, out[0].SpliceAnn)
	assert.True(t, out[0].JustBothAnn)
}

func TestClassifyLane_SpliceSymmetric(t *testing.T) {
	a := classifyOne(t, rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 200))
	b := classifyOne(t, rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 200, 100))
	assert.Equal(t, a.SpliceAnn, b.SpliceAnn)
	assert.True(t, b.SpliceAnn)
}

func TestClassifyLane_DuplicateMoleculesCollapse(t *testing.T) {
	raw := []classinput.Record{
		rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 200),
		rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 200),
	}

	out, err := NewClassifier(testRefs()).ClassifyLane(raw, "lane1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].NumReads)
	assert.Equal(t, int64(1), out[0].GeneCountPerCell)
}

func TestClassifyLane_NumReadsCountsUMIs(t *testing.T) {
	raw := []classinput.Record{
		rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 200),
		rec("B1", "U2", "R1", "geneX", "chr1", "chr1", 100, 200),
		rec("B1", "U3", "R1", "geneX", "chr1", "chr1", 100, 200),
		rec("B1", "U2", "R1", "geneX", "chr1", "chr1", 100, 200), // repeat molecule
		rec("B1", "U4", "R2", "geneX", "chr1", "chr1", 100, 300),
		rec("B2", "U1", "R1", "geneX", "chr1", "chr1", 100, 200),
	}

	out, err := NewClassifier(testRefs()).ClassifyLane(raw, "lane1")
	require.NoError(t, err)
	require.Len(t, out, 3)

	// First-occurrence order.
	assert.Equal(t, "R1", out[0].RefName)
	assert.Equal(t, "B1", out[0].Barcode)
	assert.Equal(t, int64(3), out[0].NumReads)
	assert.Equal(t, "R2", out[1].RefName)
	assert.Equal(t, int64(1), out[1].NumReads)
	assert.Equal(t, "B2", out[2].Barcode)
	assert.Equal(t, int64(1), out[2].NumReads)

	// Gene totals per cell.
	assert.Equal(t, int64(4), out[0].GeneCountPerCell)
	assert.Equal(t, int64(4), out[1].GeneCountPerCell)
	assert.InDelta(t, 0.75, out[0].GeneFrac.Float64, 1e-12)
	assert.InDelta(t, 0.25, out[1].GeneFrac.Float64, 1e-12)
	assert.Equal(t, int64(1), out[2].GeneCountPerCell)
	assert.InDelta(t, 1.0, out[2].GeneFrac.Float64, 1e-12)
}

func TestClassifyLane_FiltersUnaligned(t *testing.T) {
	chimeric := rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 100, 200)
	chimeric.FileType = "Chimeric"
	aligned := rec("B1", "U2", "R1", "geneX", "chr1", "chr1", 100, 200)

	out, err := NewClassifier(testRefs()).ClassifyLane([]classinput.Record{chimeric, aligned}, "lane1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].NumReads)

	out, err = NewClassifier(testRefs()).ClassifyLane([]classinput.Record{chimeric}, "lane1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestClassifyLane_CellAndChannel(t *testing.T) {
	out, err := NewClassifier(testRefs()).ClassifyLane([]classinput.Record{
		rec("AAACCTG", "U1", "R1", "geneX", "chr1", "chr1", 1, 2),
	}, "TSP1_lung_1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "TSP1_lung_1_AAACCTG", out[0].Cell)
	assert.Equal(t, "TSP1_lung_1", out[0].Channel)
}

func TestClassifyLane_EmptyLane(t *testing.T) {
	_, err := NewClassifier(testRefs()).ClassifyLane(nil, "")
	assert.ErrorIs(t, err, ErrEmptyLane)
}

func TestClassifyLane_CarriesNH(t *testing.T) {
	r := rec("B1", "U1", "R1", "geneX", "chr1", "chr1", 1, 2)
	r.NH = sql.NullInt64{Int64: 3, Valid: true}
	got := classifyOne(t, r)
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, got.NH)
}

func TestFraction_ZeroTotal(t *testing.T) {
	f := fraction(0, 0)
	assert.False(t, f.Valid)

	f = fraction(1, 4)
	assert.True(t, f.Valid)
	assert.Equal(t, 0.25, f.Float64)
}

func TestAggregateGenes_MissingGeneIsOwnGroup(t *testing.T) {
	records := []Record{
		{Barcode: "B1", Gene: "", NumReads: 2},
		{Barcode: "B1", Gene: "", NumReads: 2},
		{Barcode: "B1", Gene: UnknownGene, NumReads: 1},
	}
	AggregateGenes(records)
	assert.Equal(t, int64(4), records[0].GeneCountPerCell)
	assert.Equal(t, int64(1), records[2].GeneCountPerCell)
}

// randomRaw builds a raw table with many duplicate molecules, a mix of
// chromosomes and genes, and a few unaligned rows.
func randomRaw(rng *rand.Rand, n int) []classinput.Record {
	chroms := []string{"chr1", "chr2", "chrX"}
	genes := []string{"geneX", "geneY", UnknownGene, ""}
	positions := []int64{100, 200, 300, 400}
	raw := make([]classinput.Record, n)
	for i := range raw {
		r := rec(
			fmt.Sprintf("B%d", rng.Intn(4)),
			fmt.Sprintf("U%d", rng.Intn(5)),
			fmt.Sprintf("R%d", rng.Intn(6)),
			genes[rng.Intn(len(genes))],
			chroms[rng.Intn(len(chroms))],
			chroms[rng.Intn(len(chroms))],
			positions[rng.Intn(len(positions))],
			positions[rng.Intn(len(positions))],
		)
		if rng.Intn(10) == 0 {
			r.FileType = "Chimeric"
		}
		raw[i] = r
	}
	return raw
}

func propertyRefs() *reference.Sets {
	s := reference.NewSets()
	for _, c := range []string{"chr1", "chr2"} {
		s.AddExonBound(c, 100)
		s.AddExonBound(c, 200)
		s.AddExonBound(c, 300)
		s.AddSplice(c, 100, 200)
	}
	return s
}

func TestClassifyLane_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := NewClassifier(propertyRefs())

	for iter := 0; iter < 20; iter++ {
		raw := randomRaw(rng, 200)
		out, err := c.ClassifyLane(raw, "lane")
		require.NoError(t, err)

		fracSums := make(map[geneCellKey]float64)
		for _, r := range out {
			// none/one/both partition every row when splice junctions only
			// join exon boundaries.
			n := 0
			for _, f := range []bool{r.NoneAnn, r.OneAnn, r.BothAnn} {
				if f {
					n++
				}
			}
			assert.Equal(t, 1, n, "none/one/both must partition rows: %+v", r)

			if r.BothAnn {
				assert.NotEqual(t, r.JustBothAnn, r.SpliceAnn)
			}

			// known/unknown gene partition exactly the none_ann rows.
			assert.Equal(t, r.NoneAnn, r.NoneAnnKnownGene || r.NoneAnnUnknownGene)
			assert.False(t, r.NoneAnnKnownGene && r.NoneAnnUnknownGene)

			if r.ChrA != r.ChrB {
				assert.False(t, r.SpliceAnn)
			}

			require.True(t, r.GeneFrac.Valid)
			fracSums[geneCellKey{r.Gene, r.Barcode}] += r.GeneFrac.Float64
		}
		for k, sum := range fracSums {
			assert.InDelta(t, 1.0, sum, 1e-9, "gene_frac_no_filt for %v", k)
		}
	}
}

func TestClassifyLane_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	raw := randomRaw(rng, 300)
	c := NewClassifier(propertyRefs())

	first, err := c.ClassifyLane(raw, "lane")
	require.NoError(t, err)

	again, err := c.ClassifyLane(raw, "lane")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A table already free of duplicate molecules is a fixed point of the
	// molecule deduplication step.
	deduped := DedupMolecules(raw)
	assert.Equal(t, deduped, DedupMolecules(deduped))

	fromDeduped, err := c.ClassifyLane(deduped, "lane")
	require.NoError(t, err)
	assert.Equal(t, first, fromDeduped)
}

func TestClassifyLane_SwapEndsKeepsSplice(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c := NewClassifier(propertyRefs())
	raw := randomRaw(rng, 100)

	swapped := make([]classinput.Record, len(raw))
	for i, r := range raw {
		r.JuncPosA, r.JuncPosB = r.JuncPosB, r.JuncPosA
		r.ChrA, r.ChrB = r.ChrB, r.ChrA
		swapped[i] = r
	}

	a, err := c.ClassifyLane(raw, "lane")
	require.NoError(t, err)
	b, err := c.ClassifyLane(swapped, "lane")
	require.NoError(t, err)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].SpliceAnn, b[i].SpliceAnn)
	}
}
