// Package reference holds the exon-boundary and splice-junction reference
// sets used to annotate junction reads.
package reference

import "sort"

// Junction is a splice junction as an order-independent pair of positions.
// Lo is always <= Hi.
type Junction struct {
	Lo int64
	Hi int64
}

// NewJunction returns the canonical (sorted) junction for two positions.
func NewJunction(a, b int64) Junction {
	if a > b {
		a, b = b, a
	}
	return Junction{Lo: a, Hi: b}
}

// Sets holds chromosome-keyed reference sets. Lookups on a chromosome
// absent from either mapping behave as lookups in an empty set.
type Sets struct {
	exonBounds map[string]map[int64]struct{}
	splices    map[string]map[Junction]struct{}
}

// NewSets creates empty reference sets.
func NewSets() *Sets {
	return &Sets{
		exonBounds: make(map[string]map[int64]struct{}),
		splices:    make(map[string]map[Junction]struct{}),
	}
}

// AddExonBound records a known exon-boundary position.
func (s *Sets) AddExonBound(chrom string, pos int64) {
	set, ok := s.exonBounds[chrom]
	if !ok {
		set = make(map[int64]struct{})
		s.exonBounds[chrom] = set
	}
	set[pos] = struct{}{}
}

// AddSplice records a known splice junction. The pair is canonicalised.
func (s *Sets) AddSplice(chrom string, a, b int64) {
	set, ok := s.splices[chrom]
	if !ok {
		set = make(map[Junction]struct{})
		s.splices[chrom] = set
	}
	set[NewJunction(a, b)] = struct{}{}
}

// IsExonBound reports whether pos is a known exon boundary on chrom.
func (s *Sets) IsExonBound(chrom string, pos int64) bool {
	_, ok := s.exonBounds[chrom][pos]
	return ok
}

// IsSplice reports whether j is a known splice junction on chrom.
func (s *Sets) IsSplice(chrom string, j Junction) bool {
	_, ok := s.splices[chrom][j]
	return ok
}

// ExonBoundCount returns the total number of exon-boundary positions.
func (s *Sets) ExonBoundCount() int {
	n := 0
	for _, set := range s.exonBounds {
		n += len(set)
	}
	return n
}

// SpliceCount returns the total number of splice junctions.
func (s *Sets) SpliceCount() int {
	n := 0
	for _, set := range s.splices {
		n += len(set)
	}
	return n
}

// Chromosomes returns the sorted union of chromosomes in both mappings.
func (s *Sets) Chromosomes() []string {
	seen := make(map[string]bool)
	for c := range s.exonBounds {
		seen[c] = true
	}
	for c := range s.splices {
		seen[c] = true
	}
	chroms := make([]string, 0, len(seen))
	for c := range seen {
		chroms = append(chroms, c)
	}
	sort.Strings(chroms)
	return chroms
}
