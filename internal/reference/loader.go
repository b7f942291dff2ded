package reference

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/juncclass/internal/gzio"
)

// ErrMalformed is returned when a reference file cannot be parsed.
var ErrMalformed = errors.New("malformed reference file")

// Load reads the exon-boundary and splice-junction files into a new Sets.
// Files ending in .json (optionally .json.gz) are read as JSON objects keyed
// by chromosome; anything else is read as tab-separated lines.
func Load(exonPath, splicePath string) (*Sets, error) {
	s := NewSets()
	if err := loadFile(exonPath, func(r io.Reader) error { return s.readExonBounds(r, isJSON(exonPath)) }); err != nil {
		return nil, fmt.Errorf("load exon bounds: %w", err)
	}
	if err := loadFile(splicePath, func(r io.Reader) error { return s.readSplices(r, isJSON(splicePath)) }); err != nil {
		return nil, fmt.Errorf("load splice junctions: %w", err)
	}
	return s, nil
}

func isJSON(path string) bool {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	return strings.HasSuffix(p, ".json")
}

func loadFile(path string, read func(io.Reader) error) error {
	rc, err := gzio.Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return read(rc)
}

func (s *Sets) readExonBounds(r io.Reader, asJSON bool) error {
	if asJSON {
		var data map[string][]int64
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for chrom, positions := range data {
			for _, p := range positions {
				s.AddExonBound(chrom, p)
			}
		}
		return nil
	}

	return scanLines(r, 2, func(fields []string, nums []int64) {
		s.AddExonBound(fields[0], nums[0])
	})
}

func (s *Sets) readSplices(r io.Reader, asJSON bool) error {
	if asJSON {
		var data map[string][][]int64
		if err := json.NewDecoder(r).Decode(&data); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for chrom, pairs := range data {
			for i, p := range pairs {
				if len(p) != 2 {
					return fmt.Errorf("%w: %s junction %d has %d positions", ErrMalformed, chrom, i, len(p))
				}
				s.AddSplice(chrom, p[0], p[1])
			}
		}
		return nil
	}

	return scanLines(r, 3, func(fields []string, nums []int64) {
		s.AddSplice(fields[0], nums[0], nums[1])
	})
}

// scanLines parses tab-separated lines of a chromosome followed by
// want-1 integer positions.
func scanLines(r io.Reader, want int, add func(fields []string, nums []int64)) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	nums := make([]int64, want-1)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != want {
			return fmt.Errorf("%w: line %d: expected %d columns, found %d", ErrMalformed, lineNum, want, len(fields))
		}
		for i := range nums {
			n, err := strconv.ParseInt(fields[i+1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: line %d: invalid position %q", ErrMalformed, lineNum, fields[i+1])
			}
			nums[i] = n
		}
		add(fields, nums)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan reference: %w", err)
	}
	return nil
}
