// Package classinput reads per-lane class-input files: tab-separated
// alignment records with one row per candidate read-to-junction mapping.
package classinput

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/juncclass/internal/gzio"
)

// Class-input column names.
const (
	ColRefName  = "refName_newR1"
	ColUMI      = "UMI"
	ColBarcode  = "barcode"
	ColGene     = "geneR1A_uniq"
	ColJuncPosA = "juncPosR1A"
	ColJuncPosB = "juncPosR1B"
	ColChrA     = "chrR1A"
	ColChrB     = "chrR1B"
	ColNH       = "NHR1A"
	ColFileType = "fileTypeR1"
)

// RequiredColumns lists the columns every class-input file must carry.
var RequiredColumns = []string{
	ColRefName, ColUMI, ColBarcode, ColGene,
	ColJuncPosA, ColJuncPosB, ColChrA, ColChrB, ColFileType,
}

// FileTypeAligned marks records eligible for classification.
const FileTypeAligned = "Aligned"

// Record is one raw alignment record.
type Record struct {
	RefName  string
	UMI      string
	Barcode  string
	Gene     string // empty when the gene is missing
	JuncPosA int64
	JuncPosB int64
	ChrA     string
	ChrB     string
	NH       sql.NullInt64
	FileType string
}

// columnIndices holds header positions; -1 means absent.
type columnIndices struct {
	refName, umi, barcode, gene    int
	juncPosA, juncPosB, chrA, chrB int
	nh, fileType                   int
}

// Parser reads records from a class-input file.
type Parser struct {
	rc         *gzio.ReadCloser
	lineNumber int
	columns    columnIndices
	width      int
	intern     map[string]string
}

// NewParser opens a class-input file, plain or gzipped, and validates its
// header against RequiredColumns.
func NewParser(path string) (*Parser, error) {
	rc, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class input: %w", err)
	}
	p := &Parser{rc: rc, intern: make(map[string]string)}
	if err := p.parseHeader(); err != nil {
		rc.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	rc, err := gzio.NewReader(r)
	if err != nil {
		return nil, err
	}
	p := &Parser{rc: rc, intern: make(map[string]string)}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadAll reads every record of the file at path.
func ReadAll(path string) ([]Record, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.readAll()
}

func (p *Parser) readAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := p.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return records, nil
		}
		records = append(records, *rec)
	}
}

func (p *Parser) parseHeader() error {
	line, err := p.rc.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return &ParseError{Line: 0, Message: "no header line found"}
		}
		return fmt.Errorf("read header: %w", err)
	}
	p.lineNumber++
	line = strings.TrimRight(line, "\r\n")

	p.columns = columnIndices{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
	fields := strings.Split(line, "\t")
	p.width = len(fields)
	for i, col := range fields {
		switch col {
		case ColRefName:
			p.columns.refName = i
		case ColUMI:
			p.columns.umi = i
		case ColBarcode:
			p.columns.barcode = i
		case ColGene:
			p.columns.gene = i
		case ColJuncPosA:
			p.columns.juncPosA = i
		case ColJuncPosB:
			p.columns.juncPosB = i
		case ColChrA:
			p.columns.chrA = i
		case ColChrB:
			p.columns.chrB = i
		case ColNH:
			p.columns.nh = i
		case ColFileType:
			p.columns.fileType = i
		}
	}

	required := []struct {
		name string
		idx  int
	}{
		{ColRefName, p.columns.refName},
		{ColUMI, p.columns.umi},
		{ColBarcode, p.columns.barcode},
		{ColGene, p.columns.gene},
		{ColJuncPosA, p.columns.juncPosA},
		{ColJuncPosB, p.columns.juncPosB},
		{ColChrA, p.columns.chrA},
		{ColChrB, p.columns.chrB},
		{ColFileType, p.columns.fileType},
	}
	for _, r := range required {
		if r.idx == -1 {
			return &SchemaError{Column: r.name}
		}
	}
	return nil
}

// Next reads the next record.
// Returns nil, nil when there are no more records.
func (p *Parser) Next() (*Record, error) {
	for {
		line, err := p.rc.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read record line: %w", err)
		}
		if line == "" && err == io.EOF {
			return nil, nil
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		return p.parseLine(line)
	}
}

func (p *Parser) parseLine(line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != p.width {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected %d columns, found %d", p.width, len(fields)),
		}
	}

	posA, err := p.parsePos(fields[p.columns.juncPosA], ColJuncPosA)
	if err != nil {
		return nil, err
	}
	posB, err := p.parsePos(fields[p.columns.juncPosB], ColJuncPosB)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		RefName:  fields[p.columns.refName],
		UMI:      fields[p.columns.umi],
		Barcode:  fields[p.columns.barcode],
		JuncPosA: posA,
		JuncPosB: posB,
		ChrA:     p.interned(fields[p.columns.chrA]),
		ChrB:     p.interned(fields[p.columns.chrB]),
		FileType: p.interned(fields[p.columns.fileType]),
	}
	if g := fields[p.columns.gene]; !isMissing(g) {
		rec.Gene = p.interned(g)
	}

	if p.columns.nh >= 0 {
		if v := fields[p.columns.nh]; !isMissing(v) {
			nh, err := parseNumber(v)
			if err != nil {
				return nil, &ParseError{
					Line:    p.lineNumber,
					Message: fmt.Sprintf("invalid %s: %s", ColNH, v),
				}
			}
			rec.NH = sql.NullInt64{Int64: nh, Valid: true}
		}
	}

	return rec, nil
}

func (p *Parser) parsePos(s, col string) (int64, error) {
	n, err := parseNumber(s)
	if err != nil {
		return 0, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid %s: %q", col, s),
		}
	}
	return n, nil
}

// interned returns a shared copy of s; chromosome, gene and file-type
// values repeat heavily within a file.
func (p *Parser) interned(s string) string {
	if v, ok := p.intern[s]; ok {
		return v
	}
	p.intern[s] = s
	return s
}

// parseNumber accepts integers, and integral floats such as "100.0" written
// by tools that store integer columns as floats.
func parseNumber(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, errors.New("not an integer")
	}
	return int64(f), nil
}

func isMissing(s string) bool {
	switch s {
	case "", "nan", "NaN", "NA":
		return true
	}
	return false
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	return p.rc.Close()
}

// ParseError represents an error during class-input parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("class input parse error at line %d: %s", e.Line, e.Message)
}

// SchemaError reports a required column missing from a class-input header.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("class input schema violation: required column %q not found in header", e.Column)
}
