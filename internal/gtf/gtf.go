// Package gtf builds gene identifier to gene name mappings from GTF files.
package gtf

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/juncclass/internal/gzio"
)

// GeneNames maps Ensembl gene IDs to gene names.
type GeneNames map[string]string

// LoadGeneNames reads a GTF file (plain or gzipped) and returns the gene
// name of every gene_id. The first line mentioning a gene_id wins.
func LoadGeneNames(path string) (GeneNames, error) {
	rc, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer rc.Close()

	return ParseGeneNames(rc)
}

// ParseGeneNames parses GTF content from r.
func ParseGeneNames(r io.Reader) (GeneNames, error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	names := make(GeneNames)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			continue // Skip malformed lines
		}

		attrs := parseAttributes(fields[8])
		id := attrs["gene_id"]
		if id == "" {
			continue
		}
		if _, seen := names[id]; seen {
			continue
		}
		if name := attrs["gene_name"]; name != "" {
			names[id] = name
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}
	return names, nil
}

// Lookup returns the gene name for id, falling back to the unversioned ID.
func (g GeneNames) Lookup(id string) (string, bool) {
	if name, ok := g[id]; ok {
		return name, true
	}
	name, ok := g[stripVersion(id)]
	return name, ok
}

// parseAttributes parses GTF attribute column.
// Format: key "value"; key "value"; ...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, " ")
		if !ok {
			continue
		}
		attrs[key] = strings.Trim(strings.TrimSpace(value), "\"")
	}

	return attrs
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENSG00000133703.14" -> "ENSG00000133703"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}
