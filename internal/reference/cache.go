package reference

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Cache manages gob-serialized reference sets on disk:
//
//	{dir}/reference.gob       (serialized sets)
//	{dir}/reference.gob.meta  (source file fingerprints)
type Cache struct {
	dir string
}

// NewCache creates a reference cache for the given directory.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// snapshot is the gob form of Sets; gob cannot encode empty struct values.
type snapshot struct {
	ExonBounds map[string][]int64
	Splices    map[string][][2]int64
}

func (c *Cache) gobPath() string {
	return filepath.Join(c.dir, "reference.gob")
}

func (c *Cache) metaPath() string {
	return filepath.Join(c.dir, "reference.gob.meta")
}

// Valid checks whether the cached sets match the current source files.
func (c *Cache) Valid(exon, splice FileFingerprint) bool {
	meta, err := c.readMeta()
	if err != nil {
		return false
	}

	checks := []struct{ key, val string }{
		{"exon_size", strconv.FormatInt(exon.Size, 10)},
		{"exon_modtime", exon.ModTime.UTC().Format(time.RFC3339Nano)},
		{"splice_size", strconv.FormatInt(splice.Size, 10)},
		{"splice_modtime", splice.ModTime.UTC().Format(time.RFC3339Nano)},
	}
	for _, ck := range checks {
		if meta[ck.key] != ck.val {
			return false
		}
	}

	if _, err := os.Stat(c.gobPath()); err != nil {
		return false
	}
	return true
}

// Load reads the cached sets from disk.
func (c *Cache) Load() (*Sets, error) {
	f, err := os.Open(c.gobPath())
	if err != nil {
		return nil, fmt.Errorf("open reference cache: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode reference cache: %w", err)
	}

	s := NewSets()
	for chrom, positions := range snap.ExonBounds {
		for _, p := range positions {
			s.AddExonBound(chrom, p)
		}
	}
	for chrom, pairs := range snap.Splices {
		for _, p := range pairs {
			s.AddSplice(chrom, p[0], p[1])
		}
	}
	return s, nil
}

// Write serializes the sets to disk along with the source fingerprints.
func (c *Cache) Write(s *Sets, exon, splice FileFingerprint) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	snap := snapshot{
		ExonBounds: make(map[string][]int64, len(s.exonBounds)),
		Splices:    make(map[string][][2]int64, len(s.splices)),
	}
	for chrom, set := range s.exonBounds {
		positions := make([]int64, 0, len(set))
		for p := range set {
			positions = append(positions, p)
		}
		snap.ExonBounds[chrom] = positions
	}
	for chrom, set := range s.splices {
		pairs := make([][2]int64, 0, len(set))
		for j := range set {
			pairs = append(pairs, [2]int64{j.Lo, j.Hi})
		}
		snap.Splices[chrom] = pairs
	}

	f, err := os.Create(c.gobPath())
	if err != nil {
		return fmt.Errorf("create reference cache: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(c.gobPath())
		return fmt.Errorf("encode reference cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close reference cache: %w", err)
	}

	return c.writeMeta(exon, splice)
}

// Clear removes the cached files.
func (c *Cache) Clear() {
	os.Remove(c.gobPath())
	os.Remove(c.metaPath())
}

func (c *Cache) writeMeta(exon, splice FileFingerprint) error {
	lines := []string{
		"exon_size=" + strconv.FormatInt(exon.Size, 10),
		"exon_modtime=" + exon.ModTime.UTC().Format(time.RFC3339Nano),
		"splice_size=" + strconv.FormatInt(splice.Size, 10),
		"splice_modtime=" + splice.ModTime.UTC().Format(time.RFC3339Nano),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(c.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (c *Cache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(c.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}

// LoadCached returns the reference sets for the two source files, using the
// cache in dir when it is still valid and refreshing it otherwise. An empty
// dir disables caching. The second return value reports a cache hit.
func LoadCached(dir, exonPath, splicePath string) (*Sets, bool, error) {
	if dir == "" {
		s, err := Load(exonPath, splicePath)
		return s, false, err
	}

	exonFP, err := StatFile(exonPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat exon bounds: %w", err)
	}
	spliceFP, err := StatFile(splicePath)
	if err != nil {
		return nil, false, fmt.Errorf("stat splice junctions: %w", err)
	}

	c := NewCache(dir)
	if c.Valid(exonFP, spliceFP) {
		if s, err := c.Load(); err == nil {
			return s, true, nil
		}
		c.Clear()
	}

	s, err := Load(exonPath, splicePath)
	if err != nil {
		return nil, false, err
	}
	if err := c.Write(s, exonFP, spliceFP); err != nil {
		return nil, false, err
	}
	return s, false, nil
}
