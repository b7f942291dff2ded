// Package gzio opens plain or gzip-compressed input files transparently.
package gzio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	gzip "github.com/klauspost/pgzip"
)

// ReadCloser reads decompressed content from an underlying file.
type ReadCloser struct {
	*bufio.Reader
	file *os.File
	gz   *gzip.Reader
}

// Open opens path for reading. Gzip input is detected by its magic bytes
// (0x1f, 0x8b), not by the file extension.
func Open(path string) (*ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc, err := wrap(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rc.file = f
	return rc, nil
}

// NewReader wraps r, decompressing it if it starts with the gzip magic bytes.
func NewReader(r io.Reader) (*ReadCloser, error) {
	return wrap(r)
}

func wrap(r io.Reader) (*ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return &ReadCloser{Reader: bufio.NewReader(gz), gz: gz}, nil
	}
	return &ReadCloser{Reader: br}, nil
}

// Close releases the gzip stream and the file, if any.
func (rc *ReadCloser) Close() error {
	if rc.gz != nil {
		rc.gz.Close()
	}
	if rc.file != nil {
		return rc.file.Close()
	}
	return nil
}
