// Package table reads and writes the comma-separated tables that the
// pipeline stages exchange.
//
// Reads are streaming with a normalized header; writes are atomic: rows go
// to a temporary file in the destination directory which is renamed over
// the target only when every row has been written.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/leapstack-labs/incidentgraph/pkg/schema"
)

// Reader streams the data rows of a CSV table.
type Reader struct {
	Path   string
	Header schema.Header

	f   *os.File
	csv *csv.Reader
}

// Open opens path and consumes its header row. A file with no rows yields
// an empty header rather than an error so callers report missing columns
// in their own terms.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	r := &Reader{Path: path, f: f, csv: cr}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return r, nil
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	r.Header = schema.NewHeader(header)
	return r, nil
}

// Next returns the next data row and its 1-based line number in the file.
// It returns io.EOF after the last row.
func (r *Reader) Next() ([]string, int, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("failed to read %s: %w", r.Path, err)
	}
	line, _ := r.csv.FieldPos(0)
	return rec, line, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Cell returns rec[i], or "" when the row is shorter than the header.
func Cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// Row is implemented by every typed record that can be written as a table row.
type Row interface {
	Row() []string
}

// WriteRows atomically writes header followed by one line per row.
func WriteRows[T Row](path string, header []string, rows []T) error {
	return WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, row := range rows {
			if err := cw.Write(row.Row()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
