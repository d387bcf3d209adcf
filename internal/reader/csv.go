// Package reader loads CSV input files into tables.
//
// Columns declared as integer columns must hold base-10 integers in every
// non-empty cell; anything else fails the read. Other column types are
// inferred from the data: a column whose non-empty cells all parse as
// integers becomes an integer column, anything else is kept as text. Empty
// cells are null in either case.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tickets/internal/apperr"
	"github.com/JonMunkholm/tickets/internal/table"
)

// ErrEmptyFile is returned for input without a header row.
var ErrEmptyFile = errors.New("empty file")

// Reader loads a table from a file path.
type Reader interface {
	Read(ctx context.Context, path string) (*table.Table, error)
}

// CSVReader reads comma-separated files with a header row.
type CSVReader struct {
	// MaxBytes caps the size of a single input. Zero means unlimited.
	MaxBytes int64

	// IntColumns are always read as integers when present in the header.
	IntColumns []string
}

// NewCSVReader returns a CSVReader with the given size cap and declared
// integer columns.
func NewCSVReader(maxBytes int64, intColumns ...string) *CSVReader {
	return &CSVReader{MaxBytes: maxBytes, IntColumns: intColumns}
}

// Read opens path and decodes it. Every failure is a *apperr.ReadError
// naming the file.
func (r *CSVReader) Read(ctx context.Context, path string) (*table.Table, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Read(name, err)
	}
	defer f.Close()

	return r.Decode(ctx, name, f)
}

// Decode reads CSV data from src. name is used in error messages only.
func (r *CSVReader) Decode(ctx context.Context, name string, src io.Reader) (*table.Table, error) {
	t, err := decode(ctx, wrapInput(src, r.MaxBytes), r.IntColumns)
	if err != nil {
		return nil, apperr.Read(name, err)
	}
	return t, nil
}

// ctxCheckEvery is how many records are read between context checks.
const ctxCheckEvery = 4096

func decode(ctx context.Context, src io.Reader, intColumns []string) (*table.Table, error) {
	cr := csv.NewReader(src)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q in header", h)
		}
		seen[h] = true
	}

	var records [][]string
	for {
		if len(records)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return build(header, records, intColumns)
}

// build types the columns and converts the raw records into a table.
func build(header []string, records [][]string, intColumns []string) (*table.Table, error) {
	declared := make(map[string]bool, len(intColumns))
	for _, c := range intColumns {
		declared[c] = true
	}

	isInt := make([]bool, len(header))
	for c, name := range header {
		if declared[name] {
			if err := checkInts(records, c, name); err != nil {
				return nil, err
			}
			isInt[c] = true
			continue
		}
		isInt[c] = intColumn(records, c)
	}

	t := table.New(header...)
	row := make([]any, len(header))
	for _, rec := range records {
		for c, cell := range rec {
			switch {
			case cell == "":
				row[c] = nil
			case isInt[c]:
				v, _ := strconv.ParseInt(cell, 10, 64)
				row[c] = v
			default:
				row[c] = cell
			}
		}
		if err := t.Append(row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// checkInts fails on the first non-empty cell of column c that is not an
// integer. Line numbers count the header as line 1.
func checkInts(records [][]string, c int, name string) error {
	for i, rec := range records {
		cell := rec[c]
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			return fmt.Errorf("column %q: invalid integer %q on line %d", name, cell, i+2)
		}
	}
	return nil
}

// intColumn reports whether every non-empty cell of column c is an integer.
// A column with no non-empty cells is not considered numeric.
func intColumn(records [][]string, c int) bool {
	found := false
	for _, rec := range records {
		cell := rec[c]
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			return false
		}
		found = true
	}
	return found
}
