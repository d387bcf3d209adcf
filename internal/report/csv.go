// Package report writes pipeline results: the aggregated CSV file and the
// console summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tickets/internal/table"
)

// timestampLayout is YYYYmmddHHMMSS.
const timestampLayout = "20060102150405"

// OutputFileName builds `<orders-stem>_<barcodes-stem>_<timestamp>.csv`.
func OutputFileName(ordersPath, barcodesPath string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", stem(ordersPath), stem(barcodesPath), now.Format(timestampLayout))
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WriteCSV writes t with a header row. Null cells are written empty.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(t.Columns()))
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			record[j] = cell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// WriteFile writes t as CSV to dir/name, creating dir if needed, and
// returns the full path.
func WriteFile(dir, name string, t *table.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}

	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}
	return path, nil
}
