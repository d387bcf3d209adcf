package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	barcodes_file TEXT NOT NULL,
	orders_file TEXT NOT NULL,
	output_file TEXT NOT NULL DEFAULT '',
	top_n INTEGER NOT NULL,
	barcode_rows INTEGER NOT NULL,
	order_rows INTEGER NOT NULL,
	duplicate_count INTEGER NOT NULL,
	orphan_count INTEGER NOT NULL,
	unused_count INTEGER NOT NULL,
	aggregated_count INTEGER NOT NULL,
	top_customers TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at);
`

const runColumns = `id, started_at, finished_at, barcodes_file, orders_file, output_file,
	top_n, barcode_rows, order_rows, duplicate_count, orphan_count, unused_count,
	aggregated_count, top_customers, status, error`

// SQLite stores runs in a local sqlite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveRun(ctx context.Context, run *Run) error {
	top, err := marshalTop(run.TopCustomers)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.BarcodesFile, run.OrdersFile,
		run.OutputFile, run.TopN, run.BarcodeRows, run.OrderRows, run.DuplicateCount,
		run.OrphanCount, run.UnusedCount, run.AggregatedCount, string(top), run.Status, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String())

	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(sc scanner) (*Run, error) {
	var (
		run Run
		id  string
		top string
	)
	err := sc.Scan(&id, &run.StartedAt, &run.FinishedAt, &run.BarcodesFile, &run.OrdersFile,
		&run.OutputFile, &run.TopN, &run.BarcodeRows, &run.OrderRows, &run.DuplicateCount,
		&run.OrphanCount, &run.UnusedCount, &run.AggregatedCount, &top, &run.Status, &run.Error)
	if err != nil {
		return nil, err
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	if run.TopCustomers, err = unmarshalTop([]byte(top)); err != nil {
		return nil, err
	}
	return &run, nil
}

func marshalTop(top []CustomerTotal) ([]byte, error) {
	if top == nil {
		top = []CustomerTotal{}
	}
	b, err := json.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal top customers: %w", err)
	}
	return b, nil
}

func unmarshalTop(b []byte) ([]CustomerTotal, error) {
	top := []CustomerTotal{}
	if len(b) == 0 {
		return top, nil
	}
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, fmt.Errorf("failed to unmarshal top customers: %w", err)
	}
	return top, nil
}
