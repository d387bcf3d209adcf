package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ticket_runs (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
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
	top_customers JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS ticket_runs_started_at_idx ON ticket_runs (started_at DESC);
`

// Postgres stores runs in PostgreSQL through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL, verifies the connection and
// ensures the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveRun(ctx context.Context, run *Run) error {
	top, err := marshalTop(run.TopCustomers)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO ticket_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			output_file = EXCLUDED.output_file,
			duplicate_count = EXCLUDED.duplicate_count,
			orphan_count = EXCLUDED.orphan_count,
			unused_count = EXCLUDED.unused_count,
			aggregated_count = EXCLUDED.aggregated_count,
			top_customers = EXCLUDED.top_customers,
			status = EXCLUDED.status,
			error = EXCLUDED.error`,
		run.ID, run.StartedAt, run.FinishedAt, run.BarcodesFile, run.OrdersFile,
		run.OutputFile, run.TopN, run.BarcodeRows, run.OrderRows, run.DuplicateCount,
		run.OrphanCount, run.UnusedCount, run.AggregatedCount, top, run.Status, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM ticket_runs WHERE id = $1`, id)

	run, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM ticket_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanPostgresRun(sc pgx.Row) (*Run, error) {
	var (
		run Run
		top []byte
	)
	err := sc.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.BarcodesFile, &run.OrdersFile,
		&run.OutputFile, &run.TopN, &run.BarcodeRows, &run.OrderRows, &run.DuplicateCount,
		&run.OrphanCount, &run.UnusedCount, &run.AggregatedCount, &top, &run.Status, &run.Error)
	if err != nil {
		return nil, err
	}

	if run.TopCustomers, err = unmarshalTop(top); err != nil {
		return nil, err
	}
	return &run, nil
}
