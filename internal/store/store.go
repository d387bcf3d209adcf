// Package store persists a summary of every pipeline run.
//
// Three drivers are available: "memory" (default, process lifetime only),
// "sqlite" (a local file) and "postgres" (a shared database).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CustomerTotal is one entry of a run's top customer ranking.
type CustomerTotal struct {
	CustomerID string `json:"customer_id"`
	Total      int64  `json:"total_barcodes"`
}

// Run is the stored summary of one pipeline run.
type Run struct {
	ID              uuid.UUID       `json:"id"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	BarcodesFile    string          `json:"barcodes_file"`
	OrdersFile      string          `json:"orders_file"`
	OutputFile      string          `json:"output_file,omitempty"`
	TopN            int             `json:"top_n"`
	BarcodeRows     int             `json:"barcode_rows"`
	OrderRows       int             `json:"order_rows"`
	DuplicateCount  int             `json:"duplicate_count"`
	OrphanCount     int             `json:"orphan_count"`
	UnusedCount     int             `json:"unused_count"`
	AggregatedCount int             `json:"aggregated_count"`
	TopCustomers    []CustomerTotal `json:"top_customers"`
	Status          string          `json:"status"`
	Error           string          `json:"error,omitempty"`
}

// Store saves and loads run summaries.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	// ListRuns returns the most recent runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// Open returns the store for driver. dsn is the sqlite file path or the
// postgres connection URL and is ignored by the memory driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, dsn)
	case "postgres", "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
