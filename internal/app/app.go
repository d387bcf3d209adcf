// Package app runs the barcode pipeline end to end: read both inputs,
// validate and merge them, write the aggregated file and report the top
// customers and unused barcodes.
//
// Stages run in a fixed order. Validation findings are warnings and the run
// continues with corrected data; read, merge and aggregation failures end the
// run. Every run, successful or not, is recorded in the run store when one is
// configured.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tickets/internal/apperr"
	"github.com/JonMunkholm/tickets/internal/logging"
	"github.com/JonMunkholm/tickets/internal/process"
	"github.com/JonMunkholm/tickets/internal/reader"
	"github.com/JonMunkholm/tickets/internal/report"
	"github.com/JonMunkholm/tickets/internal/store"
	"github.com/JonMunkholm/tickets/internal/table"
	"github.com/JonMunkholm/tickets/internal/validate"
)

// ErrNoDataRows is the cause of a read failure for an input with a header
// but no rows.
var ErrNoDataRows = errors.New("no data row")

// IDColumns are the input columns read as integers. A non-integer id fails
// the read instead of silently breaking the join.
var IDColumns = []string{process.ColOrderID, process.ColCustomerID}

// Inputs are the parameters of one run.
type Inputs struct {
	BarcodesPath string
	OrdersPath   string
	OutputDir    string
	TopN         int

	// PerRunOutput places the output file in OutputDir/<run id>.
	PerRunOutput bool
}

// Outcome is what a run produced. On failure it holds whatever the stages
// before the failure produced.
type Outcome struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	BarcodeRows int
	OrderRows   int

	// Findings are the validation warnings, in stage order.
	Findings []validate.ValidationError

	DuplicateCount int
	OrphanCount    int

	Aggregated   *table.Table
	OutputFile   string
	TopCustomers []store.CustomerTotal
	Unused       int

	// Warnings lists non-fatal stage failures.
	Warnings []string
}

// Deps are the collaborators of an App. Nil fields get defaults, except
// Store and Console which are optional.
type Deps struct {
	Reader    reader.Reader
	Validator validate.Validator
	Processor process.Processor
	Store     store.Store
	Console   *report.Console
	Now       func() time.Time
}

// App sequences the pipeline stages.
type App struct {
	reader    reader.Reader
	validator validate.Validator
	processor process.Processor
	store     store.Store
	console   *report.Console
	now       func() time.Time
}

// New returns an App using d.
func New(d Deps) *App {
	a := &App{
		reader:    d.Reader,
		validator: d.Validator,
		processor: d.Processor,
		store:     d.Store,
		console:   d.Console,
		now:       d.Now,
	}
	if a.reader == nil {
		a.reader = reader.NewCSVReader(0, IDColumns...)
	}
	if a.validator == nil {
		a.validator = validate.New()
	}
	if a.processor == nil {
		a.processor = process.New()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Run executes the pipeline. The returned Outcome is never nil; err is
// non-nil when a fatal stage failed.
func (a *App) Run(ctx context.Context, in Inputs) (*Outcome, error) {
	out := &Outcome{RunID: uuid.New(), StartedAt: a.now()}
	log := logging.WithFields(ctx, "run_id", out.RunID)

	log.Debug("run started",
		"barcodes", in.BarcodesPath,
		"orders", in.OrdersPath,
		"top_n", in.TopN,
	)

	err := a.run(ctx, in, out, log)
	out.FinishedAt = a.now()

	if err != nil {
		log.Error("run failed", "error", err, "kind", apperr.Kind(err))
	} else {
		log.Info("run completed",
			"output", out.OutputFile,
			"aggregated", out.Aggregated.Len(),
			"duration", out.FinishedAt.Sub(out.StartedAt),
		)
	}

	a.record(ctx, in, out, err, log)
	return out, err
}

func (a *App) run(ctx context.Context, in Inputs, out *Outcome, log *slog.Logger) error {
	barcodes, orders, err := reader.ReadPair(ctx, a.reader, in.BarcodesPath, in.OrdersPath)
	if err != nil {
		return err
	}
	out.BarcodeRows = barcodes.Len()
	out.OrderRows = orders.Len()

	if err := requireRows("barcodes", in.BarcodesPath, barcodes, log); err != nil {
		return err
	}
	if err := requireRows("orders", in.OrdersPath, orders, log); err != nil {
		return err
	}

	// Barcodes
	res := a.validator.ValidateBarcodes(barcodes, process.ColBarcode)
	if res.Err != nil {
		return apperr.Processing("validate barcodes", res.Err)
	}
	if !res.Valid {
		for _, e := range res.Errors {
			out.DuplicateCount += len(e.FailedRows)
			log.Warn(e.Message, "rows", len(e.FailedRows))
			if a.console != nil {
				a.console.Duplicates(e.FailedRows)
			}
		}
		out.Findings = append(out.Findings, res.Errors...)
		barcodes = res.Data
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	state, err := a.processor.Merge(barcodes, orders)
	if err != nil {
		return apperr.Processing("merge", err)
	}

	// Orders
	res = a.validator.ValidateOrders(state.Merged, process.ColBarcode)
	if res.Err != nil {
		return apperr.Processing("validate orders", res.Err)
	}
	if !res.Valid {
		for _, e := range res.Errors {
			out.OrphanCount += len(e.FailedRows)
			log.Warn(e.Message, "rows", len(e.FailedRows), "detail", e.String())
			if a.console != nil {
				a.console.Orphans(e.FailedRows)
			}
		}
		out.Findings = append(out.Findings, res.Errors...)
		state = state.WithMerged(res.Data)
	}

	agg, err := a.processor.Aggregate(state)
	if err != nil {
		return apperr.Processing("aggregate", err)
	}
	out.Aggregated = agg

	dir := in.OutputDir
	if in.PerRunOutput {
		dir = filepath.Join(dir, out.RunID.String())
	}
	name := report.OutputFileName(in.OrdersPath, in.BarcodesPath, out.StartedAt)
	path, err := report.WriteFile(dir, name, agg)
	if err != nil {
		return apperr.Processing("write output", err)
	}
	out.OutputFile = path
	if a.console != nil {
		a.console.OutputFile(path)
	}

	a.reportTop(state, in.TopN, out, log)
	a.reportUnused(state, out, log)

	return nil
}

// requireRows fails the run when t has no rows.
func requireRows(kind, path string, t *table.Table, log *slog.Logger) error {
	if t.Len() > 0 {
		return nil
	}
	name := filepath.Base(path)
	log.Warn(fmt.Sprintf("No data row in %s file: %s", kind, name))
	return apperr.Read(name, ErrNoDataRows)
}

func (a *App) reportTop(state process.State, n int, out *Outcome, log *slog.Logger) {
	top, err := a.processor.TopCustomers(state, n)
	if err != nil {
		out.warn(log, "top customers unavailable", err)
		return
	}

	totals := make([]store.CustomerTotal, 0, top.Len())
	for _, r := range top.Records() {
		id, _ := r.Get(process.ColCustomerID)
		total, _ := r.Get(process.ColTotalBarcodes)
		count, _ := total.(int64)
		totals = append(totals, store.CustomerTotal{CustomerID: table.FormatValue(id), Total: count})
	}
	out.TopCustomers = totals

	if a.console != nil {
		if err := a.console.TopCustomers(n, top); err != nil {
			out.warn(log, "top customers not printed", err)
		}
	}
}

func (a *App) reportUnused(state process.State, out *Outcome, log *slog.Logger) {
	unused, err := a.processor.UnusedBarcodes(state)
	if err != nil {
		out.warn(log, "unused barcodes unavailable", err)
		return
	}
	out.Unused = unused

	if a.console != nil {
		a.console.Unused(unused)
	}
}

func (o *Outcome) warn(log *slog.Logger, msg string, err error) {
	log.Warn(msg, "error", err)
	o.Warnings = append(o.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

// record stores the run summary. Store failures are logged only.
func (a *App) record(ctx context.Context, in Inputs, out *Outcome, runErr error, log *slog.Logger) {
	if a.store == nil {
		return
	}

	// The summary is written even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	if err := a.store.SaveRun(ctx, out.Summary(in, runErr)); err != nil {
		log.Warn("failed to record run", "error", err)
	}
}

// Summary converts the outcome into a stored run.
func (o *Outcome) Summary(in Inputs, runErr error) *store.Run {
	run := &store.Run{
		ID:             o.RunID,
		StartedAt:      o.StartedAt,
		FinishedAt:     o.FinishedAt,
		BarcodesFile:   filepath.Base(in.BarcodesPath),
		OrdersFile:     filepath.Base(in.OrdersPath),
		OutputFile:     o.OutputFile,
		TopN:           in.TopN,
		BarcodeRows:    o.BarcodeRows,
		OrderRows:      o.OrderRows,
		DuplicateCount: o.DuplicateCount,
		OrphanCount:    o.OrphanCount,
		UnusedCount:    o.Unused,
		TopCustomers:   o.TopCustomers,
		Status:         store.StatusCompleted,
	}
	if o.Aggregated != nil {
		run.AggregatedCount = o.Aggregated.Len()
	}
	if runErr != nil {
		run.Status = store.StatusFailed
		run.Error = runErr.Error()
	}
	return run
}
