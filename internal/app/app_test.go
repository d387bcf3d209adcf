package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tickets/internal/apperr"
	"github.com/JonMunkholm/tickets/internal/process"
	"github.com/JonMunkholm/tickets/internal/report"
	"github.com/JonMunkholm/tickets/internal/store"
	"github.com/JonMunkholm/tickets/internal/table"
	"github.com/JonMunkholm/tickets/internal/validate"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

type fixture struct {
	app     *App
	store   *store.Memory
	console *bytes.Buffer
	dir     string
	outDir  string
}

func newFixture(t *testing.T, p process.Processor) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		store:   store.NewMemory(),
		console: &bytes.Buffer{},
		dir:     dir,
		outDir:  filepath.Join(dir, "out"),
	}
	f.app = New(Deps{
		Processor: p,
		Store:     f.store,
		Console:   report.NewConsole(f.console),
		Now:       func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) inputs(barcodes, orders string, topN int) Inputs {
	return Inputs{
		BarcodesPath: filepath.Join(f.dir, barcodes),
		OrdersPath:   filepath.Join(f.dir, orders),
		OutputDir:    f.outDir,
		TopN:         topN,
	}
}

func TestRun_CleanInputs(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "barcodes.csv", "barcode,order_id\nA1,10\nB2,20\nC3,30\nB5,20\nU1,\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n20,2\n30,3\n")

	out, err := f.app.Run(context.Background(), f.inputs("barcodes.csv", "orders.csv", 2))
	require.NoError(t, err)

	assert.Equal(t, 5, out.BarcodeRows)
	assert.Equal(t, 3, out.OrderRows)
	assert.Empty(t, out.Findings)
	assert.Equal(t, 3, out.Aggregated.Len())
	assert.Equal(t, 1, out.Unused)
	assert.Empty(t, out.Warnings)

	wantPath := filepath.Join(f.outDir, "orders_barcodes_20240301093000.csv")
	assert.Equal(t, wantPath, out.OutputFile)
	assert.Equal(t, [][]string{
		{"customer_id", "order_id", "barcodes"},
		{"1", "10", `["A1"]`},
		{"2", "20", `["B2","B5"]`},
		{"3", "30", `["C3"]`},
	}, readCSV(t, wantPath))

	assert.Equal(t, []store.CustomerTotal{
		{CustomerID: "2", Total: 2},
		{CustomerID: "1", Total: 1},
	}, out.TopCustomers)

	console := f.console.String()
	assert.Contains(t, console, "Top 2 customers:")
	assert.Contains(t, console, "Number of unused barcodes: 1.")
	assert.Contains(t, console, wantPath)

	run, err := f.store.GetRun(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, run.Status)
	assert.Equal(t, "barcodes.csv", run.BarcodesFile)
	assert.Equal(t, 3, run.AggregatedCount)
	assert.Equal(t, 1, run.UnusedCount)
	assert.Empty(t, run.Error)
}

func TestRun_DuplicatesAndOrphans(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "barcodes.csv", "barcode,order_id\nA1,10\nA1,11\nB2,20\nC3,30\nA1,12\nD4,\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n20,2\n30,3\n")

	out, err := f.app.Run(context.Background(), f.inputs("barcodes.csv", "orders.csv", 5))
	require.NoError(t, err)

	require.Len(t, out.Findings, 2)
	assert.Equal(t, validate.MsgDuplicateBarcodes, out.Findings[0].Message)
	assert.Equal(t, validate.MsgOrphanOrders, out.Findings[1].Message)
	assert.Equal(t, 3, out.DuplicateCount)
	assert.Equal(t, 1, out.OrphanCount)

	// order 10 only had the duplicated A1 and is dropped as an orphan
	assert.Equal(t, 2, out.Aggregated.Len())
	assert.Equal(t, 1, out.Unused)

	console := f.console.String()
	assert.Contains(t, console, "A1, 10\nA1, 11\nA1, 12\n")
	assert.Contains(t, console, "Order 10 of customer 1 has no barcodes.\n")

	run, err := f.store.GetRun(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.DuplicateCount)
	assert.Equal(t, 1, run.OrphanCount)
}

func TestRun_UnusedCountsCleanedBarcodes(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "barcodes.csv", "barcode,order_id\nA1,10\nU1,\nU1,\nU2,\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n")

	out, err := f.app.Run(context.Background(), f.inputs("barcodes.csv", "orders.csv", 1))
	require.NoError(t, err)

	// both U1 rows are removed as duplicates before counting
	assert.Equal(t, 2, out.DuplicateCount)
	assert.Equal(t, 1, out.Unused)
}

func TestRun_PerRunOutputKeepsRunsApart(t *testing.T) {
	f := newFixture(t, nil)
	first := filepath.Join(f.dir, "first")
	second := filepath.Join(f.dir, "second")
	require.NoError(t, os.MkdirAll(first, 0o755))
	require.NoError(t, os.MkdirAll(second, 0o755))

	writeFile(t, first, "barcodes.csv", "barcode,order_id\nA1,10\n")
	writeFile(t, first, "orders.csv", "order_id,customer_id\n10,1\n")
	writeFile(t, second, "barcodes.csv", "barcode,order_id\nZZ,20\n")
	writeFile(t, second, "orders.csv", "order_id,customer_id\n20,2\n")

	run := func(dir string) *Outcome {
		out, err := f.app.Run(context.Background(), Inputs{
			BarcodesPath: filepath.Join(dir, "barcodes.csv"),
			OrdersPath:   filepath.Join(dir, "orders.csv"),
			OutputDir:    f.outDir,
			TopN:         1,
			PerRunOutput: true,
		})
		require.NoError(t, err)
		return out
	}

	a := run(first)
	b := run(second)

	require.NotEqual(t, a.OutputFile, b.OutputFile)
	assert.Equal(t, filepath.Join(f.outDir, a.RunID.String(), "orders_barcodes_20240301093000.csv"), a.OutputFile)
	assert.Equal(t, [][]string{
		{"customer_id", "order_id", "barcodes"},
		{"1", "10", `["A1"]`},
	}, readCSV(t, a.OutputFile))
	assert.Equal(t, [][]string{
		{"customer_id", "order_id", "barcodes"},
		{"2", "20", `["ZZ"]`},
	}, readCSV(t, b.OutputFile))
}

func TestRun_NonIntegerOrderID(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "barcodes.csv", "barcode,order_id\nA1,10\nB2,10.0\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n")

	out, err := f.app.Run(context.Background(), f.inputs("barcodes.csv", "orders.csv", 5))
	require.Error(t, err)

	assert.Equal(t, "read", apperr.Kind(err))
	assert.Equal(t, "READ006", apperr.Map(err).Code)
	assert.Empty(t, out.OutputFile)
}

func TestRun_HeaderOnlyInput(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "barcodes.csv", "barcode,order_id\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n")

	out, err := f.app.Run(context.Background(), f.inputs("barcodes.csv", "orders.csv", 5))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNoDataRows)
	assert.Equal(t, "read", apperr.Kind(err))
	assert.Equal(t, "READ001", apperr.Map(err).Code)
	assert.Empty(t, out.OutputFile)

	runs, err := f.store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "no data row")
}

func TestRun_MissingFile(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n")

	_, err := f.app.Run(context.Background(), f.inputs("missing.csv", "orders.csv", 5))
	require.Error(t, err)

	var re *apperr.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "missing.csv", re.File)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_MissingKeyColumn(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "barcodes.csv", "code,order_id\nA1,10\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n")

	_, err := f.app.Run(context.Background(), f.inputs("barcodes.csv", "orders.csv", 5))
	require.Error(t, err)

	assert.Equal(t, "processing", apperr.Kind(err))
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "Error occured during validation:")
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.dir, "barcodes.csv", "barcode,order_id\nA1,10\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.app.Run(ctx, f.inputs("barcodes.csv", "orders.csv", 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	runs, err := f.store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1, "cancelled runs are still recorded")
	assert.Equal(t, store.StatusFailed, runs[0].Status)
}

// failingProcessor breaks the reporting stages of an otherwise normal run.
type failingProcessor struct {
	*process.DataProcessor
}

var errBoom = errors.New("boom")

func (failingProcessor) TopCustomers(process.State, int) (*table.Table, error) {
	return nil, errBoom
}

func (failingProcessor) UnusedBarcodes(process.State) (int, error) {
	return 0, errBoom
}

func TestRun_ReportingFailuresAreWarnings(t *testing.T) {
	f := newFixture(t, failingProcessor{process.New()})
	writeFile(t, f.dir, "barcodes.csv", "barcode,order_id\nA1,10\n")
	writeFile(t, f.dir, "orders.csv", "order_id,customer_id\n10,1\n")

	out, err := f.app.Run(context.Background(), f.inputs("barcodes.csv", "orders.csv", 5))
	require.NoError(t, err)

	assert.Len(t, out.Warnings, 2)
	assert.Contains(t, out.Warnings[0], "boom")
	assert.NotEmpty(t, out.OutputFile)
	assert.NotContains(t, f.console.String(), "Top 5 customers:")
}

// failingStore rejects every write.
type failingStore struct {
	*store.Memory
}

func (failingStore) SaveRun(context.Context, *store.Run) error {
	return errBoom
}

func TestRun_StoreFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "barcodes.csv", "barcode,order_id\nA1,10\n")
	writeFile(t, dir, "orders.csv", "order_id,customer_id\n10,1\n")

	a := New(Deps{Store: failingStore{store.NewMemory()}})
	out, err := a.Run(context.Background(), Inputs{
		BarcodesPath: filepath.Join(dir, "barcodes.csv"),
		OrdersPath:   filepath.Join(dir, "orders.csv"),
		OutputDir:    filepath.Join(dir, "out"),
		TopN:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Aggregated.Len())
}

func TestOutcome_Summary(t *testing.T) {
	out := &Outcome{StartedAt: fixedNow, FinishedAt: fixedNow.Add(time.Second)}
	in := Inputs{BarcodesPath: "/data/b.csv", OrdersPath: "/data/o.csv", TopN: 3}

	run := out.Summary(in, errBoom)
	assert.Equal(t, store.StatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
	assert.Equal(t, "b.csv", run.BarcodesFile)
	assert.Equal(t, "o.csv", run.OrdersFile)
	assert.Zero(t, run.AggregatedCount)

	run = out.Summary(in, nil)
	assert.Equal(t, store.StatusCompleted, run.Status)
}
