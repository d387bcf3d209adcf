package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/JonMunkholm/tickets/internal/store"
	"github.com/JonMunkholm/tickets/internal/table"
)

// Console prints the human-readable run summary.
type Console struct {
	w io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Duplicates prints one `barcode, order_id` line per duplicated row.
func (c *Console) Duplicates(rows []table.Record) {
	for _, r := range rows {
		code, _ := r.Get("barcode")
		order, _ := r.Get("order_id")
		fmt.Fprintf(c.w, "%s, %s\n", table.FormatValue(code), table.FormatValue(order))
	}
}

// Orphans prints one line per order that matched no barcode.
func (c *Console) Orphans(rows []table.Record) {
	for _, r := range rows {
		order, _ := r.Get("order_id")
		customer, _ := r.Get("customer_id")
		fmt.Fprintf(c.w, "Order %s of customer %s has no barcodes.\n", table.FormatValue(order), table.FormatValue(customer))
	}
}

// TopCustomers renders the ranking as a table under a "Top N customers:"
// title.
func (c *Console) TopCustomers(n int, t *table.Table) error {
	fmt.Fprintf(c.w, "Top %d customers:\n", n)

	tw := tablewriter.NewWriter(c.w)
	tw.Header("Customer ID", "Total Barcodes")
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		line := make([]string, len(row))
		for j, v := range row {
			line[j] = table.FormatValue(v)
		}
		if err := tw.Append(line); err != nil {
			return fmt.Errorf("render top customers: %w", err)
		}
	}
	if err := tw.Render(); err != nil {
		return fmt.Errorf("render top customers: %w", err)
	}
	return nil
}

// Unused prints the unused barcode count.
func (c *Console) Unused(count int) {
	fmt.Fprintf(c.w, "Number of unused barcodes: %d.\n", count)
}

// OutputFile prints where the aggregated data was written.
func (c *Console) OutputFile(path string) {
	fmt.Fprintf(c.w, "Processed data file is generated %s.\n", path)
}

// Runs renders stored run summaries, one line per run.
func (c *Console) Runs(runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(c.w, "No runs recorded.")
		return nil
	}

	tw := tablewriter.NewWriter(c.w)
	tw.Header("Run ID", "Started", "Status", "Barcodes", "Orders", "Aggregated", "Unused", "Error")
	for _, r := range runs {
		line := []string{
			r.ID.String(),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.BarcodesFile,
			r.OrdersFile,
			strconv.Itoa(r.AggregatedCount),
			strconv.Itoa(r.UnusedCount),
			r.Error,
		}
		if err := tw.Append(line); err != nil {
			return fmt.Errorf("render runs: %w", err)
		}
	}
	if err := tw.Render(); err != nil {
		return fmt.Errorf("render runs: %w", err)
	}
	return nil
}
