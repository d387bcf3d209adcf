// Package process joins barcodes onto orders and derives the report tables:
// the per-order barcode aggregation, the top customers and the count of
// unused barcodes.
//
// Pipeline state is an explicit State value. Merge builds it, WithMerged
// swaps in a corrected merged table, and the read operations derive results
// from it without modifying it.
package process

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/tickets/internal/table"
)

// Column names of the two inputs and the derived tables.
const (
	ColBarcode       = "barcode"
	ColOrderID       = "order_id"
	ColCustomerID    = "customer_id"
	ColBarcodes      = "barcodes"
	ColTotalBarcodes = "total_barcodes"
)

var (
	// ErrNoMergedData is returned when a read operation runs before Merge.
	ErrNoMergedData = errors.New("no merged data: merge barcodes and orders first")

	// ErrNoBarcodes is returned by UnusedBarcodes when no barcodes table is set.
	ErrNoBarcodes = errors.New("no barcodes data: merge barcodes and orders first")
)

// State is the data of one pipeline run. Barcodes and Orders are the tables
// given to Merge; Merged is their left join, possibly replaced by a
// corrected copy. A State must not be shared between goroutines while one
// of them replaces its tables.
type State struct {
	Barcodes *table.Table
	Orders   *table.Table
	Merged   *table.Table
}

// WithMerged returns a copy of s whose merged table is m.
func (s State) WithMerged(m *table.Table) State {
	s.Merged = m
	return s
}

// Processor builds and reads pipeline state.
type Processor interface {
	Merge(barcodes, orders *table.Table) (State, error)
	Aggregate(s State) (*table.Table, error)
	TopCustomers(s State, n int) (*table.Table, error)
	UnusedBarcodes(s State) (int, error)
}

// DataProcessor is the default Processor. It holds no state of its own, so
// a single value may serve concurrent runs that each own their State.
type DataProcessor struct{}

// New returns a DataProcessor.
func New() *DataProcessor {
	return &DataProcessor{}
}

// Merge left-joins barcodes onto orders by order id. Every order is kept;
// an order without a barcode gets one row with a null barcode.
func (p *DataProcessor) Merge(barcodes, orders *table.Table) (State, error) {
	if barcodes == nil || orders == nil {
		return State{}, fmt.Errorf("merge: both barcodes and orders are required")
	}

	merged, err := table.LeftJoin(orders, barcodes, ColOrderID)
	if err != nil {
		return State{}, fmt.Errorf("merge: %w", err)
	}

	return State{Barcodes: barcodes, Orders: orders, Merged: merged}, nil
}

// Aggregate groups the merged table by customer and order and collects each
// group's barcodes, in row order, into a JSON array string. Groups appear in
// order of first appearance.
func (p *DataProcessor) Aggregate(s State) (*table.Table, error) {
	if s.Merged == nil {
		return nil, ErrNoMergedData
	}

	bi, err := s.Merged.ColumnIndex(ColBarcode)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	groups, err := s.Merged.GroupBy(ColCustomerID, ColOrderID)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	out := table.New(ColCustomerID, ColOrderID, ColBarcodes)
	for _, g := range groups {
		codes := make([]any, len(g.Rows))
		for i, r := range g.Rows {
			codes[i] = s.Merged.Row(r)[bi]
		}

		list, err := FormatBarcodes(codes)
		if err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}
		if err := out.Append(g.Key[0], g.Key[1], list); err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}
	}

	return out, nil
}

// FormatBarcodes serializes barcode values as a JSON array, e.g.
// ["A1","B2"]. Nulls are written as null.
func FormatBarcodes(codes []any) (string, error) {
	if codes == nil {
		codes = []any{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TopCustomers counts non-null barcodes per customer and returns the n
// customers with the most, highest first. Customers with equal counts keep
// the order in which they first appear in the merged table. n == 0 yields an
// empty table.
func (p *DataProcessor) TopCustomers(s State, n int) (*table.Table, error) {
	if s.Merged == nil {
		return nil, ErrNoMergedData
	}
	if n < 0 {
		return nil, fmt.Errorf("top customers: n must be non-negative, got %d", n)
	}

	bi, err := s.Merged.ColumnIndex(ColBarcode)
	if err != nil {
		return nil, fmt.Errorf("top customers: %w", err)
	}
	groups, err := s.Merged.GroupBy(ColCustomerID)
	if err != nil {
		return nil, fmt.Errorf("top customers: %w", err)
	}

	counts := table.New(ColCustomerID, ColTotalBarcodes)
	for _, g := range groups {
		var total int64
		for _, r := range g.Rows {
			if s.Merged.Row(r)[bi] != nil {
				total++
			}
		}
		if err := counts.Append(g.Key[0], total); err != nil {
			return nil, fmt.Errorf("top customers: %w", err)
		}
	}

	sorted, err := counts.SortStable(ColTotalBarcodes, true)
	if err != nil {
		return nil, fmt.Errorf("top customers: %w", err)
	}
	return sorted.Head(n), nil
}

// UnusedBarcodes counts barcodes without an order id in the barcodes table
// given to Merge. The merged table is not consulted. The pipeline merges the
// deduplicated barcodes, so a duplicated barcode without an order id is not
// counted, unlike a count over the raw input file.
func (p *DataProcessor) UnusedBarcodes(s State) (int, error) {
	if s.Barcodes == nil {
		return 0, ErrNoBarcodes
	}

	mask, err := s.Barcodes.IsNull(ColOrderID)
	if err != nil {
		return 0, fmt.Errorf("unused barcodes: %w", err)
	}
	return table.Count(mask), nil
}
