// Package validate checks the integrity of barcode and order tables.
//
// A failed check is not fatal. It produces a Result with Valid=false, one
// ValidationError per failure category and a corrected table in Data that the
// pipeline continues with. Only an unexpected failure (a missing key column
// or a panic while checking) sets Result.Err.
package validate

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/tickets/internal/table"
)

// Messages reported by the validators.
const (
	MsgDuplicateBarcodes = "Duplicate barcodes found"
	MsgOrphanOrders      = "Orders without barcodes found"
	msgUnexpected        = "Error occured during validation:"
)

// ValidationError describes one category of invalid rows.
type ValidationError struct {
	Message    string         `json:"message"`
	FailedRows []table.Record `json:"failed_rows,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// String renders the message followed by one line per failed row in the
// form `"column": value, "column": value`.
func (e ValidationError) String() string {
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString(" \n")
	for i, r := range e.FailedRows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.String())
	}
	return b.String()
}

// Result is the outcome of a validation pass.
//
// When Valid is true, Errors is empty and Data is nil: the input can be used
// as is. When Valid is false, Data holds the corrected table.
type Result struct {
	Valid  bool
	Errors []ValidationError
	Data   *table.Table

	// Err is set when validation itself could not complete. Data is then an
	// empty table with the input schema.
	Err error
}

// Mask builders used by the validators. Tests swap them to reach the
// failure paths.
var (
	duplicatedMask = (*table.Table).IsDuplicated
	nullMask       = (*table.Table).IsNull
)

// Validator checks barcode and order tables.
type Validator interface {
	ValidateBarcodes(t *table.Table, key string) Result
	ValidateOrders(t *table.Table, key string) Result
}

// DataValidator is the default Validator. It holds no state.
type DataValidator struct{}

// New returns a DataValidator.
func New() *DataValidator {
	return &DataValidator{}
}

// ValidateBarcodes reports rows whose key appears more than once. Every row
// of every duplicate group is reported and removed from Data; no copy of a
// duplicated key survives.
func (v *DataValidator) ValidateBarcodes(t *table.Table, key string) (res Result) {
	defer recoverInto(t, &res)

	mask, err := duplicatedMask(t, key)
	if err != nil {
		return unexpected(t, err)
	}
	if !table.Any(mask) {
		return Result{Valid: true}
	}

	dups, err := t.Filter(mask)
	if err != nil {
		return unexpected(t, err)
	}
	cleaned, err := t.Filter(table.Not(mask))
	if err != nil {
		return unexpected(t, err)
	}

	return Result{
		Valid:  false,
		Errors: []ValidationError{{Message: MsgDuplicateBarcodes, FailedRows: dups.Records()}},
		Data:   cleaned,
	}
}

// ValidateOrders reports rows whose key is null, typically merged orders
// that matched no barcode, and drops them from Data.
func (v *DataValidator) ValidateOrders(t *table.Table, key string) (res Result) {
	defer recoverInto(t, &res)

	mask, err := nullMask(t, key)
	if err != nil {
		return unexpected(t, err)
	}
	if !table.Any(mask) {
		return Result{Valid: true}
	}

	orphans, err := t.Filter(mask)
	if err != nil {
		return unexpected(t, err)
	}
	cleaned, err := t.Filter(table.Not(mask))
	if err != nil {
		return unexpected(t, err)
	}

	return Result{
		Valid:  false,
		Errors: []ValidationError{{Message: MsgOrphanOrders, FailedRows: orphans.Records()}},
		Data:   cleaned,
	}
}

// unexpected builds the result for a validation that could not complete:
// every input row is reported and Data is emptied.
func unexpected(t *table.Table, err error) Result {
	msg := fmt.Sprintf("%s %v", msgUnexpected, err)

	var rows []table.Record
	data := table.New()
	if t != nil {
		rows = t.Records()
		data = t.Clear()
	}

	return Result{
		Valid:  false,
		Errors: []ValidationError{{Message: msg, FailedRows: rows}},
		Data:   data,
		Err:    fmt.Errorf("%s %w", msgUnexpected, err),
	}
}

// recoverInto converts a panic during validation into an unexpected result.
func recoverInto(t *table.Table, res *Result) {
	if r := recover(); r != nil {
		*res = unexpected(t, fmt.Errorf("%v", r))
	}
}
