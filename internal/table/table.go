// Package table provides a small in-memory, row-oriented table with nullable
// cells. It carries exactly the operations the ticket pipeline needs:
// masks, filtering, left joins, grouping and stable sorting. Sorting runs
// on a gota dataframe; the joins and grouping are hash based.
//
// Cell values are nil (null), int64 or string. Integer inputs of other widths
// are normalized to int64 on insert so that equality and grouping behave the
// same regardless of how a table was built.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrColumnNotFound is returned when an operation references a column the
// table does not have.
var ErrColumnNotFound = errors.New("column not found")

// Table is an ordered set of named columns and rows of nullable cells.
// A Table is not safe for concurrent mutation.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// New creates an empty table with the given column names.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)

	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}

	return &Table{
		columns: cols,
		index:   index,
		rows:    make([][]any, 0),
	}
}

// FromRows builds a table from column names and row values.
// Every row must have exactly one value per column.
func FromRows(columns []string, rows [][]any) (*Table, error) {
	t := New(columns...)
	for _, r := range rows {
		if err := t.Append(r...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustFromRows is like FromRows but panics on error. Intended for tests and
// static fixtures.
func MustFromRows(columns []string, rows [][]any) *Table {
	t, err := FromRows(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Append adds a row. The number of values must match the column count.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}

	row := make([]any, len(values))
	for i, v := range values {
		nv, err := normalize(v)
		if err != nil {
			return fmt.Errorf("column %q: %w", t.columns[i], err)
		}
		row[i] = nv
	}

	t.rows = append(t.rows, row)
	return nil
}

// normalize converts supported Go values to the canonical cell types.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	default:
		return nil, fmt.Errorf("unsupported cell type %T", v)
	}
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of a column or ErrColumnNotFound.
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return i, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.rows[i]))
	copy(row, t.rows[i])
	return row
}

// Rows returns a copy of all rows. The result is never nil.
func (t *Table) Rows() [][]any {
	rows := make([][]any, len(t.rows))
	for i := range t.rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Column returns a copy of the values in the named column.
func (t *Table) Column(name string) ([]any, error) {
	ci, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[ci]
	}
	return out, nil
}

// Value returns the cell at row i in the named column.
func (t *Table) Value(i int, name string) (any, error) {
	ci, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	return t.rows[i][ci], nil
}

// Clear returns an empty table with the same schema.
func (t *Table) Clear() *Table {
	return New(t.columns...)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.columns...)
	out.rows = t.Rows()
	return out
}

// Filter returns a new table holding the rows where mask is true.
// Row order is preserved.
func (t *Table) Filter(mask []bool) (*Table, error) {
	if len(mask) != len(t.rows) {
		return nil, fmt.Errorf("mask length %d does not match row count %d", len(mask), len(t.rows))
	}

	out := New(t.columns...)
	for i, keep := range mask {
		if keep {
			out.rows = append(out.rows, t.Row(i))
		}
	}
	return out, nil
}

// Head returns the first n rows. A negative or oversized n is clamped.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}

	out := New(t.columns...)
	for i := 0; i < n; i++ {
		out.rows = append(out.rows, t.Row(i))
	}
	return out
}

// Equal reports whether two tables have the same columns and rows in order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if t.rows[i][j] != o.rows[i][j] {
				return false
			}
		}
	}
	return true
}

// FormatValue renders a cell for human-readable output. Null is "null".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// String renders the table as a header line followed by one line per row.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.columns, ", "))
	for _, r := range t.rows {
		b.WriteByte('\n')
		for j, v := range r {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(FormatValue(v))
		}
	}
	return b.String()
}
