package table

import (
	"fmt"
	"strconv"
	"strings"
)

// IsNull returns a mask that is true where the named column is null.
func (t *Table) IsNull(name string) ([]bool, error) {
	ci, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, len(t.rows))
	for i, r := range t.rows {
		mask[i] = r[ci] == nil
	}
	return mask, nil
}

// IsDuplicated returns a mask that is true for every row whose value in the
// named column occurs in at least one other row. All members of a duplicate
// group are marked, not just the repeats. Nulls compare equal to each other.
func (t *Table) IsDuplicated(name string) ([]bool, error) {
	ci, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}

	counts := make(map[any]int, len(t.rows))
	for _, r := range t.rows {
		counts[r[ci]]++
	}

	mask := make([]bool, len(t.rows))
	for i, r := range t.rows {
		mask[i] = counts[r[ci]] > 1
	}
	return mask, nil
}

// DropNulls returns the rows whose value in the named column is not null.
func (t *Table) DropNulls(name string) (*Table, error) {
	mask, err := t.IsNull(name)
	if err != nil {
		return nil, err
	}
	return t.Filter(Not(mask))
}

// UniqueKeepNone removes every row whose value in the named column is
// duplicated. Rows with a unique value keep their original order.
func (t *Table) UniqueKeepNone(name string) (*Table, error) {
	mask, err := t.IsDuplicated(name)
	if err != nil {
		return nil, err
	}
	return t.Filter(Not(mask))
}

// Any reports whether any element of mask is true.
func Any(mask []bool) bool {
	for _, m := range mask {
		if m {
			return true
		}
	}
	return false
}

// Count returns the number of true elements in mask.
func Count(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// Not returns the element-wise negation of mask.
func Not(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, m := range mask {
		out[i] = !m
	}
	return out
}

// LeftJoin joins right onto left on the named column.
//
// Every left row is kept in order. A left row produces one output row per
// matching right row, in right-table order, or exactly one row with null
// right-side cells when nothing matches. Null keys never match. The result
// holds the left columns followed by the right columns other than the key.
func LeftJoin(left, right *Table, on string) (*Table, error) {
	li, err := left.ColumnIndex(on)
	if err != nil {
		return nil, fmt.Errorf("left join: left table: %w", err)
	}
	ri, err := right.ColumnIndex(on)
	if err != nil {
		return nil, fmt.Errorf("left join: right table: %w", err)
	}

	var rightCols []int
	columns := left.Columns()
	for j, c := range right.columns {
		if j == ri {
			continue
		}
		if left.HasColumn(c) {
			return nil, fmt.Errorf("left join: column %q present in both tables", c)
		}
		rightCols = append(rightCols, j)
		columns = append(columns, c)
	}

	matches := make(map[any][]int, len(right.rows))
	for j, r := range right.rows {
		if r[ri] == nil {
			continue
		}
		matches[r[ri]] = append(matches[r[ri]], j)
	}

	out := New(columns...)
	for _, lr := range left.rows {
		hits := matches[lr[li]]
		if lr[li] == nil || len(hits) == 0 {
			row := make([]any, 0, len(columns))
			row = append(row, lr...)
			for range rightCols {
				row = append(row, nil)
			}
			out.rows = append(out.rows, row)
			continue
		}

		for _, j := range hits {
			row := make([]any, 0, len(columns))
			row = append(row, lr...)
			for _, c := range rightCols {
				row = append(row, right.rows[j][c])
			}
			out.rows = append(out.rows, row)
		}
	}

	return out, nil
}

// Group is one group produced by GroupBy: the key values and the indexes of
// the member rows in their original order.
type Group struct {
	Key  []any
	Rows []int
}

// GroupBy partitions rows by the values of the named columns. Groups are
// returned in order of first appearance.
func (t *Table) GroupBy(names ...string) ([]Group, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("group by: no columns given")
	}

	idx := make([]int, len(names))
	for i, n := range names {
		ci, err := t.ColumnIndex(n)
		if err != nil {
			return nil, fmt.Errorf("group by: %w", err)
		}
		idx[i] = ci
	}

	var groups []Group
	pos := make(map[string]int)
	for i, r := range t.rows {
		key := make([]any, len(idx))
		for k, ci := range idx {
			key[k] = r[ci]
		}

		ks := encodeKey(key)
		g, ok := pos[ks]
		if !ok {
			g = len(groups)
			pos[ks] = g
			groups = append(groups, Group{Key: key})
		}
		groups[g].Rows = append(groups[g].Rows, i)
	}

	return groups, nil
}

// encodeKey builds a collision-free string for a tuple of cell values.
func encodeKey(vals []any) string {
	var b strings.Builder
	for _, v := range vals {
		switch x := v.(type) {
		case nil:
			b.WriteString("n;")
		case int64:
			b.WriteByte('i')
			b.WriteString(strconv.FormatInt(x, 10))
			b.WriteByte(';')
		case string:
			b.WriteByte('s')
			b.WriteString(strconv.Itoa(len(x)))
			b.WriteByte(':')
			b.WriteString(x)
		}
	}
	return b.String()
}

// compare orders nil < int64 < string.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}

	switch x := a.(type) {
	case int64:
		y := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case string:
		return strings.Compare(x, b.(string))
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64:
		return 1
	default:
		return 2
	}
}
