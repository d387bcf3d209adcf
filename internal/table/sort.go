package table

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Columns of the frame built for sorting.
const (
	sortKeyCol = "__sort_key"
	sortRowCol = "__row"
)

// SortStable returns a copy sorted by the named column. Rows with equal
// values keep their relative order. Nulls sort before any value in
// ascending order and after every value in descending order.
//
// The ordering is done by a gota frame of integer sort keys and row
// positions; cell values never enter the frame. A key is the rank of the
// cell value times the row count plus a tie position, so keys are unique.
func (t *Table) SortStable(name string, descending bool) (*Table, error) {
	ci, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}

	n := len(t.rows)
	if n < 2 {
		return t.Clone(), nil
	}

	ranks := denseRanks(t.rows, ci)
	keys := make([]int, n)
	rows := make([]int, n)
	for i, r := range t.rows {
		tie := i
		if descending {
			tie = n - 1 - i
		}
		keys[i] = ranks[r[ci]]*n + tie
		rows[i] = i
	}

	order := dataframe.Sort(sortKeyCol)
	if descending {
		order = dataframe.RevSort(sortKeyCol)
	}
	df := dataframe.New(
		series.New(keys, series.Int, sortKeyCol),
		series.New(rows, series.Int, sortRowCol),
	).Arrange(order)
	if df.Err != nil {
		return nil, fmt.Errorf("sort by %q: %w", name, df.Err)
	}

	positions := df.Col(sortRowCol)
	out := New(t.columns...)
	out.rows = make([][]any, 0, n)
	for i := 0; i < df.Nrow(); i++ {
		j, err := positions.Elem(i).Int()
		if err != nil {
			return nil, fmt.Errorf("sort by %q: %w", name, err)
		}
		out.rows = append(out.rows, t.Row(j))
	}
	return out, nil
}

// denseRanks numbers the distinct values of column ci in compare order,
// starting at 0. Null ranks -1.
func denseRanks(rows [][]any, ci int) map[any]int {
	ranks := map[any]int{nil: -1}
	var distinct []any
	for _, r := range rows {
		v := r[ci]
		if _, ok := ranks[v]; ok {
			continue
		}
		ranks[v] = 0
		distinct = append(distinct, v)
	}

	sort.Slice(distinct, func(i, j int) bool {
		return compare(distinct[i], distinct[j]) < 0
	})
	for i, v := range distinct {
		ranks[v] = i
	}
	return ranks
}
