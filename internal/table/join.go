package table

import (
	"fmt"
	"slices"
)

// Concat stacks tables by column name (outer union). Columns keep the order in
// which they are first seen; cells for columns a table lacks are Null.
func Concat(tables ...*Table) *Table {
	var cols []string
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	out := New(cols...)
	for _, t := range tables {
		idx := make([]int, len(t.columns))
		for j, c := range t.columns {
			idx[j] = out.pos[c]
		}
		for _, r := range t.rows {
			row := make([]Cell, len(cols))
			for j, c := range r {
				row[idx[j]] = c
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// OuterJoin merges two tables on the given columns. Matching rows are combined,
// rows without a match on either side are kept with Nulls for the other side.
// Result columns are the left columns followed by the right columns not in on.
func OuterJoin(left, right *Table, on ...string) (*Table, error) {
	for _, c := range on {
		if !left.Has(c) {
			return nil, fmt.Errorf("left side: %w: %s", ErrNoColumn, c)
		}
		if !right.Has(c) {
			return nil, fmt.Errorf("right side: %w: %s", ErrNoColumn, c)
		}
	}

	cols := left.Columns()
	var extra []string
	for _, c := range right.columns {
		if !slices.Contains(on, c) {
			if left.Has(c) {
				return nil, fmt.Errorf("%w: %s on both sides of join", ErrDuplicateColumn, c)
			}
			extra = append(extra, c)
		}
	}
	out := New(append(cols, extra...)...)

	rightByKey := make(map[string][]int)
	for i := range right.rows {
		k := joinKey(right, i, on)
		rightByKey[k] = append(rightByKey[k], i)
	}

	matched := make([]bool, len(right.rows))
	for i, lr := range left.rows {
		hits := rightByKey[joinKey(left, i, on)]
		if len(hits) == 0 {
			row := make([]Cell, out.Width())
			copy(row, lr)
			out.rows = append(out.rows, row)
			continue
		}
		for _, ri := range hits {
			matched[ri] = true
			row := make([]Cell, out.Width())
			copy(row, lr)
			for k, c := range extra {
				row[len(cols)+k] = right.At(ri, c)
			}
			out.rows = append(out.rows, row)
		}
	}
	for ri := range right.rows {
		if matched[ri] {
			continue
		}
		row := make([]Cell, out.Width())
		for j, c := range out.columns {
			row[j] = right.At(ri, c)
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// LookupColumn performs a left join of t against dim on t.on == dim.dimOn and
// returns dim.value aligned with t's rows. Rows without a match (or with a Null
// join value) get Null. A dim with two rows for the same join value would fan
// out the left side, so that is reported as ErrFanOut instead.
func (t *Table) LookupColumn(on string, dim *Table, dimOn, value string) ([]Cell, error) {
	if !t.Has(on) {
		return nil, fmt.Errorf("%w: %s", ErrNoColumn, on)
	}
	if !dim.Has(dimOn) {
		return nil, fmt.Errorf("dimension: %w: %s", ErrNoColumn, dimOn)
	}
	if !dim.Has(value) {
		return nil, fmt.Errorf("dimension: %w: %s", ErrNoColumn, value)
	}

	index := make(map[string]Cell, dim.Len())
	for i := range dim.rows {
		k := dim.At(i, dimOn)
		if k.IsNull() {
			continue
		}
		if _, dup := index[k.key()]; dup {
			return nil, fmt.Errorf("%w: %s value %q appears more than once", ErrFanOut, dimOn, k.String())
		}
		index[k.key()] = dim.At(i, value)
	}

	out := make([]Cell, t.Len())
	for i := range t.rows {
		k := t.At(i, on)
		if k.IsNull() {
			continue
		}
		out[i] = index[k.key()]
	}
	return out, nil
}

func joinKey(t *Table, i int, on []string) string {
	cells := make([]Cell, len(on))
	for k, c := range on {
		cells[k] = t.At(i, c)
	}
	return rowKey(cells)
}
