// Package table is a small column-named, row-oriented in-memory table used to
// move spreadsheet content through the flow statistics pipeline.
package table

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

var (
	// ErrNoColumn is returned when a named column does not exist
	ErrNoColumn = errors.New("no such column")
	// ErrDuplicateColumn is returned when an operation would produce two columns with the same name
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrLength is returned when a column does not have one value per row
	ErrLength = errors.New("column length does not match row count")
	// ErrFanOut is returned when a left join would emit more rows than its left side
	ErrFanOut = errors.New("join fan-out")
)

// Table holds rows of cells under a fixed, ordered set of column names
type Table struct {
	columns []string
	pos     map[string]int
	rows    [][]Cell
}

// New creates an empty table. Column names must be unique.
func New(columns ...string) *Table {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		pos:     make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, ok := t.pos[c]; ok {
			panic(fmt.Sprintf("table.New: %v: %q", ErrDuplicateColumn, c))
		}
		t.pos[c] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t
}

// Columns returns a copy of the column names in order
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

func (t *Table) Len() int   { return len(t.rows) }
func (t *Table) Width() int { return len(t.columns) }

func (t *Table) Has(col string) bool {
	_, ok := t.pos[col]
	return ok
}

// AppendRow adds a row. Missing trailing cells are Null, extra cells are an error.
func (t *Table) AppendRow(cells ...Cell) error {
	if len(cells) > len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns: %w", len(cells), len(t.columns), ErrLength)
	}
	row := make([]Cell, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// At returns the cell at row i in column col, or Null when the column is absent
func (t *Table) At(i int, col string) Cell {
	j, ok := t.pos[col]
	if !ok {
		return Null
	}
	return t.rows[i][j]
}

// Set replaces the cell at row i in column col
func (t *Table) Set(i int, col string, c Cell) error {
	j, ok := t.pos[col]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoColumn, col)
	}
	t.rows[i][j] = c
	return nil
}

// Row returns a read-only view of row i
func (t *Table) Row(i int) Row {
	return Row{t: t, i: i}
}

// Column returns a copy of the named column, or nil if absent
func (t *Table) Column(col string) []Cell {
	j, ok := t.pos[col]
	if !ok {
		return nil
	}
	out := make([]Cell, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	c := New(t.columns...)
	c.rows = make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		c.rows[i] = slices.Clone(r)
	}
	return c
}

// Select returns a new table with only the given columns, in the given order
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	for k, c := range cols {
		j, ok := t.pos[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoColumn, c)
		}
		idx[k] = j
	}
	out := New(cols...)
	out.rows = make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		row := make([]Cell, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.rows[i] = row
	}
	return out, nil
}

// Filter returns a new table with the rows for which keep returns true
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.columns...)
	for i, r := range t.rows {
		if keep(Row{t: t, i: i}) {
			out.rows = append(out.rows, slices.Clone(r))
		}
	}
	return out
}

// Where returns the rows whose column col equals v
func (t *Table) Where(col string, v Cell) *Table {
	return t.Filter(func(r Row) bool { return r.Get(col).Equal(v) })
}

// Head returns the first n rows
func (t *Table) Head(n int) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	out := New(t.columns...)
	for _, r := range t.rows[:n] {
		out.rows = append(out.rows, slices.Clone(r))
	}
	return out
}

// Apply rewrites every cell of the receiver in place
func (t *Table) Apply(fn func(col string, c Cell) Cell) {
	for _, r := range t.rows {
		for j := range r {
			r[j] = fn(t.columns[j], r[j])
		}
	}
}

// ApplyColumn rewrites every cell of one column in place
func (t *Table) ApplyColumn(col string, fn func(Cell) Cell) error {
	j, ok := t.pos[col]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoColumn, col)
	}
	for _, r := range t.rows {
		r[j] = fn(r[j])
	}
	return nil
}

// InsertColumn adds a new column at position pos (clamped to the table width)
func (t *Table) InsertColumn(pos int, name string, values []Cell) error {
	if t.Has(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
	}
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %s has %d values for %d rows: %w", name, len(values), len(t.rows), ErrLength)
	}
	pos = max(0, min(pos, len(t.columns)))
	t.columns = slices.Insert(t.columns, pos, name)
	t.reindex()
	for i := range t.rows {
		t.rows[i] = slices.Insert(t.rows[i], pos, values[i])
	}
	return nil
}

// SetColumn replaces the values of an existing column or appends a new one
func (t *Table) SetColumn(name string, values []Cell) error {
	j, ok := t.pos[name]
	if !ok {
		return t.InsertColumn(len(t.columns), name, values)
	}
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %s has %d values for %d rows: %w", name, len(values), len(t.rows), ErrLength)
	}
	for i := range t.rows {
		t.rows[i][j] = values[i]
	}
	return nil
}

// Rename rewrites column names with fn. Two columns must not end up with the same name.
func (t *Table) Rename(fn func(string) string) error {
	renamed := make([]string, len(t.columns))
	seen := make(map[string]bool, len(t.columns))
	for j, c := range t.columns {
		n := fn(c)
		if seen[n] {
			return fmt.Errorf("%w: %q (from %q)", ErrDuplicateColumn, n, c)
		}
		seen[n] = true
		renamed[j] = n
	}
	t.columns = renamed
	t.reindex()
	return nil
}

// SortBy returns a copy stably sorted by the given columns
func (t *Table) SortBy(cols ...string) *Table {
	out := t.Clone()
	idx := make([]int, 0, len(cols))
	for _, c := range cols {
		if j, ok := t.pos[c]; ok {
			idx = append(idx, j)
		}
	}
	sort.SliceStable(out.rows, func(a, b int) bool {
		for _, j := range idx {
			if c := Compare(out.rows[a][j], out.rows[b][j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out
}

// Distinct returns the unique rows over cols (all columns if none given),
// keeping the first occurrence and the original order.
func (t *Table) Distinct(cols ...string) *Table {
	src := t
	if len(cols) > 0 {
		sel, err := t.Select(cols...)
		if err != nil {
			return New(cols...)
		}
		src = sel
	}
	out := New(src.columns...)
	seen := make(map[string]bool, len(src.rows))
	for _, r := range src.rows {
		k := rowKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out.rows = append(out.rows, slices.Clone(r))
	}
	return out
}

// Values returns the sorted distinct non-null values of a column
func (t *Table) Values(col string) []Cell {
	seen := make(map[string]bool)
	var out []Cell
	for _, c := range t.Column(col) {
		if c.IsNull() || seen[c.key()] {
			continue
		}
		seen[c.key()] = true
		out = append(out, c)
	}
	slices.SortFunc(out, Compare)
	return out
}

// Keys returns the distinct number cells of a column as ints, sorted
func (t *Table) Keys(col string) []int {
	var out []int
	for _, c := range t.Values(col) {
		if n, ok := c.Int(); ok {
			out = append(out, n)
		}
	}
	return out
}

// String renders the table as tab separated lines, mostly for test failures
func (t *Table) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(t.columns, "\t"))
	for _, r := range t.rows {
		sb.WriteByte('\n')
		for j, c := range r {
			if j > 0 {
				sb.WriteByte('\t')
			}
			sb.WriteString(c.String())
		}
	}
	return sb.String()
}

func (t *Table) reindex() {
	t.pos = make(map[string]int, len(t.columns))
	for j, c := range t.columns {
		t.pos[c] = j
	}
}

func rowKey(cells []Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.key()
	}
	return strings.Join(parts, "\x1f")
}

// Row is a read-only view of one table row
type Row struct {
	t *Table
	i int
}

func (r Row) Index() int { return r.i }

func (r Row) Get(col string) Cell {
	return r.t.At(r.i, col)
}

// Record copies the row into a column->cell map
func (r Row) Record() map[string]Cell {
	m := make(map[string]Cell, len(r.t.columns))
	for j, c := range r.t.columns {
		m[c] = r.t.rows[r.i][j]
	}
	return m
}

// Cells returns a copy of the row's cells in column order
func (r Row) Cells() []Cell {
	return slices.Clone(r.t.rows[r.i])
}
