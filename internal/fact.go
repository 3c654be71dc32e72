package internal

import (
	"errors"
	"fmt"

	"github.com/gigurra/cis-flows/internal/table"
)

var (
	// ErrFanOut is returned when a dimension join would duplicate fact rows
	ErrFanOut = table.ErrFanOut
	// ErrRowCount is returned when the fact table and the analysis disagree on row count
	ErrRowCount = errors.New("fact row count differs from analysis row count")
	// ErrDanglingDate is returned for a fact date key missing from the calendar
	ErrDanglingDate = errors.New("date key not in calendar")
)

// FactBuilder resolves dimension foreign keys for every analysis row
type FactBuilder struct {
	cfg *Config
}

func NewFactBuilder(cfg *Config) *FactBuilder {
	return &FactBuilder{cfg: cfg}
}

// Build returns the fact table: Date_Key, one key per non-calendar dimension,
// then the measures, in analysis row order
func (b *FactBuilder) Build(analysis *table.Table, dims *Dimensions) (*table.Table, error) {
	if !analysis.Has(ColDateKey) {
		return nil, fmt.Errorf("analysis: %w: %s", ErrMissingColumn, ColDateKey)
	}
	for _, m := range b.cfg.Measures {
		if !analysis.Has(m) {
			return nil, fmt.Errorf("analysis: %w: measure %s", ErrMissingColumn, m)
		}
	}

	calendar := make(map[int]bool, dims.Date.Table.Len())
	for _, k := range dims.Date.Table.Keys(ColDateKey) {
		calendar[k] = true
	}
	dates := analysis.Column(ColDateKey)
	for _, c := range dates {
		if k, ok := c.Int(); !ok || !calendar[k] {
			return nil, fmt.Errorf("%w: %s", ErrDanglingDate, c.String())
		}
	}

	fact := table.New(ColDateKey)
	for range dates {
		fact.AppendRow()
	}
	if err := fact.SetColumn(ColDateKey, dates); err != nil {
		return nil, err
	}

	for _, dim := range dims.All() {
		if dim == dims.Date {
			continue
		}
		keys, err := analysis.LookupColumn(dim.Feature, dim.Table, dim.Feature, dim.Key)
		if err != nil {
			return nil, fmt.Errorf("joining %s: %w", dim.Name, err)
		}
		if len(keys) != analysis.Len() {
			return nil, fmt.Errorf("%w: %s produced %d keys for %d rows", ErrRowCount, dim.Name, len(keys), analysis.Len())
		}
		if err := fact.SetColumn(dim.Key, keys); err != nil {
			return nil, err
		}
	}

	for _, m := range b.cfg.Measures {
		values := analysis.Column(m)
		for i, c := range values {
			values[i] = toNumber(c)
		}
		if err := fact.SetColumn(m, values); err != nil {
			return nil, err
		}
	}

	if fact.Len() != analysis.Len() {
		return nil, fmt.Errorf("%w: %d fact rows, %d analysis rows", ErrRowCount, fact.Len(), analysis.Len())
	}
	return fact, nil
}

// toNumber turns numeric text into a number and anything else non-numeric into Null
func toNumber(c table.Cell) table.Cell {
	if _, ok := c.Float(); ok {
		return c
	}
	if s, ok := c.Text(); ok {
		if n := table.Parse(s); n.Kind() == table.KindNumber {
			return n
		}
	}
	return table.Null
}
