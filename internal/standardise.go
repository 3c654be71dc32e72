package internal

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gigurra/cis-flows/internal/table"
)

// UpperTrim uppercases and trims a text cell, leaving other kinds untouched
func UpperTrim(c table.Cell) table.Cell {
	s, ok := c.Text()
	if !ok {
		return c
	}
	// a Caser keeps state between calls, so each call gets its own
	return table.Text(strings.TrimSpace(cases.Upper(language.Und).String(s)))
}

// Standardiser reconciles per-quarter tables into one long table
type Standardiser struct {
	cfg *Config
}

func NewStandardiser(cfg *Config) *Standardiser {
	return &Standardiser{cfg: cfg}
}

// Standardise normalises headers and text values of every quarter's table and
// stacks them by column name with an explicit Date_Key first column, in
// ascending date order. The input tables are not modified.
func (s *Standardiser) Standardise(sheets map[int]*table.Table) (*table.Table, error) {
	dates := make([]int, 0, len(sheets))
	for d := range sheets {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	parts := make([]*table.Table, 0, len(dates))
	for _, d := range dates {
		t := sheets[d].Clone()
		if err := t.Rename(s.cfg.NormaliseHeader); err != nil {
			return nil, fmt.Errorf("quarter %d: normalising headers: %w", d, err)
		}
		if t.Has(ColDateKey) {
			return nil, fmt.Errorf("quarter %d: sheet already has a %s column", d, ColDateKey)
		}
		t.Apply(func(_ string, c table.Cell) table.Cell { return UpperTrim(c) })

		keys := make([]table.Cell, t.Len())
		for i := range keys {
			keys[i] = table.Int(d)
		}
		if err := t.InsertColumn(0, ColDateKey, keys); err != nil {
			return nil, err
		}
		parts = append(parts, t)
	}

	if len(parts) == 0 {
		return table.New(ColDateKey), nil
	}
	return table.Concat(parts...), nil
}
