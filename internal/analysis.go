package internal

import (
	"fmt"
	"slices"

	"github.com/gigurra/cis-flows/internal/table"
)

// AnalysisCleaner prepares the standardised Analysis table for the star schema
type AnalysisCleaner struct {
	cfg *Config
}

func NewAnalysisCleaner(cfg *Config) *AnalysisCleaner {
	return &AnalysisCleaner{cfg: cfg}
}

// Clean replaces shorthand sentinels, drops excluded sectors and uppercases
// every text cell. It works on a copy and is idempotent.
func (c *AnalysisCleaner) Clean(analysis *table.Table) (*table.Table, error) {
	if !analysis.Has(ColSectorClassification) {
		return nil, fmt.Errorf("analysis: %w: %s", ErrMissingColumn, ColSectorClassification)
	}

	out := analysis.Clone()
	for _, sh := range c.cfg.Shorthands {
		if !out.Has(sh.Column) {
			continue
		}
		out.ApplyColumn(sh.Column, func(cell table.Cell) table.Cell {
			return replaceShorthand(cell, sh.Replace)
		})
	}

	out = out.Filter(func(r table.Row) bool {
		s, ok := r.Get(ColSectorClassification).AsText().Text()
		return !ok || !c.cfg.IsExcludedSector(s)
	})

	out.Apply(func(_ string, cell table.Cell) table.Cell { return UpperTrim(cell) })
	return out, nil
}

func replaceShorthand(cell table.Cell, replace map[string]string) table.Cell {
	key := MissingText
	if !cell.IsNull() {
		key = cell.String()
	}
	if v, ok := replace[key]; ok {
		return table.Text(v)
	}
	return cell
}

// Update resolves archived fund names to their operational name and adds the
// Sector_Code and Fund_Code columns right after the columns they derive from.
// Values without a master lookup match get a Null code. Running Update on its
// own output yields the same table; the input is not modified.
func (c *AnalysisCleaner) Update(analysis *table.Table, funds *CISFunds) (*table.Table, error) {
	for _, col := range []string{ColSectorClassification, ColFundName} {
		if !analysis.Has(col) {
			return nil, fmt.Errorf("analysis: %w: %s", ErrMissingColumn, col)
		}
	}
	out := analysis.Clone()

	sectorCodes := funds.SectorCodes()
	if err := putAfter(out, ColSectorClassification, ColSectorCode, mapColumn(out, ColSectorClassification, sectorCodes)); err != nil {
		return nil, err
	}

	names := ResolveFundNames(out.Column(ColFundName), funds)
	if err := out.SetColumn(ColFundName, names); err != nil {
		return nil, err
	}

	fundCodes := funds.FundCodes()
	if err := putAfter(out, ColFundName, ColFundCode, mapColumn(out, ColFundName, fundCodes)); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveFundNames replaces archived fund names with the operational name of
// the same fund code. Names that are already operational are left alone.
func ResolveFundNames(names []table.Cell, funds *CISFunds) []table.Cell {
	archived := funds.ArchivedCodes()
	current := funds.CurrentNames()
	operational := funds.FundCodes()

	out := make([]table.Cell, len(names))
	for i, cell := range names {
		out[i] = cell
		name, ok := upperText(cell)
		if !ok {
			continue
		}
		if _, isCurrent := operational[name]; isCurrent {
			continue
		}
		code, isArchived := archived[name]
		if !isArchived {
			continue
		}
		if newName, ok := current[code]; ok {
			out[i] = table.Text(newName)
		}
	}
	return out
}

func mapColumn(t *table.Table, col string, lookup map[string]string) []table.Cell {
	src := t.Column(col)
	out := make([]table.Cell, len(src))
	for i, cell := range src {
		if s, ok := upperText(cell); ok {
			if v, ok := lookup[s]; ok {
				out[i] = table.Text(v)
			}
		}
	}
	return out
}

// putAfter sets column name to values, inserting it right after anchor the first time
func putAfter(t *table.Table, anchor, name string, values []table.Cell) error {
	if t.Has(name) {
		return t.SetColumn(name, values)
	}
	pos := slices.Index(t.Columns(), anchor) + 1
	return t.InsertColumn(pos, name, values)
}
