package internal

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gigurra/cis-flows/internal/table"
)

// ErrCardinalityMismatch is returned when the configured descriptions do not
// cover every value observed for a feature
var ErrCardinalityMismatch = errors.New("description cardinality mismatch")

// Dimension is one star schema dimension table. The first column of Table is Key.
type Dimension struct {
	Name    string
	Feature string
	Key     string
	Table   *table.Table
	// Collapsed counts rows dropped to keep one row per feature value
	Collapsed int
}

// KeyColumn returns the surrogate key column name for a feature
func KeyColumn(feature string) string {
	return feature + "_Key"
}

// Dimensions are the conformed dimensions of the flows star schema
type Dimensions struct {
	Date                 *Dimension
	CISManager           *Dimension
	SectorClassification *Dimension
	FundName             *Dimension
	RetailInstitutional  *Dimension
	FundOfFunds          *Dimension
	ThirdParty           *Dimension
	ManagementStyle      *Dimension
}

// All returns the dimensions in fact column order, calendar first
func (d *Dimensions) All() []*Dimension {
	return []*Dimension{
		d.Date,
		d.CISManager,
		d.SectorClassification,
		d.FundName,
		d.RetailInstitutional,
		d.FundOfFunds,
		d.ThirdParty,
		d.ManagementStyle,
	}
}

// Collapsed returns the dropped row count of every dimension that lost rows
func (d *Dimensions) Collapsed() map[string]int {
	out := make(map[string]int)
	for _, dim := range d.All() {
		if dim != nil && dim.Collapsed > 0 {
			out[dim.Name] = dim.Collapsed
		}
	}
	return out
}

// SectorAttributes are the analysis columns describing a sector classification
var SectorAttributes = []string{ColSectorClassification, ColGeography, ColAllocation, ColPortfolio}

// DimensionBuilder derives dimension tables from the cleaned analysis and the master lookups
type DimensionBuilder struct {
	cfg    *Config
	logger zerolog.Logger
}

func NewDimensionBuilder(cfg *Config, logger zerolog.Logger) *DimensionBuilder {
	return &DimensionBuilder{cfg: cfg, logger: logger}
}

func (b *DimensionBuilder) Build(analysis *table.Table, funds *CISFunds) (*Dimensions, error) {
	var (
		d   Dimensions
		err error
	)

	simple := []struct {
		feature string
		dst     **Dimension
	}{
		{ColCISManager, &d.CISManager},
		{ColFundOfFunds, &d.FundOfFunds},
		{ColManagementStyle, &d.ManagementStyle},
		{ColRetailInstitutional, &d.RetailInstitutional},
		{ColThirdParty, &d.ThirdParty},
	}
	for _, s := range simple {
		if *s.dst, err = b.categorical(analysis, s.feature); err != nil {
			return nil, err
		}
	}

	if d.FundName, err = b.fundNames(analysis, funds); err != nil {
		return nil, err
	}
	if d.SectorClassification, err = b.sectors(analysis, funds); err != nil {
		return nil, err
	}
	if !analysis.Has(ColDateKey) {
		return nil, fmt.Errorf("analysis: %w: %s", ErrMissingColumn, ColDateKey)
	}
	if d.Date, err = BuildCalendar(analysis.Keys(ColDateKey)); err != nil {
		return nil, err
	}
	return &d, nil
}

// categorical builds a dimension over the distinct values of one column,
// with a description column when descriptions are configured for it
func (b *DimensionBuilder) categorical(analysis *table.Table, feature string) (*Dimension, error) {
	if !analysis.Has(feature) {
		return nil, fmt.Errorf("analysis: %w: %s", ErrMissingColumn, feature)
	}
	values := analysis.Values(feature)
	descriptions := b.cfg.GetDescriptions(feature)

	cols := []string{feature}
	if descriptions != nil {
		cols = append(cols, feature+"_Description")
		var missing []string
		for _, v := range values {
			if _, ok := descriptions[v.String()]; !ok {
				missing = append(missing, v.String())
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s has %d values but %d descriptions, no description for %s",
				ErrCardinalityMismatch, feature, len(values), len(descriptions), strings.Join(missing, ", "))
		}
	}

	t := table.New(cols...)
	for _, v := range values {
		if descriptions != nil {
			t.AppendRow(v, table.Text(descriptions[v.String()]))
		} else {
			t.AppendRow(v)
		}
	}
	return keyed(t, feature)
}

// fundNames outer joins the operational funds with the fund names seen in the analysis
func (b *DimensionBuilder) fundNames(analysis *table.Table, funds *CISFunds) (*Dimension, error) {
	if !analysis.Has(ColFundName) {
		return nil, fmt.Errorf("analysis: %w: %s", ErrMissingColumn, ColFundName)
	}
	master, err := FundsTable(funds.Operational).Select(ColFundCode, ColFundName)
	if err != nil {
		return nil, err
	}
	observed := table.New(ColFundName)
	for _, v := range analysis.Values(ColFundName) {
		observed.AppendRow(v)
	}
	joined, err := table.OuterJoin(master, observed, ColFundName)
	if err != nil {
		return nil, fmt.Errorf("fund name dimension: %w", err)
	}
	return b.collapsed(joined, ColFundName)
}

// sectors outer joins the master sector lookup with the sector attributes seen in the analysis
func (b *DimensionBuilder) sectors(analysis *table.Table, funds *CISFunds) (*Dimension, error) {
	var attrs []string
	for _, c := range SectorAttributes {
		if analysis.Has(c) {
			attrs = append(attrs, c)
		}
	}
	if !slices.Contains(attrs, ColSectorClassification) {
		return nil, fmt.Errorf("analysis: %w: %s", ErrMissingColumn, ColSectorClassification)
	}
	observed := analysis.Distinct(attrs...).Filter(func(r table.Row) bool {
		return !r.Get(ColSectorClassification).IsNull()
	})
	joined, err := table.OuterJoin(SectorsTable(funds.Sectors), observed, ColSectorClassification)
	if err != nil {
		return nil, fmt.Errorf("sector dimension: %w", err)
	}
	return b.collapsed(joined, ColSectorClassification)
}

// collapsed keys a joined table after keeping one row per feature value so
// the fact join cannot fan out. Master rows come first in join order, so they
// win over analysis-only rows.
func (b *DimensionBuilder) collapsed(t *table.Table, feature string) (*Dimension, error) {
	seen := make(map[string]bool, t.Len())
	dropped := 0
	out := t.Filter(func(r table.Row) bool {
		v := r.Get(feature)
		if v.IsNull() {
			return false
		}
		if seen[v.String()] {
			b.logger.Warn().Str("feature", feature).Str("value", v.String()).Msg("Value has several dimension rows, keeping the first")
			dropped++
			return false
		}
		seen[v.String()] = true
		return true
	})
	dim, err := keyed(out, feature)
	if err != nil {
		return nil, err
	}
	dim.Collapsed = dropped
	return dim, nil
}

// keyed sorts a dimension by its feature and prepends dense 1-based keys
func keyed(t *table.Table, feature string) (*Dimension, error) {
	sorted := t.SortBy(feature)
	keys := make([]table.Cell, sorted.Len())
	for i := range keys {
		keys[i] = table.Int(i + 1)
	}
	key := KeyColumn(feature)
	if err := sorted.InsertColumn(0, key, keys); err != nil {
		return nil, err
	}
	return &Dimension{
		Name:    dimensionName(feature),
		Feature: feature,
		Key:     key,
		Table:   sorted,
	}, nil
}

func dimensionName(feature string) string {
	if feature == ColFundName {
		return "Dim_Fund_Names"
	}
	return "Dim_" + feature
}
