package internal

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gigurra/cis-flows/internal/table"
)

// ErrNoSources is returned when there is nothing to build a schema from
var ErrNoSources = errors.New("no analysis data in any source")

// Result holds every table a run produces
type Result struct {
	// Standardised source tables, before cleaning
	RawAnalysis *table.Table
	RawCISFunds *table.Table

	Analysis   *table.Table
	Funds      *CISFunds
	Dimensions *Dimensions
	Fact       *table.Table
}

// NamedTable is a table with the sheet name it is exported under
type NamedTable struct {
	Name  string
	Table *table.Table
}

// Tables returns the fact table, the eight dimensions and the two cleaned
// source tables, in export order
func (r *Result) Tables() []NamedTable {
	out := []NamedTable{{Name: "Fact_Assets", Table: r.Fact}}
	for _, d := range r.Dimensions.All() {
		out = append(out, NamedTable{Name: d.Name, Table: d.Table})
	}
	out = append(out,
		NamedTable{Name: "Original_Analysis", Table: r.Analysis},
		NamedTable{Name: "Original_CIS_Funds", Table: FundsTable(r.Funds.Operational)},
		NamedTable{Name: "Original_CIS_Sectors", Table: SectorsTable(r.Funds.Sectors)},
		NamedTable{Name: "Archived_CIS_Funds", Table: FundsTable(r.Funds.Archived)},
	)
	return out
}

// Pipeline runs extraction through fact building
type Pipeline struct {
	cfg    *Config
	audit  AuditLog
	logger zerolog.Logger
}

func NewPipeline(cfg *Config, audit AuditLog, logger zerolog.Logger) *Pipeline {
	if audit == nil {
		audit = NopAudit
	}
	return &Pipeline{cfg: cfg, audit: audit, logger: logger}
}

// Preprocess extracts and standardises the Analysis and CIS Funds sheets,
// opening each publication once
func (p *Pipeline) Preprocess(sources []Source) (analysis, cisFunds *table.Table, err error) {
	extractor := NewExtractor(p.cfg, p.audit, p.logger)
	standardiser := NewStandardiser(p.cfg)

	specs := []SheetSpec{p.cfg.Analysis, p.cfg.CISFunds}
	extracted, err := extractor.Extract(sources, specs...)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting publications: %w", err)
	}

	out := make([]*table.Table, 0, len(specs))
	for i, sheet := range specs {
		std, err := standardiser.Standardise(extracted[i])
		if err != nil {
			return nil, nil, fmt.Errorf("standardising %q: %w", sheet.Name, err)
		}
		p.logger.Info().Str("sheet", sheet.Name).Int("quarters", len(extracted[i])).Int("rows", std.Len()).Msg("Preprocessed sheet")
		out = append(out, std)
	}
	return out[0], out[1], nil
}

// Run builds the star schema from raw publications
func (p *Pipeline) Run(sources []Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	rawAnalysis, rawCIS, err := p.Preprocess(sources)
	if err != nil {
		return nil, err
	}
	if rawAnalysis.Len() == 0 {
		return nil, ErrNoSources
	}
	return p.Build(rawAnalysis, rawCIS)
}

// Build runs the cleaning and schema stages on already standardised tables
func (p *Pipeline) Build(rawAnalysis, rawCIS *table.Table) (*Result, error) {
	funds, err := CleanCISFunds(rawCIS)
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Int("operational", len(funds.Operational)).
		Int("archived", len(funds.Archived)).
		Int("sectors", len(funds.Sectors)).
		Msg("Cleaned CIS funds")

	cleaner := NewAnalysisCleaner(p.cfg)
	analysis, err := cleaner.Clean(rawAnalysis)
	if err != nil {
		return nil, err
	}
	if analysis, err = cleaner.Update(analysis, funds); err != nil {
		return nil, err
	}

	dims, err := NewDimensionBuilder(p.cfg, p.logger).Build(analysis, funds)
	if err != nil {
		return nil, fmt.Errorf("building dimensions: %w", err)
	}
	fact, err := NewFactBuilder(p.cfg).Build(analysis, dims)
	if err != nil {
		return nil, fmt.Errorf("building fact table: %w", err)
	}
	p.logger.Info().Int("fact_rows", fact.Len()).Int("calendar_days", dims.Date.Table.Len()).Msg("Built star schema")

	return &Result{
		RawAnalysis: rawAnalysis,
		RawCISFunds: rawCIS,
		Analysis:    analysis,
		Funds:       funds,
		Dimensions:  dims,
		Fact:        fact,
	}, nil
}
