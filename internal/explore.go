package internal

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gigurra/cis-flows/internal/table"
)

const (
	sampleRows = 5
	sampleCols = 8
)

// Explorer gives read-only summaries of the standardised source tables
type Explorer struct {
	analysis *table.Table
	cisFunds *table.Table
}

// NewExplorer copies its inputs so later changes by the caller do not leak in
func NewExplorer(analysis, cisFunds *table.Table) *Explorer {
	return &Explorer{analysis: analysis.Clone(), cisFunds: cisFunds.Clone()}
}

// QuarterCounts is the number of quarters each source has data for
type QuarterCounts struct {
	Analysis int `json:"analysis"`
	CISFunds int `json:"cis_funds"`
}

func (e *Explorer) QuarterCounts() QuarterCounts {
	return QuarterCounts{
		Analysis: len(e.analysis.Keys(ColDateKey)),
		CISFunds: len(e.cisFunds.Keys(ColDateKey)),
	}
}

// ValueCounts is the number of distinct funds and sectors in each source
type ValueCounts struct {
	FundsAnalysis   int `json:"funds_analysis"`
	FundsCISFunds   int `json:"funds_cis_funds"`
	SectorsAnalysis int `json:"sectors_analysis"`
	SectorsCISFunds int `json:"sectors_cis_funds"`
}

func (e *Explorer) ValueCounts() ValueCounts {
	return ValueCounts{
		FundsAnalysis:   len(e.analysis.Values(ColFundName)),
		FundsCISFunds:   len(e.cisFunds.Values(ColFundName)),
		SectorsAnalysis: len(e.analysis.Values(ColSectorClassification)),
		SectorsCISFunds: len(e.cisFunds.Values(ColSectorClassification)),
	}
}

// Coverage returns the quarter coverage of both sources
func (e *Explorer) Coverage() (analysis, cisFunds Coverage) {
	return AnalyzeQuarterCoverage(e.analysis.Keys(ColDateKey)), AnalyzeQuarterCoverage(e.cisFunds.Keys(ColDateKey))
}

func (e *Explorer) SampleAnalysis(dateKey int) *table.Table {
	return sample(e.analysis, dateKey)
}

func (e *Explorer) SampleCISFunds(dateKey int) *table.Table {
	return sample(e.cisFunds, dateKey)
}

// sample returns the first rows and data columns published for one quarter
func sample(t *table.Table, dateKey int) *table.Table {
	rows := t.Where(ColDateKey, table.Int(dateKey)).Head(sampleRows)
	if rows.Width() < 2 {
		return rows
	}
	cols := rows.Columns()[1:]
	if len(cols) > sampleCols {
		cols = cols[:sampleCols]
	}
	out, _ := rows.Select(cols...)
	return out
}

// FundCodeMultiMapping lists the distinct (Fund_Code, Fund_Name) pairings whose
// value of feature is shared with another pairing, sorted by feature
func (e *Explorer) FundCodeMultiMapping(feature string) *table.Table {
	pairs, err := e.cisFunds.Select(ColFundCode, ColFundName)
	if err != nil {
		return table.New(ColFundCode, ColFundName)
	}
	pairs.Apply(func(_ string, c table.Cell) table.Cell { return UpperTrim(c.AsText()) })
	pairs = pairs.Distinct()

	counts := make(map[string]int)
	for _, c := range pairs.Column(feature) {
		counts[c.String()]++
	}
	return pairs.Filter(func(r table.Row) bool {
		return counts[r.Get(feature).String()] > 1
	}).SortBy(feature)
}

// InvalidSectorCodes returns master rows whose sector code is not four characters
func (e *Explorer) InvalidSectorCodes() *table.Table {
	return e.cisFunds.Filter(func(r table.Row) bool {
		code := r.Get(ColSectorCode)
		return code.IsNull() || utf8.RuneCountInString(code.String()) != SectorCodeLength
	})
}

// NumericFundCodes returns master rows whose fund code is purely digits
func (e *Explorer) NumericFundCodes() *table.Table {
	return e.cisFunds.Filter(func(r table.Row) bool {
		code := r.Get(ColFundCode)
		if code.IsNull() {
			return false
		}
		s := code.String()
		return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) == -1
	})
}

// Unmapped counts analysis rows whose names found no master code
type Unmapped struct {
	Rows          int      `json:"rows"`
	FundRows      int      `json:"fund_rows"`
	SectorRows    int      `json:"sector_rows"`
	FundNames     []string `json:"fund_names,omitempty"`
	SectorClasses []string `json:"sector_classes,omitempty"`
}

// UnmappedSummary reports the rows of a cleaned analysis table with Null codes
func UnmappedSummary(analysis *table.Table) Unmapped {
	u := Unmapped{Rows: analysis.Len()}
	funds := make(map[string]bool)
	sectors := make(map[string]bool)
	for i := 0; i < analysis.Len(); i++ {
		r := analysis.Row(i)
		if r.Get(ColFundCode).IsNull() {
			u.FundRows++
			if n := r.Get(ColFundName); !n.IsNull() && !funds[n.String()] {
				funds[n.String()] = true
				u.FundNames = append(u.FundNames, n.String())
			}
		}
		if r.Get(ColSectorCode).IsNull() {
			u.SectorRows++
			if s := r.Get(ColSectorClassification); !s.IsNull() && !sectors[s.String()] {
				sectors[s.String()] = true
				u.SectorClasses = append(u.SectorClasses, s.String())
			}
		}
	}
	return u
}
