package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplorerCounts(t *testing.T) {
	res := builtSchema(t)
	e := NewExplorer(res.RawAnalysis, res.RawCISFunds)

	assert.Equal(t, QuarterCounts{Analysis: 2, CISFunds: 2}, e.QuarterCounts())
	assert.Equal(t, ValueCounts{
		FundsAnalysis:   3, // A FUND, C FUND, Z FUND
		FundsCISFunds:   3, // A FUND, B FUND, C FUND
		SectorsAnalysis: 3,
		SectorsCISFunds: 2,
	}, e.ValueCounts())

	analysis, cis := e.Coverage()
	assert.Equal(t, []int{20230331, 20230630}, analysis.Quarters)
	assert.Empty(t, cis.Missing)
}

func TestExplorerSample(t *testing.T) {
	res := builtSchema(t)
	e := NewExplorer(res.RawAnalysis, res.RawCISFunds)

	s := e.SampleAnalysis(20230331)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, sampleCols, s.Width())
	assert.False(t, s.Has(ColDateKey))

	assert.Equal(t, 0, e.SampleCISFunds(19990101).Len())
}

func TestExplorerDataQuality(t *testing.T) {
	cis := newTable(cisColumns,
		[]any{20230331, 100, "A", "ABCD", "S"},
		[]any{20230630, 100, "B", "ABCD", "S"},
		[]any{20230630, "X1", "C", "TOOLONG", "T"},
		[]any{20230630, 200, "C", nil, "U"},
	)
	e := NewExplorer(newTable([]string{ColDateKey}), cis)

	multi := e.FundCodeMultiMapping(ColFundCode)
	assert.Equal(t, []string{"100", "100"}, columnStrings(multi, ColFundCode))
	assert.Equal(t, []string{"A", "B"}, columnStrings(multi, ColFundName))

	byName := e.FundCodeMultiMapping(ColFundName)
	assert.Equal(t, []string{"C", "C"}, columnStrings(byName, ColFundName))

	assert.Equal(t, 2, e.InvalidSectorCodes().Len())
	assert.Equal(t, 3, e.NumericFundCodes().Len())
}

func TestUnmappedSummary(t *testing.T) {
	analysis := newTable([]string{ColFundName, ColFundCode, ColSectorClassification, ColSectorCode},
		[]any{"A", "100", "S", "ABCD"},
		[]any{"X", nil, "S", "ABCD"},
		[]any{"X", nil, "NEW", nil},
	)
	u := UnmappedSummary(analysis)
	require.Equal(t, 3, u.Rows)
	assert.Equal(t, 2, u.FundRows)
	assert.Equal(t, 1, u.SectorRows)
	assert.Equal(t, []string{"X"}, u.FundNames)
	assert.Equal(t, []string{"NEW"}, u.SectorClasses)
}
