package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublicationDate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"typical", "Quarter ended 30 June 2023", 20230630, false},
		{"single digit day", "Quarter ended 1 March 2020", 20200301, false},
		{"lowercase month", "quarter ended 31 december 2019", 20191231, false},
		{"trailing space", "Quarter ended 30 September 2021  ", 20210930, false},
		{"no date", "Quarter ended", 0, true},
		{"abbreviated month", "Quarter ended 30 Jun 2023", 0, true},
		{"impossible day", "Quarter ended 31 June 2023", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePublicationDate(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPublicationDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractSheets(t *testing.T) {
	cfg := testConfig(t)
	audit := &MemoryAudit{}
	e := NewExtractor(cfg, audit, nopLogger())

	sheets, err := e.ExtractSheets(twoQuarters(t), cfg.Analysis)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	assert.Empty(t, audit.Entries())

	march := sheets[20230331]
	require.NotNil(t, march)
	assert.Equal(t, 3, march.Len())
	assert.Equal(t, "Fund Name", march.Columns()[1], "headers are raw until standardised")
	assert.Equal(t, " A Fund ", march.At(0, "Fund Name").String(), "values are raw until standardised")

	total, ok := march.At(0, "Total Assets").Float()
	assert.True(t, ok, "numeric columns stay numeric")
	assert.Equal(t, 1000.0, total)
	assert.True(t, march.At(0, "FoF").IsNull())
}

func TestExtractSheetsMissingSheetIsAudited(t *testing.T) {
	cfg := testConfig(t)
	audit := &MemoryAudit{}
	e := NewExtractor(cfg, audit, nopLogger())

	noAnalysis := Source{
		Name: "sept.xlsx",
		Data: buildWorkbook(t, "Quarter ended 30 September 2023", map[string][][]any{
			"CIS Funds": {cisFundsHeader, {100, "B Fund", "ABCD", "SA Equity General"}},
		}),
	}
	sources := append(twoQuarters(t), noAnalysis)

	sheets, err := e.ExtractSheets(sources, cfg.Analysis)
	require.NoError(t, err)
	assert.Len(t, sheets, 2)
	assert.NotContains(t, sheets, 20230930)

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 20230930, entries[0].Quarter)
	assert.Equal(t, ReasonNoData, entries[0].Reason)
	assert.Contains(t, entries[0].Event, EventIngestFailed)
	assert.Contains(t, entries[0].Event, "Analysis")
}

func TestExtractSheetsErrors(t *testing.T) {
	cfg := testConfig(t)

	t.Run("no phrase is fatal", func(t *testing.T) {
		src := Source{Name: "x.xlsx", Data: buildWorkbook(t, "Published 30 June 2023", map[string][][]any{
			"Analysis": {analysisHeader},
		})}
		_, err := NewExtractor(cfg, nil, nopLogger()).ExtractSheets([]Source{src}, cfg.Analysis)
		assert.ErrorIs(t, err, ErrNoQuarterPhrase)
		assert.Contains(t, err.Error(), "x.xlsx")
	})

	t.Run("bad date is fatal", func(t *testing.T) {
		src := Source{Name: "y.xlsx", Data: buildWorkbook(t, "Quarter ended sometime", nil)}
		_, err := NewExtractor(cfg, nil, nopLogger()).ExtractSheets([]Source{src}, cfg.Analysis)
		assert.ErrorIs(t, err, ErrPublicationDate)
	})

	t.Run("unreadable workbook is audited and skipped", func(t *testing.T) {
		audit := &MemoryAudit{}
		src := Source{Name: "old.xls", Data: []byte("not a workbook")}
		sheets, err := NewExtractor(cfg, audit, nopLogger()).ExtractSheets([]Source{src}, cfg.Analysis)
		require.NoError(t, err)
		assert.Empty(t, sheets)
		require.Len(t, audit.Entries(), 1)
		assert.Equal(t, ReasonUnreadable, audit.Entries()[0].Reason)
	})

	t.Run("damaged legacy workbook is audited and skipped", func(t *testing.T) {
		audit := &MemoryAudit{}
		data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, []byte("truncated")...)
		src := Source{Name: "2019Q1.xls", Data: data}
		sheets, err := NewExtractor(cfg, audit, nopLogger()).ExtractSheets([]Source{src}, cfg.Analysis)
		require.NoError(t, err)
		assert.Empty(t, sheets)
		require.Len(t, audit.Entries(), 1)
		assert.Equal(t, ReasonUnreadable, audit.Entries()[0].Reason)
	})
}

func TestExtractSheetsLegacyWorkbook(t *testing.T) {
	cfg := testConfig(t)
	audit := &MemoryAudit{}
	src := legacyQuarterSource(t, "2023Q1.xls", "Quarter ended 31 March 2023", marchCISFunds, marchAnalysis)

	sheets, err := NewExtractor(cfg, audit, nopLogger()).ExtractSheets([]Source{src}, cfg.Analysis)
	require.NoError(t, err)
	assert.Empty(t, audit.Entries())

	march := sheets[20230331]
	require.NotNil(t, march, "publication date is read from the legacy metadata sheet")
	assert.Equal(t, 3, march.Len())
	assert.Equal(t, "Fund Name", march.Columns()[1])
	assert.Equal(t, " A Fund ", march.At(0, "Fund Name").String())

	total, ok := march.At(0, "Total Assets").Float()
	assert.True(t, ok, "numeric columns stay numeric")
	assert.Equal(t, 1000.0, total)
	assert.True(t, march.At(0, "FoF").IsNull())
	assert.Equal(t, "Institutional", march.At(1, "Retail / Institutional").String())
}

func TestExtractLegacyAndCurrentMatch(t *testing.T) {
	cfg := testConfig(t)
	e := NewExtractor(cfg, nil, nopLogger())

	current, err := e.Extract([]Source{quarterSource(t, "q.xlsx", "Quarter ended 31 March 2023", marchCISFunds, marchAnalysis)}, cfg.Analysis, cfg.CISFunds)
	require.NoError(t, err)
	legacy, err := e.Extract([]Source{legacyQuarterSource(t, "q.xls", "Quarter ended 31 March 2023", marchCISFunds, marchAnalysis)}, cfg.Analysis, cfg.CISFunds)
	require.NoError(t, err)

	require.Len(t, legacy, 2)
	for i := range legacy {
		require.Contains(t, legacy[i], 20230331)
		assert.Equal(t, current[i][20230331].String(), legacy[i][20230331].String())
	}
}

func TestExtractOpensEachSourceOnce(t *testing.T) {
	cfg := testConfig(t)
	audit := &MemoryAudit{}
	sources := append(twoQuarters(t), Source{Name: "broken.xlsx", Data: []byte("not a workbook")})

	out, err := NewExtractor(cfg, audit, nopLogger()).Extract(sources, cfg.Analysis, cfg.CISFunds)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Len(t, out[0], 2)
	assert.Len(t, out[1], 2)

	entries := audit.Entries()
	require.Len(t, entries, 1, "one entry per unreadable source, not per sheet")
	assert.Equal(t, ReasonUnreadable, entries[0].Reason)
	assert.Zero(t, entries[0].Quarter)
	assert.Contains(t, entries[0].Event, `"Analysis", "CIS Funds"`)
	assert.Contains(t, entries[0].Event, "broken.xlsx")
}

func TestExtractSheetsHeaderRow(t *testing.T) {
	cfg := testConfig(t)
	spec := SheetSpec{Name: "Analysis", HeaderRow: 2}
	src := Source{Name: "q.xlsx", Data: buildWorkbook(t, "Quarter ended 31 March 2023", map[string][][]any{
		"Analysis": {
			{"Local fund statistics"},
			{},
			{"Fund Name", "", "Total Assets"},
			{"A Fund", "x", 1},
			{},
			{"B Fund", "y", 2},
		},
	})}

	sheets, err := NewExtractor(cfg, nil, nopLogger()).ExtractSheets([]Source{src}, spec)
	require.NoError(t, err)
	got := sheets[20230331]
	require.NotNil(t, got)
	assert.Equal(t, []string{"Fund Name", "Unnamed_1", "Total Assets"}, got.Columns())
	assert.Equal(t, 2, got.Len(), "blank rows are dropped")
}
