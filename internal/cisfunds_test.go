package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cisColumns = []string{ColDateKey, ColFundCode, ColFundName, ColSectorCode, ColSectorClassification}

func TestCleanCISFundsRenamedFund(t *testing.T) {
	raw := newTable(cisColumns,
		[]any{20230331, 100, "A FUND", "ABCD", "SA EQUITY GENERAL"},
		[]any{20230630, 100, "B FUND", "ABCD", "SA EQUITY GENERAL"},
	)
	funds, err := CleanCISFunds(raw)
	require.NoError(t, err)

	require.Len(t, funds.Operational, 1)
	assert.Equal(t, Fund{Key: 1, Code: "100", Name: "B FUND", LastSeen: 20230630}, funds.Operational[0])
	require.Len(t, funds.Archived, 1)
	assert.Equal(t, "A FUND", funds.Archived[0].Name)

	resolved := ResolveFundNames(newTable([]string{ColFundName}, []any{"A FUND"}, []any{"B FUND"}, []any{"X FUND"}).Column(ColFundName), funds)
	assert.Equal(t, "B FUND", resolved[0].String())
	assert.Equal(t, "B FUND", resolved[1].String())
	assert.Equal(t, "X FUND", resolved[2].String(), "unknown names pass through")
}

func TestCleanCISFundsOrdering(t *testing.T) {
	tests := []struct {
		name        string
		rows        [][]any
		operational []string
		archived    []string
	}{
		{
			name: "later publication wins regardless of row order",
			rows: [][]any{
				{20230630, 100, "NEW", "ABCD", "S"},
				{20230331, 100, "OLD", "ABCD", "S"},
			},
			operational: []string{"NEW"},
			archived:    []string{"OLD"},
		},
		{
			name: "later row wins within one publication",
			rows: [][]any{
				{20230331, 100, "FIRST", "ABCD", "S"},
				{20230331, 100, "SECOND", "ABCD", "S"},
			},
			operational: []string{"SECOND"},
			archived:    []string{"FIRST"},
		},
		{
			name: "name coming back makes it current again",
			rows: [][]any{
				{20230331, 100, "ORIGINAL", "ABCD", "S"},
				{20230630, 100, "INTERIM", "ABCD", "S"},
				{20230930, 100, "ORIGINAL", "ABCD", "S"},
			},
			operational: []string{"ORIGINAL"},
			archived:    []string{"INTERIM"},
		},
		{
			name: "repeated pairings are counted once",
			rows: [][]any{
				{20230331, 100, "SAME", "ABCD", "S"},
				{20230630, 100, "SAME", "ABCD", "S"},
				{20230630, 200, "OTHER", "ABCD", "S"},
			},
			operational: []string{"OTHER", "SAME"},
		},
		{
			name: "rows without code or name are ignored",
			rows: [][]any{
				{20230331, nil, "NO CODE", "ABCD", "S"},
				{20230331, 100, nil, "ABCD", "S"},
				{20230331, 300, "KEPT", "ABCD", "S"},
			},
			operational: []string{"KEPT"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			funds, err := CleanCISFunds(newTable(cisColumns, tt.rows...))
			require.NoError(t, err)
			assert.Equal(t, tt.operational, fundNames(funds.Operational))
			assert.Equal(t, tt.archived, fundNames(funds.Archived))
		})
	}
}

func TestCleanCISFundsPartition(t *testing.T) {
	funds, err := CleanCISFunds(newTable(cisColumns,
		[]any{20230331, 100, "A", "ABCD", "S"},
		[]any{20230630, 100, "B", "ABCD", "S"},
		[]any{20230630, 200, "C", "ABCD", "S"},
		[]any{20230930, 200, "D", "ABCD", "S"},
		[]any{20230930, 100, "A", "ABCD", "S"},
	))
	require.NoError(t, err)

	// every pairing is in exactly one list and each code has one operational name
	seen := make(map[[2]string]int)
	codes := make(map[string]int)
	for _, f := range funds.Operational {
		seen[[2]string{f.Code, f.Name}]++
		codes[f.Code]++
	}
	for _, f := range funds.Archived {
		seen[[2]string{f.Code, f.Name}]++
	}
	assert.Len(t, seen, 4)
	for k, n := range seen {
		assert.Equal(t, 1, n, "pairing %v", k)
	}
	assert.Equal(t, map[string]int{"100": 1, "200": 1}, codes)
	assert.Equal(t, []string{"A", "D"}, fundNames(funds.Operational))
}

func TestCleanCISFundsSectors(t *testing.T) {
	funds, err := CleanCISFunds(newTable(cisColumns,
		[]any{20230331, 1, "F1", "ZZZZ", "WORLD EQUITY"},
		[]any{20230331, 2, "F2", "ABCD", "SA EQUITY"},
		[]any{20230630, 3, "F3", "ABCD", "SA EQUITY"},
		[]any{20230630, 4, "F4", "TOOLONG", "BROKEN"},
		[]any{20230630, 5, "F5", "AB", "SHORT"},
		[]any{20230630, 6, "F6", nil, "NONE"},
	))
	require.NoError(t, err)

	require.Len(t, funds.Sectors, 2)
	assert.Equal(t, Sector{Key: 1, Code: "ABCD", Classification: "SA EQUITY"}, funds.Sectors[0])
	assert.Equal(t, Sector{Key: 2, Code: "ZZZZ", Classification: "WORLD EQUITY"}, funds.Sectors[1])
	for _, s := range funds.Sectors {
		assert.Len(t, s.Code, SectorCodeLength)
	}
	assert.Equal(t, map[string]string{"SA EQUITY": "ABCD", "WORLD EQUITY": "ZZZZ"}, funds.SectorCodes())
}

func TestCleanCISFundsMissingColumn(t *testing.T) {
	_, err := CleanCISFunds(newTable([]string{ColDateKey, ColFundCode}))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestFundsTable(t *testing.T) {
	tbl := FundsTable([]Fund{{Key: 1, Code: "100", Name: "A", LastSeen: 20230331}, {Key: 2, Code: "200", Name: "B"}})
	assert.Equal(t, []string{ColFundCode, ColFundName, "Last_Seen"}, tbl.Columns())
	assert.Equal(t, []string{"20230331", ""}, columnStrings(tbl, "Last_Seen"))
}

func fundNames(funds []Fund) []string {
	var out []string
	for _, f := range funds {
		out = append(out, f.Name)
	}
	return out
}
