package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// builtSchema runs the cleaning stages over the two quarter fixture
func builtSchema(t *testing.T) *Result {
	t.Helper()
	res, err := NewPipeline(testConfig(t), nil, nopLogger()).Run(twoQuarters(t))
	require.NoError(t, err)
	return res
}

func TestDimensionsDenseKeys(t *testing.T) {
	res := builtSchema(t)

	for _, dim := range res.Dimensions.All() {
		if dim == res.Dimensions.Date {
			continue
		}
		t.Run(dim.Name, func(t *testing.T) {
			assert.Equal(t, dim.Key, dim.Table.Columns()[0], "key column first")
			keys := dim.Table.Keys(dim.Key)
			require.Len(t, keys, dim.Table.Len(), "keys are unique")
			for i, k := range keys {
				assert.Equal(t, i+1, k)
			}
			assert.Len(t, dim.Table.Values(dim.Feature), dim.Table.Len(), "one row per value")
		})
	}
}

func TestDimensionsNothingCollapsed(t *testing.T) {
	assert.Empty(t, builtSchema(t).Dimensions.Collapsed())
}

func TestDimensionNames(t *testing.T) {
	res := builtSchema(t)
	var names []string
	for _, d := range res.Dimensions.All() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"Dim_Date", "Dim_CIS_Manager", "Dim_Sector_Classification", "Dim_Fund_Names",
		"Dim_Retail_Institutional", "Dim_Fund_of_Funds", "Dim_Third_Party", "Dim_Management_Style",
	}, names)
}

func TestDimensionContents(t *testing.T) {
	res := builtSchema(t)
	d := res.Dimensions

	assert.Equal(t, []string{"MANAGER X", "MANAGER Y"}, columnStrings(d.CISManager.Table, ColCISManager))

	assert.Equal(t, []string{KeyColumn(ColFundName), ColFundCode, ColFundName}, d.FundName.Table.Columns())
	assert.Equal(t, []string{"B FUND", "C FUND"}, columnStrings(d.FundName.Table, ColFundName))
	assert.Equal(t, []string{"100", "200"}, columnStrings(d.FundName.Table, ColFundCode))

	assert.Equal(t, []string{
		KeyColumn(ColSectorClassification), ColSectorCode, ColSectorClassification, ColGeography, ColAllocation, ColPortfolio,
	}, d.SectorClassification.Table.Columns())
	assert.Equal(t, []string{"GLOBAL EQUITY", "SA EQUITY GENERAL"}, columnStrings(d.SectorClassification.Table, ColSectorClassification))
	assert.Equal(t, []string{"GLOBAL", "SA"}, columnStrings(d.SectorClassification.Table, ColGeography))

	ms := d.ManagementStyle.Table
	assert.Equal(t, []string{KeyColumn(ColManagementStyle), ColManagementStyle, ColManagementStyle + "_Description"}, ms.Columns())
	assert.Equal(t, []string{"BRANDED", "TBC"}, columnStrings(ms, ColManagementStyle))
	assert.Equal(t, []string{"BRANDED", "TO BE CONFIRMED"}, columnStrings(ms, ColManagementStyle+"_Description"))

	assert.Equal(t, []string{"FOF", "NOT_FOF"}, columnStrings(d.FundOfFunds.Table, ColFundOfFunds))
}

func TestDimensionCardinalityMismatch(t *testing.T) {
	cfg, err := ParseConfig([]byte("descriptions:\n  Third_Party:\n    TP: THIRD PARTY\n"))
	require.NoError(t, err)

	res := builtSchema(t)
	_, err = NewDimensionBuilder(cfg, nopLogger()).Build(res.Analysis, res.Funds)
	assert.ErrorIs(t, err, ErrCardinalityMismatch)
	assert.Contains(t, err.Error(), "NOT_TP")
}

func TestDimensionCollapsesDuplicates(t *testing.T) {
	cfg := testConfig(t)
	funds, err := CleanCISFunds(newTable(cisColumns,
		[]any{20230331, 1, "F", "ABCD", "SA EQUITY"},
		[]any{20230331, 2, "G", "WXYZ", "SA EQUITY"},
	))
	require.NoError(t, err)

	analysis := newTable([]string{
		ColDateKey, ColCISManager, ColFundName, ColSectorClassification, ColGeography,
		ColRetailInstitutional, ColFundOfFunds, ColThirdParty, ColManagementStyle,
	},
		[]any{20230331, "M", "F", "SA EQUITY", "SA", "RETAIL", "FOF", "TP", "TBC"},
		[]any{20230331, "M", "G", "SA EQUITY", "GLOBAL", "RETAIL", "FOF", "TP", "TBC"},
	)
	dims, err := NewDimensionBuilder(cfg, nopLogger()).Build(analysis, funds)
	require.NoError(t, err)

	sectors := dims.SectorClassification.Table
	require.Equal(t, 1, sectors.Len(), "one row per classification")
	assert.Equal(t, "ABCD", sectors.At(0, ColSectorCode).String(), "first in code order wins")
	assert.Equal(t, "SA", sectors.At(0, ColGeography).String())

	// two master codes times two observed attribute sets, one row kept
	assert.Equal(t, 3, dims.SectorClassification.Collapsed)
	assert.Equal(t, map[string]int{"Dim_Sector_Classification": 3}, dims.Collapsed())
}
