package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatOuterUnion(t *testing.T) {
	q1 := New("Date_Key", "Fund_Name")
	q1.AppendRow(Int(20230331), Text("A"))
	q2 := New("Date_Key", "Fund_Name", "Third_Party")
	q2.AppendRow(Int(20230630), Text("B"), Text("TP"))

	all := Concat(q1, q2)
	assert.Equal(t, []string{"Date_Key", "Fund_Name", "Third_Party"}, all.Columns())
	assert.Equal(t, 2, all.Len())
	assert.True(t, all.At(0, "Third_Party").IsNull())
	assert.Equal(t, "TP", all.At(1, "Third_Party").String())

	assert.Equal(t, 0, Concat().Width())
}

func TestOuterJoin(t *testing.T) {
	master := New("Fund_Code", "Fund_Name")
	master.AppendRow(Text("100"), Text("A FUND"))
	master.AppendRow(Text("200"), Text("C FUND"))

	observed := New("Fund_Name", "Seen")
	observed.AppendRow(Text("A FUND"), Bool(true))
	observed.AppendRow(Text("Z FUND"), Bool(true))

	joined, err := OuterJoin(master, observed, "Fund_Name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Fund_Code", "Fund_Name", "Seen"}, joined.Columns())
	require.Equal(t, 3, joined.Len())

	// matched, then unmatched left, then unmatched right
	assert.Equal(t, []Cell{Text("100"), Text("A FUND"), Bool(true)}, joined.Row(0).Cells())
	assert.Equal(t, []Cell{Text("200"), Text("C FUND"), Null}, joined.Row(1).Cells())
	assert.Equal(t, []Cell{Null, Text("Z FUND"), Bool(true)}, joined.Row(2).Cells())

	_, err = OuterJoin(master, observed, "Fund_Code")
	assert.ErrorIs(t, err, ErrNoColumn)
}

func TestLookupColumn(t *testing.T) {
	facts := New("Name")
	facts.AppendRow(Text("A"))
	facts.AppendRow(Text("B"))
	facts.AppendRow(Null)
	facts.AppendRow(Text("A"))

	dim := New("Name_Key", "Name")
	dim.AppendRow(Int(1), Text("A"))
	dim.AppendRow(Int(2), Text("B"))

	keys, err := facts.LookupColumn("Name", dim, "Name", "Name_Key")
	require.NoError(t, err)
	assert.Equal(t, []Cell{Int(1), Int(2), Null, Int(1)}, keys)

	t.Run("duplicate dimension value is a fan-out", func(t *testing.T) {
		dup := dim.Clone()
		dup.AppendRow(Int(3), Text("A"))
		_, err := facts.LookupColumn("Name", dup, "Name", "Name_Key")
		assert.ErrorIs(t, err, ErrFanOut)
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := facts.LookupColumn("Nope", dim, "Name", "Name_Key")
		assert.ErrorIs(t, err, ErrNoColumn)
		_, err = facts.LookupColumn("Name", dim, "Name", "Nope")
		assert.ErrorIs(t, err, ErrNoColumn)
	})

	t.Run("numbers and text do not match", func(t *testing.T) {
		codes := New("Code")
		codes.AppendRow(Int(100))
		lookup := New("Code", "Code_Key")
		lookup.AppendRow(Text("100"), Int(1))
		keys, err := codes.LookupColumn("Code", lookup, "Code", "Code_Key")
		require.NoError(t, err)
		assert.True(t, keys[0].IsNull())
	})
}
