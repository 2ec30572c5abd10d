package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return NewTable(
		Observation{Index: MillerIndex{1, 0, 0}, Value: 10, Variance: 1, InverseScale: 1, DatasetID: 0},
		Observation{Index: MillerIndex{0, 1, 0}, Value: 20, Variance: 4, InverseScale: 2, DatasetID: 1},
		Observation{Index: MillerIndex{0, 0, 1}, Value: 30, Variance: 0, InverseScale: 1, DatasetID: 1, Flags: FlagOutlier},
	)
}

func TestObservation_Weight(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
		want float64
	}{
		{name: "positive variance", obs: Observation{Variance: 4}, want: 0.25},
		{name: "zero variance", obs: Observation{Variance: 0}, want: 0},
		{name: "negative variance", obs: Observation{Variance: -1}, want: 0},
		{name: "excluded", obs: Observation{Variance: 1, Flags: FlagExcluded}, want: 0},
		{name: "outlier flag does not zero weight", obs: Observation{Variance: 2, Flags: FlagOutlier}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.obs.Weight(), 1e-12)
		})
	}
}

func TestTable_Columns(t *testing.T) {
	tbl := sampleTable()
	require.Equal(t, 3, tbl.Len())

	values, err := tbl.Float64Column(ColumnValue)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, values)

	values[0] = 99
	again, err := tbl.Float64Column(ColumnValue)
	require.NoError(t, err)
	assert.Equal(t, 10.0, again[0], "returned column must be a copy")

	require.NoError(t, tbl.SetFloat64Column(ColumnInverseScale, []float64{1, 1, 1}))
	scales, err := tbl.Float64Column(ColumnInverseScale)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, scales)

	_, err = tbl.Float64Column("nope")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	err = tbl.SetFloat64Column(ColumnVariance, []float64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestTable_Flags(t *testing.T) {
	tbl := sampleTable()

	assert.Equal(t, 1, tbl.CountFlagged(FlagOutlier))
	assert.Equal(t, []bool{false, false, true}, tbl.Flags(FlagOutlier))

	require.NoError(t, tbl.SetFlags([]bool{true, false, false}, FlagOutlier))
	assert.Equal(t, 2, tbl.CountFlagged(FlagOutlier))
	assert.True(t, tbl.HasFlag(0, FlagOutlier))

	require.NoError(t, tbl.UnsetFlags([]bool{true, true, true}, FlagOutlier))
	assert.Zero(t, tbl.CountFlagged(FlagOutlier))

	require.NoError(t, tbl.SetFlags([]bool{false, true, false}, FlagExcluded))
	assert.False(t, tbl.HasFlag(1, FlagOutlier), "flags are independent bits")
	assert.True(t, tbl.HasFlag(1, FlagExcluded))

	assert.ErrorIs(t, tbl.SetFlags([]bool{true}, FlagOutlier), ErrLengthMismatch)
	assert.ErrorIs(t, tbl.UnsetFlags(nil, FlagOutlier), ErrLengthMismatch)
}

func TestTable_Select(t *testing.T) {
	tbl := sampleTable()

	sel, err := tbl.Select([]bool{true, false, true})
	require.NoError(t, err)
	require.Equal(t, 2, sel.Len())
	assert.Equal(t, 30.0, sel.At(1).Value)

	byIndex, err := tbl.SelectIndices([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, MillerIndex{0, 0, 1}, byIndex.Index(0))
	assert.Equal(t, MillerIndex{1, 0, 0}, byIndex.Index(1))

	_, err = tbl.SelectIndices([]int{3})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = tbl.Select([]bool{true})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestTable_DatasetIDsAndClone(t *testing.T) {
	tbl := sampleTable()
	assert.Equal(t, []int{0, 1}, tbl.DatasetIDs())

	clone := tbl.Clone()
	require.NoError(t, clone.SetFlags([]bool{true, true, true}, FlagExcluded))
	assert.Zero(t, tbl.CountFlagged(FlagExcluded), "clone must not share storage")
	assert.Equal(t, tbl.Observations()[0].Value, clone.Observations()[0].Value)
}

func TestMethod(t *testing.T) {
	for _, m := range Methods() {
		assert.True(t, m.IsValid(), "%s should be valid", m)
	}
	assert.False(t, Method("bogus").IsValid())
	assert.True(t, MethodTarget.RequiresTarget())
	assert.False(t, MethodStandard.RequiresTarget())
	assert.Equal(t, "simple", MethodSimple.String())
}

func TestMillerIndex_String(t *testing.T) {
	assert.Equal(t, "1,-2,3", MillerIndex{1, -2, 3}.String())
}
