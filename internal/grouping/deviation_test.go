package grouping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-normdev/internal/domain"
)

func TestEstimate_LeaveOneOut(t *testing.T) {
	tbl, err := Build(grossOutlierSet(), IdentityGrouper{}, nil)
	require.NoError(t, err)

	scores, err := Estimate(tbl, LeaveOneOut, nil)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, false, true, true, true}, scores.Eligible,
		"the single-member group is not eligible")
	assert.Equal(t, 5, scores.EligibleCount())
	assert.Equal(t, []int{0, 1, 3, 4, 5}, scores.Positions())

	dense := scores.Dense()
	require.Len(t, dense, 6)
	assert.Zero(t, dense[2])

	// Others of the gross outlier average 100 with Σws² = 4.
	assert.InDelta(t, 900/math.Sqrt(1+1.0/16), dense[5], 1e-9)

	// Others of row 1: {100, 99, 100, 1000} -> estimate 324.75.
	assert.InDelta(t, math.Abs(101-324.75)/math.Sqrt(1+1.0/16), dense[1], 1e-9)
}

func TestEstimate_IncludeSelf(t *testing.T) {
	tbl, err := Build(grossOutlierSet(), IdentityGrouper{}, nil)
	require.NoError(t, err)

	scores, err := Estimate(tbl, IncludeSelf, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, scores.EligibleCount(), "every nonzero-weight row is eligible")

	dense := scores.Dense()
	assert.InDelta(t, 0, dense[2], 1e-12, "a lone member agrees with itself")
	assert.InDelta(t, (1000-280)/math.Sqrt(1+1.0/25), dense[5], 1e-9)
}

func TestEstimate_IdenticalValuesScoreZero(t *testing.T) {
	set := domain.NewTable(
		obs(idxA, 250, 2, 1.5),
		obs(idxA, 250, 3, 1.5),
		obs(idxA, 250, 1, 1.5),
		obs(idxA, 250, 5, 1.5),
	)
	tbl, err := Build(set, IdentityGrouper{}, nil)
	require.NoError(t, err)

	for _, mode := range []Mode{IncludeSelf, LeaveOneOut} {
		t.Run(mode.String(), func(t *testing.T) {
			scores, err := Estimate(tbl, mode, nil)
			require.NoError(t, err)
			require.Equal(t, 4, scores.EligibleCount())
			for _, z := range scores.Z {
				assert.InDelta(t, 0, z, 1e-9)
			}
		})
	}
}

func TestEstimate_ZeroScaleOthersAreIneligible(t *testing.T) {
	tbl, err := BuildRows([]Row{
		{Origin: 0, Key: "a", Value: 10, Variance: 1, InverseScale: 1},
		{Origin: 1, Key: "a", Value: 0, Variance: 1, InverseScale: 0},
		{Origin: 2, Key: "a", Value: 0, Variance: 1, InverseScale: 0},
	})
	require.NoError(t, err)

	scores, err := Estimate(tbl, LeaveOneOut, nil)
	require.NoError(t, err)
	assert.False(t, scores.Eligible[0], "others carry no weight, so there is no estimate")
	assert.True(t, scores.Eligible[1])
}

func TestEstimate_AgainstReference(t *testing.T) {
	target := domain.NewTable(
		obs(idxA, 100, 1, 1),
		obs(idxA, 100, 1, 1),
	)
	ref, err := BuildReference(target, IdentityGrouper{})
	require.NoError(t, err)
	require.Equal(t, 1, ref.Len())

	entry, ok := ref.Lookup("1,0,0")
	require.True(t, ok)
	assert.InDelta(t, 100, entry.Value, 1e-12)
	assert.InDelta(t, 0.5, entry.Variance, 1e-12)

	set := domain.NewTable(
		obs(idxA, 103, 1, 1),
		obs(idxB, 5000, 1, 1),
		obs(idxA, 220, 4, 2),
	)
	tbl, err := Build(set, IdentityGrouper{}, nil)
	require.NoError(t, err)

	scores, err := Estimate(tbl, AgainstReference, ref)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, scores.Eligible, "reference misses are skipped")

	dense := scores.Dense()
	assert.InDelta(t, 3/math.Sqrt(1.5), dense[0], 1e-12)
	assert.InDelta(t, 20/math.Sqrt(4+4*0.5), dense[2], 1e-12)
}

func TestEstimate_Errors(t *testing.T) {
	tbl, err := BuildRows(nil)
	require.NoError(t, err)

	_, err = Estimate(tbl, AgainstReference, nil)
	assert.ErrorIs(t, err, ErrNilReference)

	_, err = Estimate(tbl, Mode(42), nil)
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Contains(t, err.Error(), "mode(42)")
}

func TestReference_Explicit(t *testing.T) {
	entries := map[domain.GroupKey]ReferenceEntry{"a": {Value: 1, Variance: 2}}
	ref := NewReference(entries)
	entries["b"] = ReferenceEntry{}

	assert.Equal(t, 1, ref.Len(), "reference copies its input")
	_, ok := ref.Lookup("b")
	assert.False(t, ok)
}

func TestEstimate_DoesNotMutateTable(t *testing.T) {
	tbl, err := Build(grossOutlierSet(), IdentityGrouper{}, nil)
	require.NoError(t, err)
	before, _ := tbl.Sums(0, false)

	_, err = Estimate(tbl, LeaveOneOut, nil)
	require.NoError(t, err)

	after, _ := tbl.Sums(0, false)
	assert.Equal(t, before, after)
}

func TestBuildReference_SkipsFlaggedOutliers(t *testing.T) {
	target := domain.NewTable(
		obs(idxA, 100, 1, 1),
		obs(idxA, 100, 1, 1),
		domain.Observation{Index: idxA, Value: 1e6, Variance: 1, InverseScale: 1, Flags: domain.FlagOutlier},
		domain.Observation{Index: idxB, Value: 7, Variance: 1, InverseScale: 1, Flags: domain.FlagOutlier},
	)

	ref, err := BuildReference(target, IdentityGrouper{})
	require.NoError(t, err)
	require.Equal(t, 1, ref.Len(), "a group with only flagged rows has no reference")

	entry, ok := ref.Lookup("1,0,0")
	require.True(t, ok)
	assert.InDelta(t, 100, entry.Value, 1e-12)
	assert.InDelta(t, 0.5, entry.Variance, 1e-12)

	_, err = BuildReference(nil, IdentityGrouper{})
	assert.ErrorIs(t, err, domain.ErrNilObservations)
}
