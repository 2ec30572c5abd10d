package application

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/grouping"
	"github.com/ahrav/go-normdev/internal/testutils"
)

var propertySeeds = []int64{1, 2, 3, 42, 2024}

func flaggedRows(set *domain.Table) []int {
	var rows []int
	for i, f := range set.Flags(domain.FlagOutlier) {
		if f {
			rows = append(rows, i)
		}
	}
	return rows
}

func TestProperty_StandardFindsPlantedOutliers(t *testing.T) {
	for _, seed := range propertySeeds {
		ds := testutils.GenerateGroupedDataset(testutils.DefaultGroupedDatasetConfig(), seed)
		require.NotEmpty(t, ds.Planted, "seed %d", seed)

		summary, err := newTestDriver().RejectOutliers(context.Background(), ds.Table, grouping.IdentityGrouper{},
			Request{Method: domain.MethodStandard, ZMax: 9})
		require.NoError(t, err)

		assert.Equal(t, ds.Planted, flaggedRows(ds.Table), "seed %d", seed)
		assert.Equal(t, len(ds.Planted), summary.Outliers)
		assert.True(t, summary.Combined)
	}
}

func TestProperty_FlaggedGroupsHaveThreeMembers(t *testing.T) {
	cfg := testutils.DefaultGroupedDatasetConfig()
	cfg.OutlierSigmas = 15

	for _, seed := range propertySeeds {
		ds := testutils.GenerateGroupedDataset(cfg, seed)

		_, err := newTestDriver().RejectOutliers(context.Background(), ds.Table, grouping.IdentityGrouper{},
			Request{Method: domain.MethodStandard, ZMax: 3})
		require.NoError(t, err)

		sizes := make(map[domain.MillerIndex]int)
		for i := range ds.Table.Len() {
			sizes[ds.Table.Index(i)]++
		}
		for _, row := range flaggedRows(ds.Table) {
			assert.GreaterOrEqual(t, sizes[ds.Table.Index(row)], grouping.MinLeaveOneOutGroupSize,
				"seed %d row %d", seed, row)
		}
	}
}

func TestProperty_SimpleIsMonotoneInZMax(t *testing.T) {
	cfg := testutils.DefaultGroupedDatasetConfig()
	cfg.OutlierSigmas = 20
	ds := testutils.GenerateGroupedDataset(cfg, 9)
	driver := newTestDriver()

	var previous []int
	for _, zmax := range []float64{2, 4, 8, 16, 32} {
		_, err := driver.RejectOutliers(context.Background(), ds.Table, grouping.IdentityGrouper{},
			Request{Method: domain.MethodSimple, ZMax: zmax})
		require.NoError(t, err)

		current := flaggedRows(ds.Table)
		if previous != nil {
			for _, row := range current {
				assert.True(t, slices.Contains(previous, row), "zmax %g flagged row %d which a lower zmax kept", zmax, row)
			}
		}
		previous = current
	}
}

func TestProperty_SimpleFlagsPlantedOutliers(t *testing.T) {
	ds := testutils.GenerateGroupedDataset(testutils.DefaultGroupedDatasetConfig(), 5)

	_, err := newTestDriver().RejectOutliers(context.Background(), ds.Table, grouping.IdentityGrouper{},
		Request{Method: domain.MethodSimple, ZMax: 9})
	require.NoError(t, err)

	// Include-self scoring also implicates clean members of contaminated
	// groups, so only recall is exact.
	metrics := testutils.ScoreDetection(ds.Planted, flaggedRows(ds.Table), ds.Table.Len())
	assert.InDelta(t, 1, metrics.Recall, 0, metrics.GenerateReport())
	assert.Positive(t, metrics.FalsePositives, metrics.GenerateReport())
}

func TestProperty_TargetedAgainstTruth(t *testing.T) {
	ds := testutils.GenerateGroupedDataset(testutils.DefaultGroupedDatasetConfig(), 17)

	target := domain.NewTable()
	for i := range ds.Table.Len() {
		index := ds.Table.Index(i)
		if _, ok := ds.Truth[domain.GroupKey(index.String())]; !ok {
			continue
		}
		target.Append(domain.Observation{
			Index:        index,
			Value:        ds.Truth[domain.GroupKey(index.String())],
			Variance:     1e-6,
			InverseScale: 1,
		})
		delete(ds.Truth, domain.GroupKey(index.String()))
	}

	_, err := newTestDriver().RejectOutliers(context.Background(), ds.Table, grouping.IdentityGrouper{},
		Request{Method: domain.MethodTarget, ZMax: 9, Target: target})
	require.NoError(t, err)
	assert.Equal(t, ds.Planted, flaggedRows(ds.Table))
}

func TestProperty_ExcludedObservationsAreNeverFlagged(t *testing.T) {
	ds := testutils.GenerateGroupedDataset(testutils.DefaultGroupedDatasetConfig(), 23)
	require.NotEmpty(t, ds.Planted)

	excluded := mask(ds.Table.Len(), ds.Planted...)
	require.NoError(t, ds.Table.SetFlags(excluded, domain.FlagExcluded))

	for _, method := range []domain.Method{domain.MethodStandard, domain.MethodSimple} {
		_, err := newTestDriver().RejectOutliers(context.Background(), ds.Table, grouping.IdentityGrouper{},
			Request{Method: method, ZMax: 9})
		require.NoError(t, err)

		for _, row := range ds.Planted {
			assert.False(t, ds.Table.HasFlag(row, domain.FlagOutlier), "%s flagged excluded row %d", method, row)
		}
	}
}
