// Package testutils provides utilities for testing, including recording
// collaborators and synthetic data generators. These components are intended
// for internal use within the project's test suites and the dataset
// generator command; they are not part of the public API.
package testutils

import (
	"math"
	"math/rand"
	"time"

	"github.com/ahrav/go-normdev/internal/domain"
)

// GroupedDatasetConfig controls synthetic dataset generation.
type GroupedDatasetConfig struct {
	// Groups is the number of distinct indices.
	Groups int
	// MinGroupSize and MaxGroupSize bound the number of repeats per index.
	MinGroupSize int
	MaxGroupSize int
	// Datasets is the number of datasets observations are spread over. Each
	// dataset has its own inverse scale factor.
	Datasets int
	// OutlierRate is the probability that a group receives one planted outlier.
	// Only groups with at least MinPlantedGroupSize members are planted.
	OutlierRate float64
	// OutlierSigmas is the planted deviation in units of the observation's
	// standard deviation.
	OutlierSigmas float64
}

// MinPlantedGroupSize is the smallest group that receives a planted outlier.
// Smaller groups are never examined by leave-one-out rejection.
const MinPlantedGroupSize = 4

// DefaultGroupedDatasetConfig returns a mid-sized configuration.
func DefaultGroupedDatasetConfig() GroupedDatasetConfig {
	return GroupedDatasetConfig{
		Groups:        200,
		MinGroupSize:  1,
		MaxGroupSize:  8,
		Datasets:      3,
		OutlierRate:   0.1,
		OutlierSigmas: 1000,
	}
}

// GroupedDataset is a generated observation table with its ground truth.
type GroupedDataset struct {
	// Table holds the observations in generation order.
	Table *domain.Table
	// Planted lists the rows that were displaced, ascending.
	Planted []int
	// Truth maps each group key (the identity key of the index) to its true value.
	Truth map[domain.GroupKey]float64
	// Seed is the seed the dataset was generated from.
	Seed int64
}

// GenerateGroupedDataset creates a synthetic set of repeated measurements.
// The seed parameter controls randomization - use time.Now().UnixNano() for
// non-deterministic generation or a fixed value for reproducible tests.
//
// Each group has a true value drawn from [10, 1000). A member from dataset d
// measures s_d times the true value with Gaussian noise of variance
// 1 + 0.05·s_d·truth, where s_d is the dataset's inverse scale in [0.8, 1.2).
// At most one member per eligible group is displaced by OutlierSigmas
// standard deviations.
func GenerateGroupedDataset(cfg GroupedDatasetConfig, seed int64) *GroupedDataset {
	rng := rand.New(rand.NewSource(seed))

	datasets := max(cfg.Datasets, 1)
	scales := make([]float64, datasets)
	for d := range scales {
		scales[d] = 0.8 + 0.4*rng.Float64()
	}

	out := &GroupedDataset{
		Table: domain.NewTable(),
		Truth: make(map[domain.GroupKey]float64, cfg.Groups),
		Seed:  seed,
	}

	minSize := max(cfg.MinGroupSize, 1)
	maxSize := max(cfg.MaxGroupSize, minSize)

	for g := range cfg.Groups {
		index := domain.MillerIndex{g%17 + 1, g / 17, g % 5}
		truth := 10 + 990*rng.Float64()
		out.Truth[domain.GroupKey(index.String())] = truth

		size := minSize + rng.Intn(maxSize-minSize+1)
		planted := -1
		if size >= MinPlantedGroupSize && rng.Float64() < cfg.OutlierRate {
			planted = rng.Intn(size)
		}

		for m := range size {
			d := rng.Intn(datasets)
			s := scales[d]
			variance := 1 + 0.05*s*truth
			value := s*truth + rng.NormFloat64()*math.Sqrt(variance)

			if m == planted {
				sign := 1.0
				if rng.Intn(2) == 0 {
					sign = -1
				}
				value += sign * cfg.OutlierSigmas * math.Sqrt(variance)
				out.Planted = append(out.Planted, out.Table.Len())
			}

			out.Table.Append(domain.Observation{
				Index:        index,
				Value:        value,
				Variance:     variance,
				InverseScale: s,
				DatasetID:    d,
			})
		}
	}

	return out
}

// GenerateGroupedDatasetDefault creates a default dataset with a time-based seed.
func GenerateGroupedDatasetDefault() *GroupedDataset {
	return GenerateGroupedDataset(DefaultGroupedDatasetConfig(), time.Now().UnixNano())
}
