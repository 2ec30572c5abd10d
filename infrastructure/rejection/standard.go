package rejection

import (
	"context"
	"fmt"
	"slices"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/grouping"
	"github.com/ahrav/go-normdev/internal/ports"
)

var _ ports.Policy = (*StandardPolicy)(nil)

// StandardPolicy implements recursive normalised-deviation rejection.
//
// Each round scores every observation against the leave-one-out estimate of
// its group (groups of three or more only). In every group whose maximum
// score exceeds ZMax, the maximum is flagged and all other members are queued:
// removing the worst offender can change the group estimate enough to
// implicate or clear the rest. The next round is built from the queue alone,
// so queued members are grouped only with each other. Rejection stops when a
// round queues nothing.
//
// The rounds run as an explicit loop over a shrinking candidate set; each
// round removes at least one member from every queued group, so the loop
// ends after at most max(group size)-2 rounds.
//
// Concurrency: The policy is stateless and thread-safe for concurrent execution.
// Multiple goroutines may safely call Execute on disjoint observation sets.
//
// Example:
//
//	policy, err := NewStandardPolicy("standard", DefaultStandardConfig())
//	outcome, err := policy.Execute(ctx, observations, grouper)
type StandardPolicy struct {
	// name is the unique identifier for this policy instance.
	name string
	// config contains validated configuration parameters.
	config StandardConfig
}

// StandardConfig defines the configuration parameters for StandardPolicy.
type StandardConfig struct {
	// ZMax is the rejection threshold on the normalised deviation.
	// Default: 9.0
	ZMax float64 `yaml:"zmax" json:"zmax" validate:"required,gt=0,finite"`

	// TieBreaker decides what happens when several members of a group share
	// the exact maximum score.
	//
	// Supported values:
	//   - "all": flag every tied maximum in the same round
	//   - "first": flag the lowest-indexed tied maximum, queue the rest
	//
	// Default: "all".
	TieBreaker TieBreaker `yaml:"tie_breaker" json:"tie_breaker" validate:"required,oneof=all first"`

	// MaxRounds caps the number of rounds. Zero means no cap. When the cap is
	// reached the remaining queue is reported as ambiguous.
	MaxRounds int `yaml:"max_rounds" json:"max_rounds" validate:"min=0"`
}

// DefaultStandardConfig returns a StandardConfig with production-ready defaults.
func DefaultStandardConfig() StandardConfig {
	return StandardConfig{
		ZMax:       DefaultZMax,
		TieBreaker: TieAll,
	}
}

// NewStandardPolicy creates a new StandardPolicy with the specified configuration.
// Returns ErrEmptyPolicyName if name is empty or a wrapped validation error
// if the configuration is invalid.
func NewStandardPolicy(name string, config StandardConfig) (*StandardPolicy, error) {
	if name == "" {
		return nil, ErrEmptyPolicyName
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return &StandardPolicy{name: name, config: config}, nil
}

// NewStandardFromConfig creates a StandardPolicy from a configuration map.
// This is the boundary adapter for YAML/JSON configuration.
func NewStandardFromConfig(id string, config map[string]any) (ports.Policy, error) {
	cfg := DefaultStandardConfig()
	if err := decodeConfig(config, &cfg, "target"); err != nil {
		return nil, err
	}
	return NewStandardPolicy(id, cfg)
}

// Name returns the unique identifier for this policy instance.
func (p *StandardPolicy) Name() string { return p.name }

// Method returns domain.MethodStandard.
func (p *StandardPolicy) Method() domain.Method { return domain.MethodStandard }

// Config returns the policy configuration.
func (p *StandardPolicy) Config() StandardConfig { return p.config }

// Validate checks if the policy is properly configured and ready for execution.
func (p *StandardPolicy) Validate() error { return validateConfig(p.config) }

// Execute runs rounds of leave-one-out rejection until no group is left to
// re-examine.
func (p *StandardPolicy) Execute(
	ctx context.Context,
	set ports.ObservationSet,
	grouper ports.Grouper,
) (domain.Outcome, error) {
	var outcome domain.Outcome

	// nil means every row of set; afterwards the queue of the previous round.
	var candidates []int
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return domain.Outcome{}, domain.NewRejectionError(p.Method(), round, err)
		}
		if p.config.MaxRounds > 0 && round > p.config.MaxRounds {
			outcome.Ambiguous = candidates
			break
		}

		outliers, queued, stats, err := p.round(set, grouper, candidates)
		if err != nil {
			return domain.Outcome{}, domain.NewRejectionError(p.Method(), round, err)
		}
		stats.Round = round

		outcome.Outliers = append(outcome.Outliers, outliers...)
		outcome.Rounds = append(outcome.Rounds, stats)

		if len(queued) == 0 {
			break
		}
		candidates = queued
	}

	slices.Sort(outcome.Outliers)
	return outcome, nil
}

// round performs one estimate-and-classify pass over candidates and returns
// the flagged and queued set indices, both sorted.
func (p *StandardPolicy) round(
	set ports.ObservationSet,
	grouper ports.Grouper,
	candidates []int,
) (outliers, queued []int, stats domain.RoundStats, err error) {
	t, err := grouping.Build(set, grouper, candidates)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("build table: %w", err)
	}
	scores, err := grouping.Estimate(t, grouping.LeaveOneOut, nil)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("estimate deviations: %w", err)
	}
	z := scores.Dense()

	stats.Candidates = setSize(set, candidates)
	stats.Eligible = scores.EligibleCount()

	for _, group := range t.Groups() {
		if len(group.Members) < grouping.MinLeaveOneOutGroupSize {
			continue
		}
		stats.Groups++

		maxZ := z[group.Members[0]]
		for _, pos := range group.Members[1:] {
			maxZ = max(maxZ, z[pos])
		}
		if !(maxZ > p.config.ZMax) {
			continue
		}

		flagged := false
		for _, pos := range group.Members {
			isMax := z[pos] == maxZ
			if isMax && (p.config.TieBreaker == TieAll || !flagged) {
				outliers = append(outliers, t.Origin(pos))
				flagged = true
				continue
			}
			queued = append(queued, t.Origin(pos))
		}
	}

	// Sorted queues keep insertion order equal to index order, which makes
	// TieFirst pick the lowest index in every round.
	slices.Sort(outliers)
	slices.Sort(queued)
	stats.Outliers = len(outliers)
	stats.Queued = len(queued)
	return outliers, queued, stats, nil
}
