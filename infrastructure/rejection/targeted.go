package rejection

import (
	"context"
	"fmt"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/grouping"
	"github.com/ahrav/go-normdev/internal/ports"
)

var _ ports.Policy = (*TargetedPolicy)(nil)

// TargetedPolicy flags observations that disagree with a reference dataset.
// Each observation is compared with the reference estimate for its group and
// flagged when the deviation exceeds ZMax. Groups the reference does not
// cover are skipped, as are the other members of the working set: the group
// estimate plays no part.
//
// The reference is either supplied directly or derived at execution time from
// a target observation set grouped with the same grouper as the working set.
// Target rows flagged as outliers are left out of the reference.
type TargetedPolicy struct {
	name   string
	config TargetedConfig

	// Exactly one of target and reference is set.
	target    ports.ObservationSet
	reference *grouping.Reference
}

// TargetedConfig defines the configuration parameters for TargetedPolicy.
type TargetedConfig struct {
	// ZMax is the rejection threshold on the normalised deviation.
	// Default: 9.0
	ZMax float64 `yaml:"zmax" json:"zmax" validate:"required,gt=0,finite"`
}

// DefaultTargetedConfig returns a TargetedConfig with production-ready defaults.
func DefaultTargetedConfig() TargetedConfig {
	return TargetedConfig{ZMax: DefaultZMax}
}

// NewTargetedPolicy creates a policy comparing against target.
// Returns domain.ErrMissingTarget if target is nil.
func NewTargetedPolicy(name string, config TargetedConfig, target ports.ObservationSet) (*TargetedPolicy, error) {
	if target == nil {
		return nil, domain.ErrMissingTarget
	}
	p, err := newTargetedPolicy(name, config)
	if err != nil {
		return nil, err
	}
	p.target = target
	return p, nil
}

// NewTargetedPolicyWithReference creates a policy comparing against a
// precomputed reference.
func NewTargetedPolicyWithReference(name string, config TargetedConfig, ref *grouping.Reference) (*TargetedPolicy, error) {
	if ref == nil {
		return nil, domain.ErrMissingTarget
	}
	p, err := newTargetedPolicy(name, config)
	if err != nil {
		return nil, err
	}
	p.reference = ref
	return p, nil
}

func newTargetedPolicy(name string, config TargetedConfig) (*TargetedPolicy, error) {
	if name == "" {
		return nil, ErrEmptyPolicyName
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return &TargetedPolicy{name: name, config: config}, nil
}

// NewTargetedFromConfig creates a TargetedPolicy from a configuration map.
// The "target" key must hold a ports.ObservationSet or a *grouping.Reference.
func NewTargetedFromConfig(id string, config map[string]any) (ports.Policy, error) {
	cfg := DefaultTargetedConfig()
	if err := decodeConfig(config, &cfg, "target"); err != nil {
		return nil, err
	}

	switch target := config["target"].(type) {
	case nil:
		return nil, domain.ErrMissingTarget
	case *grouping.Reference:
		return NewTargetedPolicyWithReference(id, cfg, target)
	case ports.ObservationSet:
		return NewTargetedPolicy(id, cfg, target)
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidTarget, target)
	}
}

// Name returns the unique identifier for this policy instance.
func (p *TargetedPolicy) Name() string { return p.name }

// Method returns domain.MethodTarget.
func (p *TargetedPolicy) Method() domain.Method { return domain.MethodTarget }

// Config returns the policy configuration.
func (p *TargetedPolicy) Config() TargetedConfig { return p.config }

// Validate checks if the policy is properly configured and ready for execution.
func (p *TargetedPolicy) Validate() error {
	if p.target == nil && p.reference == nil {
		return domain.ErrMissingTarget
	}
	return validateConfig(p.config)
}

// Execute scores every nonzero-weight observation whose group the reference
// covers and flags those above ZMax.
func (p *TargetedPolicy) Execute(
	ctx context.Context,
	set ports.ObservationSet,
	grouper ports.Grouper,
) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{}, domain.NewRejectionError(p.Method(), 1, err)
	}

	ref := p.reference
	if ref == nil {
		var err error
		if ref, err = grouping.BuildReference(p.target, grouper); err != nil {
			return domain.Outcome{}, domain.NewRejectionError(p.Method(), 1, err)
		}
	}

	t, err := grouping.Build(set, grouper, nil)
	if err != nil {
		return domain.Outcome{}, domain.NewRejectionError(p.Method(), 1, fmt.Errorf("build table: %w", err))
	}
	scores, err := grouping.Estimate(t, grouping.AgainstReference, ref)
	if err != nil {
		return domain.Outcome{}, domain.NewRejectionError(p.Method(), 1, fmt.Errorf("estimate deviations: %w", err))
	}

	outliers := thresholdPass(t, scores, p.config.ZMax)
	return domain.Outcome{
		Outliers: outliers,
		Rounds: []domain.RoundStats{{
			Round:      1,
			Candidates: set.Len(),
			Eligible:   scores.EligibleCount(),
			Groups:     len(t.Groups()),
			Outliers:   len(outliers),
		}},
	}, nil
}
