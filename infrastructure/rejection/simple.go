package rejection

import (
	"context"
	"fmt"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/grouping"
	"github.com/ahrav/go-normdev/internal/ports"
)

var _ ports.Policy = (*SimplePolicy)(nil)

// SimplePolicy flags, in a single pass, every observation whose deviation
// from its group estimate (formed including the observation itself) exceeds
// ZMax. Groups of any size take part; a lone member always scores zero.
//
// Concurrency: The policy is stateless and thread-safe for concurrent execution.
type SimplePolicy struct {
	name   string
	config SimpleConfig
}

// SimpleConfig defines the configuration parameters for SimplePolicy.
type SimpleConfig struct {
	// ZMax is the rejection threshold on the normalised deviation.
	// Default: 9.0
	ZMax float64 `yaml:"zmax" json:"zmax" validate:"required,gt=0,finite"`
}

// DefaultSimpleConfig returns a SimpleConfig with production-ready defaults.
func DefaultSimpleConfig() SimpleConfig {
	return SimpleConfig{ZMax: DefaultZMax}
}

// NewSimplePolicy creates a new SimplePolicy with the specified configuration.
func NewSimplePolicy(name string, config SimpleConfig) (*SimplePolicy, error) {
	if name == "" {
		return nil, ErrEmptyPolicyName
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return &SimplePolicy{name: name, config: config}, nil
}

// NewSimpleFromConfig creates a SimplePolicy from a configuration map.
// Keys that only apply to other methods are ignored.
func NewSimpleFromConfig(id string, config map[string]any) (ports.Policy, error) {
	cfg := DefaultSimpleConfig()
	if err := decodeConfig(config, &cfg, "target"); err != nil {
		return nil, err
	}
	return NewSimplePolicy(id, cfg)
}

// Name returns the unique identifier for this policy instance.
func (p *SimplePolicy) Name() string { return p.name }

// Method returns domain.MethodSimple.
func (p *SimplePolicy) Method() domain.Method { return domain.MethodSimple }

// Config returns the policy configuration.
func (p *SimplePolicy) Config() SimpleConfig { return p.config }

// Validate checks if the policy is properly configured and ready for execution.
func (p *SimplePolicy) Validate() error { return validateConfig(p.config) }

// Execute scores every nonzero-weight observation once and flags those above ZMax.
func (p *SimplePolicy) Execute(
	ctx context.Context,
	set ports.ObservationSet,
	grouper ports.Grouper,
) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{}, domain.NewRejectionError(p.Method(), 1, err)
	}

	t, err := grouping.Build(set, grouper, nil)
	if err != nil {
		return domain.Outcome{}, domain.NewRejectionError(p.Method(), 1, fmt.Errorf("build table: %w", err))
	}
	scores, err := grouping.Estimate(t, grouping.IncludeSelf, nil)
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
