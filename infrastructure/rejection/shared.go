// Package rejection provides the outlier rejection policies that implement
// the ports.Policy interface: standard (recursive leave-one-out), simple
// (single include-self pass) and targeted (against a reference dataset).
package rejection

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/grouping"
	"github.com/ahrav/go-normdev/internal/ports"
)

// DefaultZMax is the default rejection threshold on the normalised deviation.
const DefaultZMax = 9.0

// TieBreaker represents the strategy for handling several members of a group
// sharing the exact maximum z-score in one round of standard rejection.
type TieBreaker string

// Supported tie-breaking strategies.
const (
	// TieAll flags every tied maximum in the round.
	TieAll TieBreaker = "all"

	// TieFirst flags only the tied maximum with the lowest observation index
	// and queues the rest for the next round.
	TieFirst TieBreaker = "first"
)

// Common errors returned by rejection policies.
var (
	// ErrEmptyPolicyName is returned when attempting to create a policy with an empty name.
	ErrEmptyPolicyName = errors.New("policy name cannot be empty")

	// ErrInvalidTarget is returned when the target supplied to a targeted
	// policy is neither an observation set nor a reference.
	ErrInvalidTarget = errors.New("target must be a ports.ObservationSet or *grouping.Reference")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// zmax must be finite as well as positive; gt=0 alone accepts +Inf.
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	})
	return v
}

// validateConfig runs struct validation and maps a zmax failure onto
// domain.ErrInvalidZMax so callers can match it.
func validateConfig(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "ZMax" {
				return fmt.Errorf("configuration validation failed: %w: %w", domain.ErrInvalidZMax, err)
			}
		}
	}
	return fmt.Errorf("configuration validation failed: %w: %w", domain.ErrInvalidConfiguration, err)
}

// decodeConfig overlays a loosely typed map onto cfg using yaml marshaling,
// skipping the given keys which carry non-serialisable dependencies.
func decodeConfig(config map[string]any, cfg any, skip ...string) error {
	params := maps.Clone(config)
	for _, k := range skip {
		delete(params, k)
	}
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// thresholdPass flags every eligible row whose score exceeds zmax. It is the
// classification step shared by the single-pass policies.
func thresholdPass(t *grouping.Table, scores grouping.Scores, zmax float64) []int {
	var outliers []int
	for k, pos := range scores.Positions() {
		if scores.Z[k] > zmax {
			outliers = append(outliers, t.Origin(pos))
		}
	}
	slices.Sort(outliers)
	return outliers
}

// setSize returns the number of rows a round was restricted to.
func setSize(set ports.ObservationSet, subset []int) int {
	if subset == nil {
		return set.Len()
	}
	return len(subset)
}
