// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-normdev/internal/domain"
)

// ObservationSet is the tabular container rejection reads from and writes
// flags onto. *domain.Table is the in-memory implementation.
type ObservationSet interface {
	// Len returns the number of observations.
	Len() int

	// At returns the observation stored at row i.
	At(i int) domain.Observation

	// Float64Column returns a copy of a named float column.
	Float64Column(name string) ([]float64, error)

	// SetFloat64Column replaces a named float column.
	SetFloat64Column(name string, values []float64) error

	// Flags returns a per-row mask of where flag is set.
	Flags(flag domain.Flag) []bool

	// SetFlags sets flag on every row where mask is true.
	SetFlags(mask []bool, flag domain.Flag) error

	// UnsetFlags clears flag on every row where mask is true.
	UnsetFlags(mask []bool, flag domain.Flag) error

	// CountFlagged returns the number of rows carrying flag.
	CountFlagged(flag domain.Flag) int

	// DatasetIDs returns the distinct dataset identifiers present.
	DatasetIDs() []int
}

// Grouper decides which observations are repeated measurements of the same
// quantity by mapping each raw index to a group key.
// Implementations must be deterministic and safe for concurrent use.
type Grouper interface {
	Key(index domain.MillerIndex) domain.GroupKey
}

// Policy is one outlier rejection strategy. A Policy computes outlier
// indices but never writes flags; flag application belongs to the driver.
// Policies are stateless between calls and safe for concurrent use on
// disjoint observation sets.
type Policy interface {
	// Name returns a unique identifier for this policy instance.
	Name() string

	// Method returns the rejection method the policy implements.
	Method() domain.Method

	// Execute runs the policy to completion against set, grouping
	// observations with grouper. Outliers already flagged on set are not
	// treated specially; callers clear them first.
	//
	// The context is checked between estimation rounds.
	Execute(ctx context.Context, set ObservationSet, grouper Grouper) (domain.Outcome, error)

	// Validate checks if the policy is properly configured and ready for execution.
	Validate() error
}

// PolicyFactory creates a Policy from an identifier and a loosely typed
// configuration map, the same shape accepted from YAML.
type PolicyFactory func(id string, config map[string]any) (Policy, error)

// PolicyRegistry resolves rejection methods to policy factories.
type PolicyRegistry interface {
	// CreatePolicy builds a policy for method with the given configuration.
	CreatePolicy(method domain.Method, id string, config map[string]any) (Policy, error)

	// RegisterPolicyFactory installs or replaces the factory for method.
	RegisterPolicyFactory(method domain.Method, factory PolicyFactory) error

	// SupportedMethods lists the registered methods in sorted order.
	SupportedMethods() []domain.Method
}
