package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-normdev/infrastructure/rejection"
	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.PolicyRegistry = (*DefaultPolicyRegistry)(nil)

// DefaultPolicyRegistry implements the PolicyRegistry interface providing
// a factory for creating rejection policies based on method and configuration.
// It supports dynamic registration so callers can replace a built-in method
// with their own implementation.
type DefaultPolicyRegistry struct {
	// factories maps methods to their factory functions.
	factories map[domain.Method]ports.PolicyFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDefaultPolicyRegistry creates a new registry with the standard, simple
// and target methods pre-registered.
func NewDefaultPolicyRegistry() *DefaultPolicyRegistry {
	r := &DefaultPolicyRegistry{
		factories: make(map[domain.Method]ports.PolicyFactory),
	}
	r.registerBuiltinFactories()
	return r
}

// registerBuiltinFactories registers the rejection methods shipped with the module.
func (r *DefaultPolicyRegistry) registerBuiltinFactories() {
	r.factories[domain.MethodStandard] = rejection.NewStandardFromConfig
	r.factories[domain.MethodSimple] = rejection.NewSimpleFromConfig
	r.factories[domain.MethodTarget] = rejection.NewTargetedFromConfig
}

// CreatePolicy creates a new policy instance for method.
// It looks up the registered factory and delegates creation to it.
func (r *DefaultPolicyRegistry) CreatePolicy(
	method domain.Method,
	id string,
	config map[string]any,
) (ports.Policy, error) {
	r.mu.RLock()
	factory, exists := r.factories[method]
	r.mu.RUnlock()

	if !exists {
		return nil, domain.NewConfigError("method", method.String(), domain.ErrUnknownMethod)
	}

	if id == "" {
		return nil, fmt.Errorf("policy ID cannot be empty")
	}

	if config == nil {
		config = make(map[string]any)
	}

	policy, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy %s for method %s: %w", id, method, err)
	}

	return policy, nil
}

// RegisterPolicyFactory registers a factory function for method, replacing
// any existing one.
func (r *DefaultPolicyRegistry) RegisterPolicyFactory(
	method domain.Method,
	factory ports.PolicyFactory,
) error {
	if method == "" {
		return fmt.Errorf("method cannot be empty")
	}

	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[method] = factory
	return nil
}

// SupportedMethods returns all registered methods in sorted order.
func (r *DefaultPolicyRegistry) SupportedMethods() []domain.Method {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]domain.Method, 0, len(r.factories))
	for method := range r.factories {
		methods = append(methods, method)
	}
	slices.Sort(methods)

	return methods
}
