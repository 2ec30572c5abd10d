package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-normdev/internal/domain"
)

// mockPolicy is a test implementation of the Policy interface
type mockPolicy struct {
	name        string
	executeFunc func(context.Context, ObservationSet, Grouper) (domain.Outcome, error)
	validateErr error
}

func (m *mockPolicy) Name() string { return m.name }

func (m *mockPolicy) Method() domain.Method { return domain.MethodSimple }

func (m *mockPolicy) Execute(ctx context.Context, set ObservationSet, grouper Grouper) (domain.Outcome, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, set, grouper)
	}
	return domain.Outcome{}, nil
}

func (m *mockPolicy) Validate() error { return m.validateErr }

type indexGrouper struct{}

func (indexGrouper) Key(index domain.MillerIndex) domain.GroupKey {
	return domain.GroupKey(index.String())
}

func TestPolicy_Interface(t *testing.T) {
	var _ Policy = (*mockPolicy)(nil)
	var _ Grouper = indexGrouper{}

	policy := &mockPolicy{
		name: "test-policy",
		executeFunc: func(ctx context.Context, set ObservationSet, grouper Grouper) (domain.Outcome, error) {
			var outliers []int
			for i := range set.Len() {
				if set.At(i).Value > 100 {
					outliers = append(outliers, i)
				}
			}
			return domain.Outcome{Outliers: outliers}, nil
		},
	}

	assert.Equal(t, "test-policy", policy.Name(), "Name() mismatch")
	assert.NoError(t, policy.Validate(), "Validate() should not return error")

	set := domain.NewTable(
		domain.Observation{Value: 1, Variance: 1, InverseScale: 1},
		domain.Observation{Value: 1000, Variance: 1, InverseScale: 1},
	)
	outcome, err := policy.Execute(context.Background(), set, indexGrouper{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, outcome.Outliers)
}

func TestPolicy_ErrorHandling(t *testing.T) {
	expectedErr := errors.New("execution failed")
	policy := &mockPolicy{
		name: "error-policy",
		executeFunc: func(context.Context, ObservationSet, Grouper) (domain.Outcome, error) {
			return domain.Outcome{}, expectedErr
		},
		validateErr: errors.New("validation failed"),
	}

	assert.Error(t, policy.Validate(), "Validate() should return error")

	_, err := policy.Execute(context.Background(), domain.NewTable(), indexGrouper{})
	assert.ErrorIs(t, err, expectedErr)
}
