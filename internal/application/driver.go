package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-normdev/infrastructure/rejection"
	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/grouping"
	"github.com/ahrav/go-normdev/internal/ports"
)

// Request selects the rejection method and its parameters for one run.
type Request struct {
	// Method is the rejection method to apply.
	Method domain.Method

	// ZMax is the rejection threshold. It must be positive and finite.
	ZMax float64

	// TieBreaker applies to the standard method. Empty means rejection.TieAll.
	TieBreaker rejection.TieBreaker

	// MaxRounds caps the standard method. Zero means no cap.
	MaxRounds int

	// Target is the reference dataset for the target method.
	Target ports.ObservationSet

	// Reference is a precomputed alternative to Target.
	Reference *grouping.Reference
}

// Driver is the public entry point for outlier rejection. It validates a
// request, clears previous outlier flags, runs the selected policy and writes
// the new flags, then reports the run to its logger, metrics and observer.
//
// A Driver is safe for concurrent use on disjoint observation sets.
type Driver struct {
	logger   *slog.Logger
	metrics  ports.MetricsCollector
	observer ports.RejectionObserver
	registry ports.PolicyRegistry
	newRunID func() string
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector. The default records nothing.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(d *Driver) { d.metrics = metrics }
}

// WithObserver sets the run observer. The default observes nothing.
func WithObserver(observer ports.RejectionObserver) Option {
	return func(d *Driver) { d.observer = observer }
}

// WithRegistry sets the policy registry. The default is NewDefaultPolicyRegistry().
func WithRegistry(registry ports.PolicyRegistry) Option {
	return func(d *Driver) {
		if registry != nil {
			d.registry = registry
		}
	}
}

// NewDriver creates a Driver with the given options applied over the defaults.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		logger:   slog.Default(),
		registry: NewDefaultPolicyRegistry(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.observer == nil {
		d.observer = noopObserver{}
	}
	return d
}

var defaultDriver = sync.OnceValue(func() *Driver { return NewDriver() })

// RejectOutliers runs method over set with the default driver. target is
// required for domain.MethodTarget and ignored otherwise.
func RejectOutliers(
	ctx context.Context,
	set ports.ObservationSet,
	grouper ports.Grouper,
	method domain.Method,
	zmax float64,
	target ports.ObservationSet,
) (domain.Summary, error) {
	return defaultDriver().RejectOutliers(ctx, set, grouper, Request{
		Method: method,
		ZMax:   zmax,
		Target: target,
	})
}

// RejectOutliers clears every outlier flag on set, runs the requested policy
// and sets the flag on exactly the observations it identifies.
//
// Configuration problems are reported as *domain.ConfigError, matching
// domain.ErrInvalidConfiguration, before set is touched. If the policy fails
// the flags are restored to their state before the call.
func (d *Driver) RejectOutliers(
	ctx context.Context,
	set ports.ObservationSet,
	grouper ports.Grouper,
	req Request,
) (domain.Summary, error) {
	if err := validateRequest(set, grouper, req, d.registry.SupportedMethods()); err != nil {
		d.recordRun(req.Method, "invalid")
		return domain.Summary{}, err
	}

	runID := d.newRunID()
	policy, err := d.registry.CreatePolicy(req.Method, runID, policyConfig(req))
	if err != nil {
		d.recordRun(req.Method, "invalid")
		return domain.Summary{}, err
	}

	logger := d.logger.With(
		slog.String("run_id", runID),
		slog.String("method", req.Method.String()),
	)
	ctx = d.observer.RunStarted(ctx, req.Method, req.ZMax, set.Len())
	logger.DebugContext(ctx, "starting outlier rejection",
		slog.Float64("zmax", req.ZMax),
		slog.Int("observations", set.Len()),
	)

	summary, err := d.run(ctx, set, grouper, policy)
	summary.RunID = runID
	summary.ZMax = req.ZMax

	if err != nil {
		d.recordRun(req.Method, "error")
		d.observer.RunFinished(ctx, summary, err)
		logger.ErrorContext(ctx, "outlier rejection failed", slog.Any("error", err))
		return summary, err
	}

	for _, stats := range summary.Outcome.Rounds {
		d.observer.RoundCompleted(ctx, stats)
	}
	d.recordSuccess(summary)
	d.observer.RunFinished(ctx, summary, nil)

	attrs := []any{
		slog.Int("outliers", summary.Outliers),
		slog.Int("rounds", summary.Rounds),
		slog.Int("datasets", summary.Datasets),
		slog.Duration("duration", summary.Duration),
	}
	if n := len(summary.Outcome.Ambiguous); n > 0 {
		attrs = append(attrs, slog.Int("ambiguous", n))
	}
	logger.InfoContext(ctx, FormatSummary(summary), attrs...)

	return summary, nil
}

// run performs the flag-mutating part of a request.
func (d *Driver) run(
	ctx context.Context,
	set ports.ObservationSet,
	grouper ports.Grouper,
	policy ports.Policy,
) (domain.Summary, error) {
	summary := domain.Summary{
		Method:       policy.Method(),
		Observations: set.Len(),
	}

	previous := set.Flags(domain.FlagOutlier)
	if err := set.UnsetFlags(previous, domain.FlagOutlier); err != nil {
		return summary, fmt.Errorf("clear outlier flags: %w", err)
	}

	start := time.Now()
	outcome, err := policy.Execute(ctx, set, grouper)
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, d.restore(set, previous, err)
	}

	mask, err := outlierMask(set.Len(), outcome.Outliers)
	if err != nil {
		return summary, d.restore(set, previous, domain.NewRejectionError(policy.Method(), 0, err))
	}
	if err := set.SetFlags(mask, domain.FlagOutlier); err != nil {
		return summary, d.restore(set, previous, fmt.Errorf("set outlier flags: %w", err))
	}

	datasets := set.DatasetIDs()
	summary.Outliers = len(outcome.Outliers)
	summary.Datasets = len(datasets)
	summary.Combined = len(datasets) > 1
	summary.Rounds = len(outcome.Rounds)
	summary.Outcome = outcome
	return summary, nil
}

// restore puts the outlier flags back as they were before the run.
func (d *Driver) restore(set ports.ObservationSet, previous []bool, cause error) error {
	current := set.Flags(domain.FlagOutlier)
	if err := set.UnsetFlags(current, domain.FlagOutlier); err != nil {
		return errors.Join(cause, fmt.Errorf("restore outlier flags: %w", err))
	}
	if err := set.SetFlags(previous, domain.FlagOutlier); err != nil {
		return errors.Join(cause, fmt.Errorf("restore outlier flags: %w", err))
	}
	return cause
}

// outlierMask converts sorted or unsorted outlier indices to a row mask.
func outlierMask(n int, outliers []int) ([]bool, error) {
	mask := make([]bool, n)
	for _, i := range outliers {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("outlier %d: %w", i, domain.ErrIndexOutOfRange)
		}
		mask[i] = true
	}
	return mask, nil
}

// validateRequest checks everything that can be checked without running the
// policy.
func validateRequest(
	set ports.ObservationSet,
	grouper ports.Grouper,
	req Request,
	supported []domain.Method,
) error {
	if set == nil {
		return domain.NewConfigError("observations", "", domain.ErrNilObservations)
	}
	if grouper == nil {
		return domain.NewConfigError("grouper", "", domain.ErrNilGrouper)
	}
	if !slices.Contains(supported, req.Method) {
		cerr := domain.NewConfigError("method", req.Method.String(), domain.ErrUnknownMethod)
		cerr.Suggestion = suggestMethod(req.Method.String(), supported)
		return cerr
	}
	if !(req.ZMax > 0) || math.IsInf(req.ZMax, 0) {
		return domain.NewConfigError("zmax", strconv.FormatFloat(req.ZMax, 'g', -1, 64), domain.ErrInvalidZMax)
	}
	if req.Method.RequiresTarget() && req.Target == nil && req.Reference == nil {
		return domain.NewConfigError("target", "", domain.ErrMissingTarget)
	}
	if req.TieBreaker != "" && req.TieBreaker != rejection.TieAll && req.TieBreaker != rejection.TieFirst {
		return domain.NewConfigError("tie_breaker", string(req.TieBreaker), domain.ErrInvalidConfiguration)
	}
	if req.MaxRounds < 0 {
		return domain.NewConfigError("max_rounds", strconv.Itoa(req.MaxRounds), domain.ErrInvalidConfiguration)
	}
	return nil
}

// policyConfig converts a request to the map accepted by policy factories.
func policyConfig(req Request) map[string]any {
	config := map[string]any{"zmax": req.ZMax}
	if req.Method == domain.MethodStandard {
		if req.TieBreaker != "" {
			config["tie_breaker"] = string(req.TieBreaker)
		}
		config["max_rounds"] = req.MaxRounds
	}
	switch {
	case req.Reference != nil:
		config["target"] = req.Reference
	case req.Target != nil:
		config["target"] = req.Target
	}
	return config
}

func (d *Driver) recordRun(method domain.Method, status string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordCounter(ports.MetricRejectionRuns, 1, map[string]string{
		"method": method.String(),
		"status": status,
	})
}

func (d *Driver) recordSuccess(summary domain.Summary) {
	d.recordRun(summary.Method, "success")
	if d.metrics == nil {
		return
	}
	labels := map[string]string{"method": summary.Method.String()}
	d.metrics.RecordCounter(ports.MetricOutliersFlagged, float64(summary.Outliers), labels)
	d.metrics.RecordLatency(ports.MetricRejectionDuration, summary.Duration, labels)
	d.metrics.RecordHistogram(ports.MetricRejectionRounds, float64(summary.Rounds), labels)
	if len(summary.Outcome.Rounds) > 0 {
		d.metrics.RecordGauge(ports.MetricEligibleObservations, float64(summary.Outcome.Rounds[0].Eligible), labels)
	}
}

// noopObserver is used when no observer is configured.
type noopObserver struct{}

func (noopObserver) RunStarted(ctx context.Context, _ domain.Method, _ float64, _ int) context.Context {
	return ctx
}
func (noopObserver) RoundCompleted(context.Context, domain.RoundStats)  {}
func (noopObserver) RunFinished(context.Context, domain.Summary, error) {}
