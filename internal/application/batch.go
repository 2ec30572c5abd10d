package application

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/ports"
)

// Job is one independent rejection run within a batch.
type Job struct {
	// Name identifies the job in errors.
	Name string

	// Set is the observation set to flag. Sets must not be shared between
	// jobs of the same batch.
	Set ports.ObservationSet

	// Grouper groups the observations of Set.
	Grouper ports.Grouper

	// Request selects the method and its parameters.
	Request Request
}

// RejectBatch runs jobs concurrently, at most concurrency at a time (zero or
// less means unbounded), and returns their summaries in job order.
//
// The first failing job cancels the context of the others; jobs that already
// finished keep their flags, and each failed job leaves its own flags as they
// were.
func (d *Driver) RejectBatch(ctx context.Context, jobs []Job, concurrency int) ([]domain.Summary, error) {
	summaries := make([]domain.Summary, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, job := range jobs {
		g.Go(func() error {
			summary, err := d.RejectOutliers(ctx, job.Set, job.Grouper, job.Request)
			if err != nil {
				return fmt.Errorf("job %d (%s): %w", i, job.Name, err)
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summaries, err
	}
	return summaries, nil
}
