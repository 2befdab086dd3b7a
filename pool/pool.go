// Package pool fans independent campaigns out across a worker pool
// (adapted from gopool's buildlet checkout pool: the same "bounded
// concurrent workers, first error wins" shape, repurposed from leasing
// remote build machines to running runner.RunTest concurrently).
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jwaldmann/dejafu/runner"
)

// Job is one campaign to run: a program plus the config to run it under.
type Job struct {
	Name    string
	Program runner.Program
	Config  runner.Config
}

// Outcome pairs a Job's name with its campaign result.
type Outcome struct {
	Name   string
	Result runner.Result
}

// Run executes every job, at most limit concurrently, and returns their
// results in job order. It mirrors gopool's checkout/limit token shape but
// through errgroup.Group instead of a hand-rolled channel semaphore, since
// there's no per-worker resource (a Gomote there, nothing here) to check
// back in.
func Run(ctx context.Context, limit int, jobs []Job) ([]Outcome, error) {
	out := make([]Outcome, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			out[i] = Outcome{Name: job.Name, Result: runner.RunTest(job.Program, job.Config)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
