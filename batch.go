package wgslc

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchInput is one independent translation job.
type BatchInput struct {
	Name   string
	Source string
}

// BatchResult is the outcome of one job. Exactly one of Data and Err is
// set; a failed job never affects its siblings.
type BatchResult struct {
	Name string
	Data []byte
	Err  error
}

// TranslateBatch compiles independent modules concurrently, at most
// workers at a time (workers <= 0 means unbounded). Results are
// returned in input order. The only error returned by TranslateBatch
// itself is context cancellation; per-job failures land in their
// result slot.
func TranslateBatch(ctx context.Context, inputs []BatchInput, opts Options, workers int) ([]BatchResult, error) {
	results := make([]BatchResult, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := Translate(in.Source, opts)
			results[i] = BatchResult{Name: in.Name, Data: data, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
