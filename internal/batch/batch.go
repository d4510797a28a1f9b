// Package batch finds image files on disk and runs work over them on a
// bounded number of goroutines.
package batch

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Map calls fn for every path with at most workers calls in flight and
// returns the results in path order. The first error cancels the context
// passed to the remaining calls and is returned. workers <= 0 means
// runtime.NumCPU().
func Map[T any](ctx context.Context, paths []string, workers int,
	fn func(ctx context.Context, path string) (T, error),
) ([]T, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]T, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := fn(ctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
