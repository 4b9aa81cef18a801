package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// processBatch calls fn for every item with at most limit calls running at
// once. Items not yet started when ctx is cancelled are skipped. fn reports
// its own failures; only cancellation is returned.
func processBatch(ctx context.Context, items []string, limit int, fn func(ctx context.Context, i int, item string)) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			fn(ctx, i, item)
			return nil
		})
	}

	return g.Wait()
}
