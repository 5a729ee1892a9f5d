package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const DefaultSize = 25

type Config[T any] struct {
	// Size is the number of items dispatched concurrently. Defaults to DefaultSize.
	Size      int
	OnSuccess func(item T)
	OnFailure func(item T, err error)
}

// Report counts the outcomes of a Run.
type Report struct {
	Succeeded int
	Failed    int
}

// Run processes items in consecutive batches. Items of a batch run concurrently and the batch is awaited
// before the next one starts. A failing item never aborts its batch or the run; only ctx does.
func Run[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error, c Config[T]) (Report, error) {
	size := c.Size
	if size <= 0 {
		size = DefaultSize
	}

	var (
		mu  sync.Mutex
		rep Report
	)

	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		end := min(start+size, len(items))

		var eg errgroup.Group
		for _, item := range items[start:end] {
			eg.Go(func() error {
				err := fn(ctx, item)

				mu.Lock()
				defer mu.Unlock()

				if err != nil {
					rep.Failed++
					if c.OnFailure != nil {
						c.OnFailure(item, err)
					}
					return nil
				}

				rep.Succeeded++
				if c.OnSuccess != nil {
					c.OnSuccess(item)
				}
				return nil
			})
		}

		_ = eg.Wait()
	}

	return rep, nil
}
