package objectstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/driftlock/driftlock/pkg/errors"
)

// Parallel is implemented by backends that expose their own multi-object
// upload path in addition to the plain ObjectStore interface.
// s3store.Store implements it; PutParallel uses it when available and
// falls back to a bounded goroutine pool otherwise.
type Parallel interface {
	PutParallelOptimized(ctx context.Context, items []PutItem) []PutResult
}

// PutParallel uploads items in waves of up to concurrency simultaneous
// uploads and returns one PutResult per item in the order items was given.
// It stops dispatching further waves as soon as any item in a wave fails:
// items already in flight in that wave still run to completion, but no
// item past the failing wave is attempted. Items skipped this way get a
// PutResult carrying a "not attempted" error rather than a nil one.
// When store implements Parallel, the whole batch is handed to its
// PutParallelOptimized instead and concurrency is not used.
func PutParallel(ctx context.Context, store ObjectStore, items []PutItem, concurrency int) []PutResult {
	if len(items) == 0 {
		return nil
	}

	if opt, ok := store.(Parallel); ok {
		return opt.PutParallelOptimized(ctx, items)
	}

	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]PutResult, len(items))
	attempted := make([]bool, len(items))
	stopped := false

	for start := 0; start < len(items) && !stopped; start += concurrency {
		end := start + concurrency
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				item := items[i]
				info, err := store.Put(ctx, item.Key, bytes.NewReader(item.Data), int64(len(item.Data)))
				results[i] = PutResult{Key: item.Key, Info: info, Err: err}
			}(i)
		}
		wg.Wait()

		for i := start; i < end; i++ {
			attempted[i] = true
			if results[i].Err != nil {
				stopped = true
			}
		}
	}

	if stopped {
		for i, item := range items {
			if !attempted[i] {
				results[i] = PutResult{Key: item.Key, Err: errors.New(errors.CodeInternal, "not attempted: an earlier item in this batch failed")}
			}
		}
	}

	return results
}
