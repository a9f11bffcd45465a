package syncengine

import (
	"context"
	"sync"
)

// runPool runs every task with at most workers running concurrently and
// returns one result per task in input order. A task is never skipped for
// another task's failure: per-file errors are isolated into that task's
// FileResult rather than aborting the round. Tasks not yet started when the
// context is cancelled are resolved to a cancellation error in place.
func runPool(ctx context.Context, workers int, tasks []func() FileResult) []FileResult {
	if len(tasks) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}

	results := make([]FileResult, len(tasks))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, task := range tasks {
		if ctx.Err() != nil {
			results[i] = FileResult{Transition: TransitionErrored, Err: ctx.Err()}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, task func() FileResult) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = task()
		}(i, task)
	}

	wg.Wait()
	return results
}
