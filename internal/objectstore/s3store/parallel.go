package s3store

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/pkg/errors"
)

// PutParallelOptimized uploads items through Put from a semaphore pool of
// at most MultipartConcurrency (else PoolSize, else 4) concurrent uploads;
// each Put goes through CargoShip's transporter when CargoShip
// optimization is enabled. Once any upload has failed, items that have not
// started yet are not attempted and get a "not attempted" error. It
// satisfies objectstore.Parallel so objectstore.PutParallel prefers this
// path.
func (s *Store) PutParallelOptimized(ctx context.Context, items []objectstore.PutItem) []objectstore.PutResult {
	concurrency := s.config.MultipartConcurrency
	if concurrency <= 0 {
		concurrency = s.config.PoolSize
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]objectstore.PutResult, len(items))
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var failed atomic.Bool

	for i, item := range items {
		wg.Add(1)
		go func(i int, item objectstore.PutItem) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if failed.Load() {
				results[i] = objectstore.PutResult{Key: item.Key, Err: errors.New(errors.CodeInternal, "not attempted: another item in this batch failed")}
				return
			}
			info, err := s.Put(ctx, item.Key, bytes.NewReader(item.Data), int64(len(item.Data)))
			if err != nil {
				failed.Store(true)
			}
			results[i] = objectstore.PutResult{Key: item.Key, Info: info, Err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}
