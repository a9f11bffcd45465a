package objectstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/driftlock/driftlock/pkg/errors"
	"github.com/driftlock/driftlock/pkg/recovery"
)

const component = "objectstore"

// Recovered wraps an ObjectStore so every call runs through a
// RecoveryManager: retried on transient failure, tripped into a circuit
// breaker on sustained failure, and marked degraded rather than allowed to
// cascade into a run-ending error. Construct one with NewRecovered around
// any concrete backend, typically an s3store.Store.
type Recovered struct {
	backend ObjectStore
	rm      *recovery.RecoveryManager
}

// NewRecovered returns a Recovered wrapping backend. If rm is nil, a
// RecoveryManager with default settings is created.
func NewRecovered(backend ObjectStore, rm *recovery.RecoveryManager) *Recovered {
	if rm == nil {
		rm = recovery.NewRecoveryManager(recovery.DefaultRecoveryConfig())
	}
	return &Recovered{backend: backend, rm: rm}
}

func (r *Recovered) Put(ctx context.Context, key string, reader io.Reader, size int64) (Info, error) {
	// Buffer the body once so a retried attempt gets its own fresh reader.
	// The wrapped backend's Put already reads its whole body into memory
	// before the network call (s3store.Store.Put), so this doesn't add a
	// new memory cost — it just keeps a copy alive across retries instead
	// of letting the first attempt drain the only copy.
	data, err := io.ReadAll(reader)
	if err != nil {
		return Info{}, err
	}

	result, err := r.rm.ExecuteWithResult(ctx, component, "put", func() (interface{}, error) {
		return r.backend.Put(ctx, key, bytes.NewReader(data), size)
	})
	if err != nil {
		return Info{}, err
	}
	return result.(Info), nil
}

func (r *Recovered) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := r.rm.ExecuteWithResult(ctx, component, "get", func() (interface{}, error) {
		return r.backend.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(io.ReadCloser), nil
}

func (r *Recovered) Delete(ctx context.Context, key string) error {
	return r.rm.Execute(ctx, component, "delete", func() error {
		return r.backend.Delete(ctx, key)
	})
}

func (r *Recovered) Exists(ctx context.Context, key string) (bool, Info, error) {
	type existsResult struct {
		ok   bool
		info Info
	}
	result, err := r.rm.ExecuteWithResult(ctx, component, "exists", func() (interface{}, error) {
		ok, info, err := r.backend.Exists(ctx, key)
		return existsResult{ok: ok, info: info}, err
	})
	if err != nil {
		return false, Info{}, err
	}
	er := result.(existsResult)
	return er.ok, er.info, nil
}

func (r *Recovered) List(ctx context.Context, prefix string) ([]Info, error) {
	result, err := r.rm.ExecuteWithResult(ctx, component, "list", func() (interface{}, error) {
		return r.backend.List(ctx, prefix)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Info), nil
}

func (r *Recovered) Move(ctx context.Context, srcKey, dstKey string) error {
	return r.rm.Execute(ctx, component, "move", func() error {
		return r.backend.Move(ctx, srcKey, dstKey)
	})
}

// PutParallelOptimized forwards to the wrapped backend's optimized path
// when it has one (s3store's bounded Put pool); otherwise it fans out
// plain, recovery-wrapped Put calls in waves of up to 4 at a time so
// PutParallel still benefits from retry and circuit-breaking even without
// CargoShip. Like PutParallel's own fallback, it stops dispatching further
// waves as soon as one fails.
func (r *Recovered) PutParallelOptimized(ctx context.Context, items []PutItem) []PutResult {
	if opt, ok := r.backend.(Parallel); ok {
		return opt.PutParallelOptimized(ctx, items)
	}

	const concurrency = 4
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
				info, err := r.Put(ctx, item.Key, bytes.NewReader(item.Data), int64(len(item.Data)))
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
