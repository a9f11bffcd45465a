// Package objectstore declares the narrow object-store capability the
// synchronization core depends on, plus the retry/circuit-breaker/recovery
// decorator every concrete backend is wrapped in before it reaches the
// core. Concrete backends (s3store) and test doubles (storetest) implement
// ObjectStore directly; nothing above this package imports an AWS type.
package objectstore

import (
	"context"
	"io"
	"time"
)

// Info describes an object's metadata, returned by Exists, List, and as the
// result of a successful Put.
type Info struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectStore is the capability the sync engine, state store, and
// retention/alignment reconcilers use to move bytes to and from the
// backing S3-compatible bucket. Every method is safe for concurrent use.
type ObjectStore interface {
	// Put uploads size bytes read from r to key, overwriting any existing
	// object. It returns the stored object's Info, including the ETag the
	// backend assigned, so callers can verify the upload by size.
	Put(ctx context.Context, key string, r io.Reader, size int64) (Info, error)

	// Get opens key for reading. The caller must close the returned
	// ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a key that does not exist is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present, returning its Info when it
	// is.
	Exists(ctx context.Context, key string) (bool, Info, error)

	// List returns every object whose key has the given prefix.
	List(ctx context.Context, prefix string) ([]Info, error)

	// Move relocates an object from srcKey to dstKey. Object stores have
	// no native rename, so implementations copy then delete; callers must
	// not rely on this being atomic across the two keys.
	Move(ctx context.Context, srcKey, dstKey string) error
}

// PutItem is one unit of work for PutParallel.
type PutItem struct {
	Key  string
	Data []byte
}

// PutResult reports the outcome of one PutItem.
type PutResult struct {
	Key  string
	Info Info
	Err  error
}
