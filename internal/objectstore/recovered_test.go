package objectstore_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/internal/objectstore/storetest"
	"github.com/driftlock/driftlock/pkg/errors"
	"github.com/driftlock/driftlock/pkg/recovery"
)

// flakyPutStore fails the first failCount Put calls with a retryable
// transient error, then delegates to backend. Every attempt, including the
// failed ones, fully drains its reader first — the same thing s3store.Put
// does — so it exercises whether a retried attempt still has real bytes
// to drain rather than an already-exhausted reader.
type flakyPutStore struct {
	objectstore.ObjectStore
	failCount  int
	attempts   int
	gotOnRetry []byte
}

func (f *flakyPutStore) Put(ctx context.Context, key string, r io.Reader, size int64) (objectstore.Info, error) {
	f.attempts++
	data, err := io.ReadAll(r)
	if err != nil {
		return objectstore.Info{}, err
	}
	if f.attempts <= f.failCount {
		return objectstore.Info{}, errors.New(errors.CodeObjectStoreTransient, "simulated transient failure")
	}
	f.gotOnRetry = data
	return f.ObjectStore.Put(ctx, key, bytes.NewReader(data), size)
}

func TestRecoveredPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	backend := storetest.New()
	store := objectstore.NewRecovered(backend, nil)

	info, err := store.Put(context.Background(), "current_state/root/a.txt", bytes.NewReader([]byte("hello")), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	r, err := store.Get(context.Background(), "current_state/root/a.txt")
	require.NoError(t, err)
	defer r.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
}

func TestRecoveredExistsReportsAbsence(t *testing.T) {
	t.Parallel()

	store := objectstore.NewRecovered(storetest.New(), nil)

	ok, _, err := store.Exists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoveredMoveRelocatesObject(t *testing.T) {
	t.Parallel()

	backend := storetest.New()
	store := objectstore.NewRecovered(backend, nil)

	_, err := store.Put(context.Background(), "current_state/A/f1", bytes.NewReader([]byte("v1")), 2)
	require.NoError(t, err)

	require.NoError(t, store.Move(context.Background(), "current_state/A/f1", "yesterday_state/versions_A/f1"))

	ok, _, err := store.Exists(context.Background(), "current_state/A/f1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = store.Exists(context.Background(), "yesterday_state/versions_A/f1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecoveredListFiltersByPrefix(t *testing.T) {
	t.Parallel()

	backend := storetest.New()
	store := objectstore.NewRecovered(backend, nil)

	_, err := store.Put(context.Background(), "current_state/A/f1", bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "current_state/B/f2", bytes.NewReader([]byte("y")), 1)
	require.NoError(t, err)

	infos, err := store.List(context.Background(), "current_state/A/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "current_state/A/f1", infos[0].Key)
}

func TestRecoveredDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := objectstore.NewRecovered(storetest.New(), nil)
	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}

func TestRecoveredPutSurvivesRetryWithFullBody(t *testing.T) {
	t.Parallel()

	backend := storetest.New()
	flaky := &flakyPutStore{ObjectStore: backend, failCount: 1}
	store := objectstore.NewRecovered(flaky, nil)

	body := "the quick brown fox"
	info, err := store.Put(context.Background(), "current_state/A/f1", bytes.NewReader([]byte(body)), int64(len(body)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size)
	assert.Equal(t, body, string(flaky.gotOnRetry))

	r, err := backend.Get(context.Background(), "current_state/A/f1")
	require.NoError(t, err)
	defer r.Close()
	stored, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(stored))
}

func TestRecoveredUsesProvidedRecoveryManager(t *testing.T) {
	t.Parallel()

	cfg := recovery.DefaultRecoveryConfig()
	rm := recovery.NewRecoveryManager(cfg)
	store := objectstore.NewRecovered(storetest.New(), rm)

	_, err := store.Put(context.Background(), "k", bytes.NewReader([]byte("v")), 1)
	require.NoError(t, err)

	stats := rm.GetRecoveryStats()
	assert.Equal(t, 0, stats.DegradedComponents)
}
