package storetest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Put(context.Background(), "k", bytes.NewReader([]byte("data")), 4)
	require.NoError(t, err)

	r, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	defer r.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, "data", buf.String())
}

func TestPutRejectsSizeMismatch(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Put(context.Background(), "k", bytes.NewReader([]byte("data")), 99)
	assert.Error(t, err)
}

func TestGetMissingKeyErrors(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMoveMissingKeyErrors(t *testing.T) {
	t.Parallel()

	s := New()
	err := s.Move(context.Background(), "missing", "dst")
	assert.Error(t, err)
}

func TestListOrdersByKey(t *testing.T) {
	t.Parallel()

	s := New()
	_, _ = s.Put(context.Background(), "b", bytes.NewReader([]byte("1")), 1)
	_, _ = s.Put(context.Background(), "a", bytes.NewReader([]byte("1")), 1)

	infos, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Key)
	assert.Equal(t, "b", infos[1].Key)
}

func TestDeleteThenExists(t *testing.T) {
	t.Parallel()

	s := New()
	_, _ = s.Put(context.Background(), "k", bytes.NewReader([]byte("1")), 1)
	require.NoError(t, s.Delete(context.Background(), "k"))

	ok, _, err := s.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
