package state

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/driftlock/pkg/errors"
)

func TestLockWritesCurrentPID(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	lock, err := store.Lock()
	require.NoError(t, err)
	require.NotNil(t, lock)
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(filepath.Join(store.Root(), lockFileName))
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestLockRejectsSecondAcquisition(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	lock, err := store.Lock()
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	_, err = store.Lock()
	require.Error(t, err)
	assert.Equal(t, errors.CodeAlreadyRunning, errors.CodeOf(err))
}

func TestLockCanBeReacquiredAfterUnlock(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	lock, err := store.Lock()
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())

	lock2, err := store.Lock()
	require.NoError(t, err)
	require.NoError(t, lock2.Unlock())
}
