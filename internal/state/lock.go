package state

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/driftlock/driftlock/pkg/errors"
)

const (
	lockFileName        = "driftlock.lock"
	lockFilePermissions = 0o644
)

// ProcessLock is an exclusive, non-blocking lock on a sentinel file in the
// state directory. It keeps a second driftlock invocation from running
// against the same mount while one is already in progress.
type ProcessLock struct {
	f *os.File
}

// Lock acquires the sentinel lock, creating the state directory and lock
// file if needed. It fails immediately rather than blocking if another
// process already holds the lock.
func (s *Store) Lock() (*ProcessLock, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, errors.New(errors.CodeLocalIO, "failed to create state directory").WithCause(err)
	}

	path := filepath.Join(s.root, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, errors.New(errors.CodeLocalIO, "failed to open lock file").WithCause(err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, errors.New(errors.CodeAlreadyRunning, fmt.Sprintf("another driftlock run holds the lock at %s", path))
	}

	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Sync()

	return &ProcessLock{f: f}, nil
}

// Unlock releases the lock and closes the sentinel file. The file itself
// is left in place for the next run to reuse.
func (l *ProcessLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	flockErr := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	closeErr := l.f.Close()
	if flockErr != nil {
		return flockErr
	}
	return closeErr
}
