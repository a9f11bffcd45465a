package inspector

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/driftlock/pkg/errors"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "inspector.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRefreshCacheSucceedsOnZeroExit(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	r := New(script, "/tmp/driftlock.conf", nil)
	err := r.RefreshCache(context.Background())
	assert.NoError(t, err)
}

func TestRefreshCacheFailsOnNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo boom 1>&2\nexit 1\n")
	r := New(script, "/tmp/driftlock.conf", nil)
	err := r.RefreshCache(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInspectorMissing, errors.CodeOf(err))
}

func TestRefreshCacheMissingExecutable(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "does-not-exist"), "/tmp/driftlock.conf", nil)
	err := r.RefreshCache(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInspectorMissing, errors.CodeOf(err))
}

func TestGenerateReportPassesReportOnlyFlag(t *testing.T) {
	script := writeScript(t, `
if [ "$1" != "--report-only" ]; then
  exit 2
fi
exit 0
`)
	r := New(script, "/tmp/driftlock.conf", nil)
	err := r.GenerateReport(context.Background())
	assert.NoError(t, err)
}
