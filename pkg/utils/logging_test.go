package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTextToStderr(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("info", "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLoggerJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "driftlock.log")
	logger, err := NewLogger("debug", path)
	require.NoError(t, err)
	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger("not-a-level", "")
	assert.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatBytes(tc.in))
	}
}

func TestParseBytes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"1K", 1024},
		{"1.5K", 1536},
		{"2M", 2 * 1024 * 1024},
		{"1G", 1024 * 1024 * 1024},
	}

	for _, tc := range cases {
		got, err := ParseBytes(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseBytesRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseBytes("")
	assert.Error(t, err)
}

func TestParseBytesRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ParseBytes("abc")
	assert.Error(t, err)
}
