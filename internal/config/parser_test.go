package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/driftlock/pkg/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driftlock.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFileAcceptsWhitelistedKeys(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=my-bucket\nAWS_REGION='us-east-1'\nMOUNT_DIR=\"/mnt/backup\"\n# a comment\n\n")

	raw, err := ParseFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", raw["S3_BUCKET"])
	assert.Equal(t, "us-east-1", raw["AWS_REGION"])
	assert.Equal(t, "/mnt/backup", raw["MOUNT_DIR"])
}

func TestParseFileIgnoresUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=my-bucket\nRANDOM_UNKNOWN_KEY=value\n")

	raw, err := ParseFile(path, nil)
	require.NoError(t, err)
	_, present := raw["RANDOM_UNKNOWN_KEY"]
	assert.False(t, present)
}

func TestParseFileRejectsMalformedLine(t *testing.T) {
	path := writeConfigFile(t, "this is not a kv line\n")

	_, err := ParseFile(path, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.CodeOf(err))
}

func TestParseFileRejectsCommandSubstitution(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=$(rm -rf /)\n")

	_, err := ParseFile(path, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigForbidden, errors.CodeOf(err))
}

func TestParseFileRejectsBackticks(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=`whoami`\n")

	_, err := ParseFile(path, nil)
	require.Error(t, err)
}

func TestParseFileRejectsSemicolon(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=bucket; rm -rf /\n")

	_, err := ParseFile(path, nil)
	require.Error(t, err)
}

func TestParseFileRejectsPipe(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=bucket | cat /etc/passwd\n")

	_, err := ParseFile(path, nil)
	require.Error(t, err)
}

func TestParseFileRejectsRedirection(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=bucket >> /etc/passwd\n")

	_, err := ParseFile(path, nil)
	require.Error(t, err)
}

func TestParseFileRejectsBraceExpansion(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=${HOME}\n")

	_, err := ParseFile(path, nil)
	require.Error(t, err)
}

func TestParseFileRejectsExecutableFile(t *testing.T) {
	path := writeConfigFile(t, "S3_BUCKET=bucket\n")
	require.NoError(t, os.Chmod(path, 0o755))

	_, err := ParseFile(path, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigForbidden, errors.CodeOf(err))
}

func TestParseFileMissingFile(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.conf"), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigMissing, errors.CodeOf(err))
}
