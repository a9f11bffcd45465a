package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/driftlock/pkg/errors"
)

func validRaw() map[string]string {
	return map[string]string{
		"S3_BUCKET":  "my-backup-bucket",
		"AWS_REGION": "us-west-2",
		"MOUNT_DIR":  "/mnt/backup",
	}
}

func TestFromRawAppliesDefaultsAndOverrides(t *testing.T) {
	raw := validRaw()
	raw["CHECKSUM_ALGORITHM"] = "md5"
	raw["DRY_RUN"] = "true"

	cfg, err := FromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "my-backup-bucket", cfg.S3Bucket)
	assert.Equal(t, "md5", cfg.ChecksumAlgorithm)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "fast", cfg.IntegrityMode)
	assert.Equal(t, 100, cfg.AlignmentHistoryRetention)
}

func TestFromRawRejectsMissingBucket(t *testing.T) {
	raw := validRaw()
	delete(raw, "S3_BUCKET")

	_, err := FromRaw(raw)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.CodeOf(err))
}

func TestFromRawRejectsMalformedRegion(t *testing.T) {
	raw := validRaw()
	raw["AWS_REGION"] = "not-a-region"

	_, err := FromRaw(raw)
	require.Error(t, err)
}

func TestFromRawRejectsMissingMountDir(t *testing.T) {
	raw := validRaw()
	delete(raw, "MOUNT_DIR")

	_, err := FromRaw(raw)
	require.Error(t, err)
}

func TestFromRawRejectsUnknownChecksumAlgorithm(t *testing.T) {
	raw := validRaw()
	raw["CHECKSUM_ALGORITHM"] = "crc32"

	_, err := FromRaw(raw)
	require.Error(t, err)
}

func TestFromRawRejectsUnknownIntegrityMode(t *testing.T) {
	raw := validRaw()
	raw["INTEGRITY_MODE"] = "paranoid"

	_, err := FromRaw(raw)
	require.Error(t, err)
}

func TestFromRawRejectsMalformedRetentionWindow(t *testing.T) {
	raw := validRaw()
	raw["DELETED_FILE_RETENTION"] = "not-a-window"

	_, err := FromRaw(raw)
	require.Error(t, err)
}

func TestFromRawParsesStrictExtensions(t *testing.T) {
	raw := validRaw()
	raw["STRICT_EXTENSIONS"] = ".docx, .xlsx,.pdf"

	cfg, err := FromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{".docx", ".xlsx", ".pdf"}, cfg.StrictExtensions)
}

func TestConfigRetentionWindow(t *testing.T) {
	cfg, err := FromRaw(validRaw())
	require.NoError(t, err)

	d, err := cfg.RetentionWindow()
	require.NoError(t, err)
	assert.Equal(t, 30*24*60, int(d.Minutes()))
}

func TestDumpDefaultsProducesYAML(t *testing.T) {
	data, err := DumpDefaults()
	require.NoError(t, err)
	assert.Contains(t, string(data), "CHECKSUM_ALGORITHM")
}
