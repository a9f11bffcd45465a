// Package config loads and validates driftlock's KEY=VALUE configuration
// file: ParseFile reads and whitelists the raw lines, FromRaw builds and
// validates the typed, immutable Config that every other package consumes.
package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/driftlock/driftlock/pkg/errors"
)

var (
	bucketNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	awsRegionRe  = regexp.MustCompile(`^[a-z]{2}-[a-z]+-[0-9]+$`)
)

// Config is the fully validated, immutable configuration the rest of
// driftlock is built against. It is constructed once at startup by
// FromRaw/Load and never mutated afterward.
type Config struct {
	S3Bucket           string
	S3Prefix           string
	AWSRegion          string
	AWSProfile         string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	BackupBackend              string
	BackupStrategy             string
	PreserveDirectoryPaths     bool
	BackupOrganization         string
	ChecksumAlgorithm          string
	IntegrityMode              string
	StrictExtensions           []string
	DeletedFileRetention       string
	DryRun                     bool
	MountDir                   string
	ForceAlignmentMode         bool
	AlignmentHistoryRetention  int
	ScanRefreshHours           int
	ForceFilesystemScanRefresh bool
	AuditSystemEnabled         bool
	LogLevel                   string
	MaxLogSizeBytes            int64
	S3CacheFile                string
	S3ReportFile               string
	S3InspectLogFile           string
	DetailedS3Report           bool
}

// NewDefault returns sensible defaults for every optional key. Required
// keys (S3Bucket, AWSRegion, MountDir) are left empty; Validate rejects an
// empty Config for exactly that reason.
func NewDefault() *Config {
	return &Config{
		BackupBackend:              "s3",
		BackupStrategy:             "incremental",
		PreserveDirectoryPaths:     true,
		BackupOrganization:         "mirror",
		ChecksumAlgorithm:          "sha256",
		IntegrityMode:              "fast",
		DeletedFileRetention:       "30:00:00",
		AlignmentHistoryRetention:  100,
		ScanRefreshHours:           24,
		AuditSystemEnabled:         true,
		LogLevel:                   "INFO",
		MaxLogSizeBytes:            100 * 1024 * 1024,
		S3CacheFile:                "s3/s3-cache.json",
		S3ReportFile:               "s3/s3-report.json",
		S3InspectLogFile:           "s3-inspect.log",
	}
}

// Load reads path via ParseFile and builds a validated Config from it.
func Load(path string, logger *slog.Logger) (*Config, error) {
	raw, err := ParseFile(path, logger)
	if err != nil {
		return nil, err
	}
	return FromRaw(raw)
}

// FromRaw builds a Config from the whitelisted raw values ParseFile
// returns, starting from NewDefault and overlaying any key present in raw,
// then validates the result.
func FromRaw(raw map[string]string) (*Config, error) {
	c := NewDefault()

	if v, ok := raw["S3_BUCKET"]; ok {
		c.S3Bucket = v
	}
	if v, ok := raw["S3_PREFIX"]; ok {
		c.S3Prefix = v
	}
	if v, ok := raw["AWS_REGION"]; ok {
		c.AWSRegion = v
	}
	if v, ok := raw["AWS_PROFILE"]; ok {
		c.AWSProfile = v
	}
	if v, ok := raw["AWS_ACCESS_KEY_ID"]; ok {
		c.AWSAccessKeyID = v
	}
	if v, ok := raw["AWS_SECRET_ACCESS_KEY"]; ok {
		c.AWSSecretAccessKey = v
	}
	if v, ok := raw["AWS_SESSION_TOKEN"]; ok {
		c.AWSSessionToken = v
	}
	if v, ok := raw["BACKUP_BACKEND"]; ok {
		c.BackupBackend = v
	}
	if v, ok := raw["BACKUP_STRATEGY"]; ok {
		c.BackupStrategy = v
	}
	if v, ok := raw["PRESERVE_DIRECTORY_PATHS"]; ok {
		c.PreserveDirectoryPaths = parseBool(v, c.PreserveDirectoryPaths)
	}
	if v, ok := raw["BACKUP_ORGANIZATION"]; ok {
		c.BackupOrganization = v
	}
	if v, ok := raw["CHECKSUM_ALGORITHM"]; ok {
		c.ChecksumAlgorithm = v
	}
	if v, ok := raw["INTEGRITY_MODE"]; ok {
		c.IntegrityMode = v
	}
	if v, ok := raw["STRICT_EXTENSIONS"]; ok {
		c.StrictExtensions = splitList(v)
	}
	if v, ok := raw["DELETED_FILE_RETENTION"]; ok {
		c.DeletedFileRetention = v
	}
	if v, ok := raw["DRY_RUN"]; ok {
		c.DryRun = parseBool(v, c.DryRun)
	}
	if v, ok := raw["MOUNT_DIR"]; ok {
		c.MountDir = v
	}
	if v, ok := raw["FORCE_ALIGNMENT_MODE"]; ok {
		c.ForceAlignmentMode = parseBool(v, c.ForceAlignmentMode)
	}
	if v, ok := raw["ALIGNMENT_HISTORY_RETENTION"]; ok {
		c.AlignmentHistoryRetention = parseInt(v, c.AlignmentHistoryRetention)
	}
	if v, ok := raw["FILESYSTEM_SCAN_REFRESH_HOURS"]; ok {
		c.ScanRefreshHours = parseInt(v, c.ScanRefreshHours)
	}
	if v, ok := raw["FORCE_FILESYSTEM_SCAN_REFRESH"]; ok {
		c.ForceFilesystemScanRefresh = parseBool(v, c.ForceFilesystemScanRefresh)
	}
	if v, ok := raw["AUDIT_SYSTEM_ENABLED"]; ok {
		c.AuditSystemEnabled = parseBool(v, c.AuditSystemEnabled)
	}
	if v, ok := raw["LOG_LEVEL"]; ok {
		c.LogLevel = v
	}
	if v, ok := raw["MAX_LOG_SIZE"]; ok {
		c.MaxLogSizeBytes = parseInt64(v, c.MaxLogSizeBytes)
	}
	if v, ok := raw["S3_CACHE_FILE"]; ok {
		c.S3CacheFile = v
	}
	if v, ok := raw["S3_REPORT_FILE"]; ok {
		c.S3ReportFile = v
	}
	if v, ok := raw["S3_INSPECT_LOG_FILE"]; ok {
		c.S3InspectLogFile = v
	}
	if v, ok := raw["DETAILED_S3_REPORT"]; ok {
		c.DetailedS3Report = parseBool(v, c.DetailedS3Report)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every field with a required value or a closed set of
// valid values, returning the first violation found.
func (c *Config) Validate() error {
	if c.S3Bucket == "" || !bucketNameRe.MatchString(c.S3Bucket) {
		return errors.New(errors.CodeConfigInvalid, "S3_BUCKET is required and must be a valid bucket name")
	}
	if c.AWSRegion == "" || !awsRegionRe.MatchString(c.AWSRegion) {
		return errors.New(errors.CodeConfigInvalid, "AWS_REGION is required and must match ^[a-z]{2}-[a-z]+-[0-9]+$")
	}
	if c.MountDir == "" {
		return errors.New(errors.CodeConfigInvalid, "MOUNT_DIR is required")
	}

	switch c.ChecksumAlgorithm {
	case "md5", "sha256", "mtime":
	default:
		return errors.New(errors.CodeConfigInvalid, "CHECKSUM_ALGORITHM must be one of md5, sha256, mtime")
	}

	switch c.IntegrityMode {
	case "fast", "strict", "hybrid":
	default:
		return errors.New(errors.CodeConfigInvalid, "INTEGRITY_MODE must be one of fast, strict, hybrid")
	}

	if c.AlignmentHistoryRetention < 0 {
		return errors.New(errors.CodeConfigInvalid, "ALIGNMENT_HISTORY_RETENTION must not be negative")
	}
	if c.ScanRefreshHours < 0 {
		return errors.New(errors.CodeConfigInvalid, "FILESYSTEM_SCAN_REFRESH_HOURS must not be negative")
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return errors.New(errors.CodeConfigInvalid, fmt.Sprintf("invalid LOG_LEVEL: %s", c.LogLevel))
	}

	if _, err := c.RetentionWindow(); err != nil {
		return err
	}

	return nil
}

// RetentionWindow parses DeletedFileRetention as a DD:HH:MM duration.
func (c *Config) RetentionWindow() (time.Duration, error) {
	return parseWindow(c.DeletedFileRetention)
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(v string, fallback int64) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
