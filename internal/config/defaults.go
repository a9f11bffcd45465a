package config

import "gopkg.in/yaml.v2"

// yamlDefaults mirrors Config's fields under their KEY=VALUE names so
// DumpDefaults can render a plain YAML reference (no comments) an operator
// can transcribe into a real KEY=VALUE file; the YAML document itself is never read back
// by Load, which only understands the KEY=VALUE format section 6 mandates.
type yamlDefaults struct {
	S3Bucket                   string   `yaml:"S3_BUCKET"`
	S3Prefix                   string   `yaml:"S3_PREFIX"`
	AWSRegion                  string   `yaml:"AWS_REGION"`
	AWSProfile                 string   `yaml:"AWS_PROFILE"`
	BackupBackend              string   `yaml:"BACKUP_BACKEND"`
	BackupStrategy             string   `yaml:"BACKUP_STRATEGY"`
	PreserveDirectoryPaths     bool     `yaml:"PRESERVE_DIRECTORY_PATHS"`
	BackupOrganization         string   `yaml:"BACKUP_ORGANIZATION"`
	ChecksumAlgorithm          string   `yaml:"CHECKSUM_ALGORITHM"`
	IntegrityMode              string   `yaml:"INTEGRITY_MODE"`
	StrictExtensions           []string `yaml:"STRICT_EXTENSIONS"`
	DeletedFileRetention       string   `yaml:"DELETED_FILE_RETENTION"`
	DryRun                     bool     `yaml:"DRY_RUN"`
	MountDir                   string   `yaml:"MOUNT_DIR"`
	ForceAlignmentMode         bool     `yaml:"FORCE_ALIGNMENT_MODE"`
	AlignmentHistoryRetention  int      `yaml:"ALIGNMENT_HISTORY_RETENTION"`
	ScanRefreshHours           int      `yaml:"FILESYSTEM_SCAN_REFRESH_HOURS"`
	ForceFilesystemScanRefresh bool     `yaml:"FORCE_FILESYSTEM_SCAN_REFRESH"`
	AuditSystemEnabled         bool     `yaml:"AUDIT_SYSTEM_ENABLED"`
	LogLevel                   string   `yaml:"LOG_LEVEL"`
	MaxLogSizeBytes            int64    `yaml:"MAX_LOG_SIZE"`
	S3CacheFile                string   `yaml:"S3_CACHE_FILE"`
	S3ReportFile               string   `yaml:"S3_REPORT_FILE"`
	S3InspectLogFile           string   `yaml:"S3_INSPECT_LOG_FILE"`
	DetailedS3Report           bool     `yaml:"DETAILED_S3_REPORT"`
}

// DumpDefaults renders NewDefault as YAML for --dump-defaults. S3_BUCKET,
// AWS_REGION, and MOUNT_DIR are left blank since they have no valid
// default; everything else is a working starting point.
func DumpDefaults() ([]byte, error) {
	d := NewDefault()
	return yaml.Marshal(yamlDefaults{
		S3Bucket:                   d.S3Bucket,
		S3Prefix:                   d.S3Prefix,
		AWSRegion:                  d.AWSRegion,
		AWSProfile:                 d.AWSProfile,
		BackupBackend:              d.BackupBackend,
		BackupStrategy:             d.BackupStrategy,
		PreserveDirectoryPaths:     d.PreserveDirectoryPaths,
		BackupOrganization:         d.BackupOrganization,
		ChecksumAlgorithm:          d.ChecksumAlgorithm,
		IntegrityMode:              d.IntegrityMode,
		StrictExtensions:           d.StrictExtensions,
		DeletedFileRetention:       d.DeletedFileRetention,
		DryRun:                     d.DryRun,
		MountDir:                   d.MountDir,
		ForceAlignmentMode:         d.ForceAlignmentMode,
		AlignmentHistoryRetention:  d.AlignmentHistoryRetention,
		ScanRefreshHours:           d.ScanRefreshHours,
		ForceFilesystemScanRefresh: d.ForceFilesystemScanRefresh,
		AuditSystemEnabled:         d.AuditSystemEnabled,
		LogLevel:                   d.LogLevel,
		MaxLogSizeBytes:            d.MaxLogSizeBytes,
		S3CacheFile:                d.S3CacheFile,
		S3ReportFile:               d.S3ReportFile,
		S3InspectLogFile:           d.S3InspectLogFile,
		DetailedS3Report:           d.DetailedS3Report,
	})
}
