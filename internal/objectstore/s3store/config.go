package s3store

import "time"

// Config configures a Store: no storage-tier selection, no cost modeling,
// no transfer acceleration — just what a backup sync engine needs to reach
// a bucket and upload efficiently.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string // non-empty for S3-compatible endpoints (MinIO, etc.)
	ForcePathStyle bool

	MaxRetries     int
	RequestTimeout time.Duration
	PoolSize       int

	// EnableCargoShipOptimization makes Put (and so each upload of
	// PutParallelOptimized's pool) go through CargoShip's S3 transporter
	// instead of a plain PutObject call.
	EnableCargoShipOptimization bool
	MultipartThreshold          int64
	MultipartChunkSize          int64
	MultipartConcurrency        int
}

// NewDefaultConfig returns a Config with sensible defaults; callers fill in
// Bucket and Region.
func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:                  3,
		RequestTimeout:              30 * time.Second,
		PoolSize:                    8,
		EnableCargoShipOptimization: true,
		MultipartThreshold:          32 * 1024 * 1024,
		MultipartChunkSize:          16 * 1024 * 1024,
		MultipartConcurrency:        8,
	}
}
