// Package detector implements the unchanged/needs_processing predicate
// that decides, for one file, whether the sync engine can skip it or must
// recompute a fresh digest and classify the change.
package detector

import (
	"path/filepath"
	"strings"

	"github.com/driftlock/driftlock/internal/state"
)

// IntegrityMode controls how aggressively the detector trusts mtime+size
// metadata before falling back to a full digest comparison.
type IntegrityMode string

const (
	ModeStrict IntegrityMode = "strict"
	ModeHybrid IntegrityMode = "hybrid"
	ModeFast   IntegrityMode = "fast"
)

// Algorithm is the digest algorithm used when a fresh checksum is needed.
type Algorithm string

const (
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmMTime  Algorithm = "mtime"
)

// Decision is the outcome of Detect for one file.
type Decision int

const (
	Unchanged Decision = iota
	NeedsProcessing
)

// Detector applies the configured integrity mode to shard metadata and the
// object-store cache.
type Detector struct {
	Algorithm        Algorithm
	Mode             IntegrityMode
	StrictExtensions map[string]bool
}

// New returns a Detector. strictExtensions entries are matched
// case-insensitively and may be given with or without a leading dot.
func New(algorithm Algorithm, mode IntegrityMode, strictExtensions []string) *Detector {
	set := make(map[string]bool, len(strictExtensions))
	for _, ext := range strictExtensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		set["."+ext] = true
	}
	return &Detector{Algorithm: algorithm, Mode: mode, StrictExtensions: set}
}

// Detect decides whether relPath can be skipped. cache is the loaded
// object-store snapshot, or nil when it's unavailable — in which case
// stale metadata is trusted outright rather than forcing a re-scan.
func (d *Detector) Detect(relPath string, currentSize, currentMTime int64, prior *state.FileEntry, expectedKey string, cache *Cache) Decision {
	if d.Mode == ModeStrict {
		return NeedsProcessing
	}
	if d.Mode == ModeHybrid && d.StrictExtensions[strings.ToLower(filepath.Ext(relPath))] {
		return NeedsProcessing
	}

	if prior == nil {
		return NeedsProcessing
	}
	if prior.Size != currentSize || prior.MTime != currentMTime {
		return NeedsProcessing
	}

	if cache == nil {
		return Unchanged
	}
	if cache.Has(expectedKey) {
		return Unchanged
	}
	// Stored metadata matches but the expected object is absent from the
	// cache: the scope-expansion-bug fix. Trusting the metadata here would
	// silently skip a file that was never actually uploaded.
	return NeedsProcessing
}

// Classification is the outcome of comparing a freshly computed digest
// against the prior stored checksum, for a file Detect marked
// NeedsProcessing.
type Classification string

const (
	ClassificationNew      Classification = "new"
	ClassificationModified Classification = "modified"
	// ClassificationReupload is the re-upload path: the digest is
	// unchanged but the cache showed the object missing, so the sync
	// engine must still upload even though nothing about the file itself
	// changed.
	ClassificationReupload Classification = "reupload"
)

// Classify compares a freshly computed digest to the prior entry. Call
// only after Detect has returned NeedsProcessing.
func Classify(prior *state.FileEntry, freshDigest string) Classification {
	if prior == nil {
		return ClassificationNew
	}
	if prior.Checksum == freshDigest {
		return ClassificationReupload
	}
	return ClassificationModified
}
