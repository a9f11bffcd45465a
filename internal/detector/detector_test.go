package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftlock/driftlock/internal/state"
)

func TestDetectStrictModeAlwaysNeedsProcessing(t *testing.T) {
	d := New(AlgorithmMD5, ModeStrict, nil)
	prior := &state.FileEntry{Size: 10, MTime: 100, Checksum: "abc"}
	decision := d.Detect("f.txt", 10, 100, prior, "current_state/A/f.txt", nil)
	assert.Equal(t, NeedsProcessing, decision)
}

func TestDetectHybridModeForcesStrictExtensions(t *testing.T) {
	d := New(AlgorithmMD5, ModeHybrid, []string{".docx"})
	prior := &state.FileEntry{Size: 10, MTime: 100, Checksum: "abc"}

	assert.Equal(t, NeedsProcessing, d.Detect("f.docx", 10, 100, prior, "k", nil))
	assert.Equal(t, Unchanged, d.Detect("f.txt", 10, 100, prior, "k", nil))
}

func TestDetectNoPriorEntryNeedsProcessing(t *testing.T) {
	d := New(AlgorithmMD5, ModeFast, nil)
	assert.Equal(t, NeedsProcessing, d.Detect("f.txt", 10, 100, nil, "k", nil))
}

func TestDetectMetadataMismatchNeedsProcessing(t *testing.T) {
	d := New(AlgorithmMD5, ModeFast, nil)
	prior := &state.FileEntry{Size: 10, MTime: 100, Checksum: "abc"}
	assert.Equal(t, NeedsProcessing, d.Detect("f.txt", 11, 100, prior, "k", nil))
	assert.Equal(t, NeedsProcessing, d.Detect("f.txt", 10, 101, prior, "k", nil))
}

func TestDetectNoCacheTrustsMetadata(t *testing.T) {
	d := New(AlgorithmMD5, ModeFast, nil)
	prior := &state.FileEntry{Size: 10, MTime: 100, Checksum: "abc"}
	assert.Equal(t, Unchanged, d.Detect("f.txt", 10, 100, prior, "k", nil))
}

func TestDetectCacheHitIsUnchanged(t *testing.T) {
	d := New(AlgorithmMD5, ModeFast, nil)
	prior := &state.FileEntry{Size: 10, MTime: 100, Checksum: "abc"}
	cache := NewCache(&state.ObjectCache{Files: []string{"current_state/A/f.txt"}})
	assert.Equal(t, Unchanged, d.Detect("f.txt", 10, 100, prior, "current_state/A/f.txt", cache))
}

func TestDetectScopeExpansionFix(t *testing.T) {
	d := New(AlgorithmMD5, ModeFast, nil)
	prior := &state.FileEntry{Size: 10, MTime: 100, Checksum: "abc"}
	cache := NewCache(&state.ObjectCache{Files: []string{"current_state/A/other.txt"}})

	decision := d.Detect("f.txt", 10, 100, prior, "current_state/A/f.txt", cache)
	assert.Equal(t, NeedsProcessing, decision)
}

func TestClassifyNewModifiedReupload(t *testing.T) {
	assert.Equal(t, ClassificationNew, Classify(nil, "digest"))
	assert.Equal(t, ClassificationModified, Classify(&state.FileEntry{Checksum: "old"}, "new"))
	assert.Equal(t, ClassificationReupload, Classify(&state.FileEntry{Checksum: "same"}, "same"))
}
