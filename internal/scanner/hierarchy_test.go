package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftlock/driftlock/internal/state"
)

func TestFilterHierarchyRemovesShallowUnderDeepAncestor(t *testing.T) {
	root := "/mnt"
	triggers := []Trigger{
		{Directory: filepath.Join(root, "A"), Mode: ModeDeep},
		{Directory: filepath.Join(root, "A", "child"), Mode: ModeShallow},
		{Directory: filepath.Join(root, "B"), Mode: ModeShallow},
	}

	filtered := FilterHierarchy(triggers)

	var dirs []string
	for _, t := range filtered {
		dirs = append(dirs, t.Directory)
	}
	assert.ElementsMatch(t, []string{filepath.Join(root, "A"), filepath.Join(root, "B")}, dirs)
}

func TestFilterHierarchyKeepsUnrelatedShallow(t *testing.T) {
	triggers := []Trigger{
		{Directory: "/mnt/A", Mode: ModeDeep},
		{Directory: "/mnt/AB", Mode: ModeShallow},
	}
	filtered := FilterHierarchy(triggers)
	assert.Len(t, filtered, 2)
}

func TestExpandDeepProducesRootAndSubdirShards(t *testing.T) {
	root := t.TempDir()
	deepDir := filepath.Join(root, "A")
	writeFile(t, filepath.Join(deepDir, "sub1", "f.txt"), "x")
	writeFile(t, filepath.Join(deepDir, "sub2", "f.txt"), "x")
	writeFile(t, filepath.Join(deepDir, "f.txt"), "x")

	expanded := ExpandDeep([]Trigger{{Directory: deepDir, Mode: ModeDeep}}, root, nil)

	var kinds = map[string]string{}
	for _, e := range expanded {
		kinds[e.Directory] = e.Kind
	}
	assert.Equal(t, state.MetaShardKindDeepRoot, kinds[deepDir])
	assert.Equal(t, state.MetaShardKindDeepSubdir, kinds[filepath.Join(deepDir, "sub1")])
	assert.Equal(t, state.MetaShardKindDeepSubdir, kinds[filepath.Join(deepDir, "sub2")])
	assert.Len(t, expanded, 3)
}

func TestExpandDeepShallowPassesThrough(t *testing.T) {
	root := t.TempDir()
	shallowDir := filepath.Join(root, "A")
	writeFile(t, filepath.Join(shallowDir, "f.txt"), "x")

	expanded := ExpandDeep([]Trigger{{Directory: shallowDir, Mode: ModeShallow}}, root, nil)
	assert.Len(t, expanded, 1)
	assert.Equal(t, state.MetaShardKindShallow, expanded[0].Kind)
}

func TestS3ComponentRootIsEmpty(t *testing.T) {
	assert.Equal(t, "", S3Component("/mnt", "/mnt"))
	assert.Equal(t, "A", S3Component("/mnt", "/mnt/A"))
	assert.Equal(t, "A/B", S3Component("/mnt", "/mnt/A/B"))
}
