package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/driftlock/internal/detector"
	"github.com/driftlock/driftlock/internal/objectstore/storetest"
	"github.com/driftlock/driftlock/internal/scanner"
	"github.com/driftlock/driftlock/internal/state"
)

func newTestEngine(t *testing.T, store *storetest.Store, dryRun bool) (*Engine, *state.Store, *scanner.Scanner) {
	t.Helper()
	stateStore := state.NewStore(t.TempDir())
	scn := scanner.New(t.TempDir(), nil)
	det := detector.New(detector.AlgorithmMD5, detector.ModeFast, nil)
	return New(store, det, scn, stateStore, nil, dryRun, 4), stateStore, scn
}

func shardFor(t *testing.T, dir string) scanner.ExpandedTrigger {
	t.Helper()
	return scanner.ExpandedTrigger{
		Directory: dir,
		Component: "A",
		Kind:      state.MetaShardKindShallow,
	}
}

func TestProcessShardNewFileUploads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hello"), 0o644))

	store := storetest.New()
	engine, stateStore, _ := newTestEngine(t, store, false)
	shard := shardFor(t, dir)

	yesterday := state.NewYesterdayState()
	result, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)

	assert.Equal(t, 1, result.New)
	assert.Equal(t, int64(5), result.BytesUploaded)

	data, ok := store.Contents()[CurrentKey("A", "f.txt")]
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))

	shardState, found, err := stateStore.LoadShard(state.ShardKey("A"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, shardState.Files, "f.txt")
}

func TestProcessShardUnchangedFileSkipsUpload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hello"), 0o644))

	store := storetest.New()
	engine, _, _ := newTestEngine(t, store, false)
	shard := shardFor(t, dir)

	yesterday := state.NewYesterdayState()
	_, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)

	result, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 0, result.New)
}

func TestProcessShardModifiedFileMovesBeforeUpload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	store := storetest.New()
	engine, _, _ := newTestEngine(t, store, false)
	shard := shardFor(t, dir)

	yesterday := state.NewYesterdayState()
	_, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)

	// bump mtime forward and change content
	newContent := []byte("goodbye!!")
	require.NoError(t, os.WriteFile(path, newContent, 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	result, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Modified)

	contents := store.Contents()
	_, stillCurrent := contents[CurrentKey("A", "f.txt")]
	assert.True(t, stillCurrent)
	_, movedToVersions := contents[VersionsKey("A", "f.txt")]
	assert.True(t, movedToVersions)
	assert.Equal(t, newContent, contents[CurrentKey("A", "f.txt")])
}

func TestProcessShardDeletedFileTombstones(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	store := storetest.New()
	engine, _, _ := newTestEngine(t, store, false)
	shard := shardFor(t, dir)

	yesterday := state.NewYesterdayState()
	_, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	result, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	contents := store.Contents()
	_, gone := contents[CurrentKey("A", "f.txt")]
	assert.False(t, gone)
	_, tombstoned := contents[DeletedKey("A", "f.txt")]
	assert.True(t, tombstoned)
	assert.Contains(t, yesterday.DeletedFiles, mountRelativePath("A", "f.txt"))
}

func TestProcessShardDryRunMakesNoStoreChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hello"), 0o644))

	store := storetest.New()
	engine, stateStore, _ := newTestEngine(t, store, true)
	shard := shardFor(t, dir)

	yesterday := state.NewYesterdayState()
	result, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)

	assert.Equal(t, 1, result.New)
	assert.Empty(t, store.Contents())

	_, found, err := stateStore.LoadShard(state.ShardKey("A"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProcessShardDirectoryGoneTombstonesAllFilesAndDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("hello"), 0o644))

	store := storetest.New()
	engine, _, _ := newTestEngine(t, store, false)
	shard := shardFor(t, dir)

	yesterday := state.NewYesterdayState()
	_, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))

	result, err := engine.ProcessShard(context.Background(), shard, nil, yesterday)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Contains(t, yesterday.DeletedDirectories, mountRelativePath("A", ""))
	entry := yesterday.DeletedDirectories[mountRelativePath("A", "")]
	assert.Equal(t, state.ReasonDirectoryDeletion, entry.DeletionReason)
	assert.Equal(t, 1, entry.FileCount)
}
