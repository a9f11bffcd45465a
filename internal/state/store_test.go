package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAggregateStateMissingReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir())

	agg, err := s.LoadAggregateState()
	require.NoError(t, err)
	assert.Equal(t, fileVersion, agg.StateFileVersion)
	assert.Empty(t, agg.ShardKeys)
}

func TestSaveAndLoadAggregateState(t *testing.T) {
	s := NewStore(t.TempDir())

	agg := NewAggregateState()
	agg.ShardKeys = []string{ShardKey(""), ShardKey("A")}
	agg.ScanStats = ScanStats{ShardsScanned: 2, FilesScanned: 5, BytesScanned: 1024}
	require.NoError(t, s.SaveAggregateState(agg))

	loaded, err := s.LoadAggregateState()
	require.NoError(t, err)
	assert.ElementsMatch(t, agg.ShardKeys, loaded.ShardKeys)
	assert.Equal(t, agg.ScanStats, loaded.ScanStats)
	assert.False(t, loaded.LastUpdated.IsZero())
}

func TestSaveAndLoadShard(t *testing.T) {
	s := NewStore(t.TempDir())
	key := ShardKey("A")

	shard := NewShard("/mnt/A", "A")
	shard.Files["f1"] = FileEntry{Checksum: "abc", Size: 10, MTime: 1000}
	shard.Metadata[MetaKeyShardKind] = MetaShardKindShallow
	require.NoError(t, s.SaveShard(key, shard))

	loaded, found, err := s.LoadShard(key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "/mnt/A", loaded.AbsolutePath)
	assert.Equal(t, FileEntry{Checksum: "abc", Size: 10, MTime: 1000}, loaded.Files["f1"])
	assert.Equal(t, MetaShardKindShallow, loaded.Metadata[MetaKeyShardKind])
}

func TestLoadShardMissingReturnsNotFound(t *testing.T) {
	s := NewStore(t.TempDir())

	_, found, err := s.LoadShard(ShardKey("missing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestArchiveShardMovesFile(t *testing.T) {
	s := NewStore(t.TempDir())
	key := ShardKey("A")
	require.NoError(t, s.SaveShard(key, NewShard("/mnt/A", "A")))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.ArchiveShard(key, at))

	_, found, err := s.LoadShard(key)
	require.NoError(t, err)
	assert.False(t, found)

	archived, err := os.ReadDir(filepath.Join(s.Root(), archivedShardDirName))
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Contains(t, archived[0].Name(), key)
	assert.Contains(t, archived[0].Name(), "20260102T030405Z")
}

func TestArchiveShardMissingIsNoop(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.NoError(t, s.ArchiveShard(ShardKey("never-existed"), time.Now()))
}

func TestYesterdayStateSaveLoadAndCounters(t *testing.T) {
	s := NewStore(t.TempDir())

	y := NewYesterdayState()
	y.PutDeletedFile("A/f2", &DeletedFile{
		Filename:        "f2",
		SourceDirectory: "A",
		Checksum:        "xyz",
		Size:            42,
		DeletedAt:       time.Now(),
		DeletionReason:  ReasonUserDeletion,
	})
	assert.Equal(t, 1, y.Summary.DeletedFileCount)
	require.NoError(t, s.SaveYesterdayState(y))

	loaded, err := s.LoadYesterdayState()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Summary.DeletedFileCount)
	assert.Equal(t, "xyz", loaded.DeletedFiles["A/f2"].Checksum)

	loaded.RemoveDeletedFile("A/f2")
	assert.Equal(t, 0, loaded.Summary.DeletedFileCount)
	assert.Empty(t, loaded.DeletedFiles)
}

func TestPermanentDeletionAuditAppend(t *testing.T) {
	s := NewStore(t.TempDir())

	audit := NewPermanentDeletionAudit()
	audit.Append("A/f2", &PermanentDeletionRecord{
		SourceDirectory:      "A",
		Checksum:             "xyz",
		Size:                 42,
		RetentionPeriod:      "07:00:00",
		OriginalDeletedAt:    time.Now().Add(-8 * 24 * time.Hour),
		PermanentlyDeletedAt: time.Now(),
	})
	require.NoError(t, s.SavePermanentDeletionAudit(audit))

	loaded, err := s.LoadPermanentDeletionAudit()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Totals.TotalFiles)
	assert.EqualValues(t, 42, loaded.Totals.TotalBytes)
	assert.Contains(t, loaded.Records, "A/f2")
}

func TestDirectoryStateAppendAlignmentBoundsHistory(t *testing.T) {
	s := NewStore(t.TempDir())

	d := NewDirectoryState()
	for i := 0; i < 5; i++ {
		d.AppendAlignment(AlignmentRecord{
			Timestamp:    time.Now(),
			ObjectsMoved: i,
			BytesMoved:   int64(i * 100),
			Status:       "completed",
		}, 3)
	}
	assert.Len(t, d.History, 3)
	assert.Equal(t, 5, d.Summary.TotalAlignments)
	assert.Equal(t, 0+1+2+3+4, d.Summary.TotalObjectsMoved)

	require.NoError(t, s.SaveDirectoryState(d))
	loaded, err := s.LoadDirectoryState()
	require.NoError(t, err)
	assert.Len(t, loaded.History, 3)
}

func TestObjectCacheSaveLoad(t *testing.T) {
	s := NewStore(t.TempDir())

	c := &ObjectCache{Files: []string{"current_state/A/f1"}, GeneratedAt: time.Now()}
	require.NoError(t, s.SaveObjectCache(c))

	loaded, found, err := s.LoadObjectCache()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, c.Files, loaded.Files)
}

func TestLoadObjectCacheMissing(t *testing.T) {
	s := NewStore(t.TempDir())

	_, found, err := s.LoadObjectCache()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAppendRecoveryAuditWritesJSONL(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.AppendRecoveryAudit(RecoveryAuditRecord{
		Timestamp: time.Now(), FileType: "yesterday_state", Decision: "use_remote", Reason: "local invalid",
	}))
	require.NoError(t, s.AppendRecoveryAudit(RecoveryAuditRecord{
		Timestamp: time.Now(), FileType: "directory_state", Decision: "keep_local", Reason: "remote invalid",
	}))

	data, err := os.ReadFile(filepath.Join(s.Root(), recoveryAuditPath))
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 2, lines)
}

func TestBackupBeforeOverwriteCopiesExistingFile(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.SaveYesterdayState(NewYesterdayState()))

	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, s.BackupBeforeOverwrite(yesterdayStatePath, at))

	backup := s.PreRecoveryBackupPath(yesterdayStatePath, at)
	_, err := os.Stat(backup)
	require.NoError(t, err)
}

func TestBackupBeforeOverwriteMissingSourceIsNoop(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.NoError(t, s.BackupBeforeOverwrite("high-level/does-not-exist.json", time.Now()))
}

func TestValidateFreshnessRejectsFarFuture(t *testing.T) {
	assert.NoError(t, ValidateFreshness(time.Now()))
	assert.Error(t, ValidateFreshness(time.Now().Add(2*time.Hour)))
}

func TestManagedFilesListsHighLevelFiles(t *testing.T) {
	files := ManagedFiles()
	assert.Len(t, files, 4)
	assert.Contains(t, files, aggregateStatePath)
	assert.Contains(t, files, yesterdayStatePath)
}
