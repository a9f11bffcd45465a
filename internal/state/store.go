package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/driftlock/driftlock/pkg/errors"
)

// On-disk layout, relative to Store.root.
const (
	aggregateStatePath   = "high-level/backup-state.json"
	yesterdayStatePath   = "high-level/yesterday-backup-state.json"
	permanentDeletePath  = "high-level/permanent-deletions-history.json"
	directoryStatePath   = "high-level/directory-state.json"
	objectCachePath      = "s3/s3-cache.json"
	objectReportPath     = "s3/s3-report.json"
	recoveryAuditPath    = "recovery-audit.jsonl"
	currentShardDirName  = "current"
	archivedShardDirName = "archived"
)

// Store reads and writes every managed local state file under a single
// root directory, serializing access with a mutex the same way a disk-based
// index guards its mutations against concurrent writers.
type Store struct {
	mu   sync.Mutex
	root string
}

// NewStore returns a Store rooted at dir. The directory is created lazily
// on first write; Load* methods tolerate a directory that doesn't exist
// yet and return empty state.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the state directory this Store is rooted at.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) shardPath(shardKey string) string {
	return filepath.Join(currentShardDirName, shardKey+".state.json")
}

// LoadAggregateState returns the shard index, or an empty one if no
// aggregate state file exists yet.
func (s *Store) LoadAggregateState() (*AggregateState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := NewAggregateState()
	found, err := atomicReadJSON(s.root, aggregateStatePath, agg)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewAggregateState(), nil
	}
	return agg, nil
}

// SaveAggregateState persists the shard index, stamping version and
// last_updated.
func (s *Store) SaveAggregateState(agg *AggregateState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg.StateFileVersion = fileVersion
	agg.LastUpdated = time.Now()
	return atomicWriteJSON(s.root, aggregateStatePath, agg)
}

// LoadShard returns the per-directory state for shardKey. The second
// return value is false when no shard file exists yet.
func (s *Store) LoadShard(shardKey string) (*Shard, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shard := &Shard{}
	found, err := atomicReadJSON(s.root, s.shardPath(shardKey), shard)
	if err != nil {
		return nil, false, err
	}
	return shard, found, nil
}

// SaveShard persists a shard's file metadata under current/<shardKey>.state.json.
func (s *Store) SaveShard(shardKey string, shard *Shard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shard.StateFileVersion = fileVersion
	shard.LastUpdated = time.Now()
	return atomicWriteJSON(s.root, s.shardPath(shardKey), shard)
}

// ArchiveShard moves a shard's current state file into archived/, suffixed
// with a timestamp, as the forced-alignment reconciler does for orphaned
// shards. It is a rename, not a copy-then-delete: both paths are local.
func (s *Store) ArchiveShard(shardKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := filepath.Join(s.root, s.shardPath(shardKey))
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.New(errors.CodeLocalIO, "failed to stat shard state file").WithCause(err)
	}

	archiveDir := filepath.Join(s.root, archivedShardDirName)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to create archive directory").WithCause(err)
	}

	dst := filepath.Join(archiveDir, fmt.Sprintf("%s_%s.state.json", shardKey, at.UTC().Format("20060102T150405Z")))
	if !strings.HasPrefix(filepath.Clean(dst), filepath.Clean(s.root)) {
		return errors.New(errors.CodeLocalIO, "archive destination escapes state root")
	}

	if err := os.Rename(src, dst); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to archive shard state file").WithCause(err)
	}
	return nil
}

// LoadYesterdayState returns the tombstone state, or an empty one.
func (s *Store) LoadYesterdayState() (*YesterdayState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	y := NewYesterdayState()
	found, err := atomicReadJSON(s.root, yesterdayStatePath, y)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewYesterdayState(), nil
	}
	return y, nil
}

// SaveYesterdayState persists the tombstone state.
func (s *Store) SaveYesterdayState(y *YesterdayState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	y.StateFileVersion = fileVersion
	y.LastUpdated = time.Now()
	return atomicWriteJSON(s.root, yesterdayStatePath, y)
}

// LoadPermanentDeletionAudit returns the append-only purge ledger.
func (s *Store) LoadPermanentDeletionAudit() (*PermanentDeletionAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := NewPermanentDeletionAudit()
	found, err := atomicReadJSON(s.root, permanentDeletePath, a)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewPermanentDeletionAudit(), nil
	}
	return a, nil
}

// SavePermanentDeletionAudit persists the purge ledger.
func (s *Store) SavePermanentDeletionAudit(a *PermanentDeletionAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.StateFileVersion = fileVersion
	a.LastUpdated = time.Now()
	return atomicWriteJSON(s.root, permanentDeletePath, a)
}

// LoadDirectoryState returns the alignment-history ledger.
func (s *Store) LoadDirectoryState() (*DirectoryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := NewDirectoryState()
	found, err := atomicReadJSON(s.root, directoryStatePath, d)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewDirectoryState(), nil
	}
	return d, nil
}

// SaveDirectoryState persists the alignment-history ledger.
func (s *Store) SaveDirectoryState(d *DirectoryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.StateFileVersion = fileVersion
	d.LastUpdated = time.Now()
	return atomicWriteJSON(s.root, directoryStatePath, d)
}

// LoadObjectCache returns the inspector's most recent bucket snapshot.
func (s *Store) LoadObjectCache() (*ObjectCache, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &ObjectCache{}
	found, err := atomicReadJSON(s.root, objectCachePath, c)
	if err != nil {
		return nil, false, err
	}
	return c, found, nil
}

// SaveObjectCache persists the inspector's bucket snapshot.
func (s *Store) SaveObjectCache(c *ObjectCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return atomicWriteJSON(s.root, objectCachePath, c)
}

// SaveObjectReport persists the inspector's optional human-readable report
// payload verbatim; the core never parses its content.
func (s *Store) SaveObjectReport(report []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, objectReportPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to create s3 report directory").WithCause(err)
	}
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to write s3 report").WithCause(err)
	}
	return nil
}

// AppendRecoveryAudit appends one JSONL line to the recovery audit log,
// fsyncing the file so the record survives a crash immediately after.
func (s *Store) AppendRecoveryAudit(rec RecoveryAuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, recoveryAuditPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to create state directory").WithCause(err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.New(errors.CodeLocalIO, "failed to open recovery audit log").WithCause(err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to append recovery audit record").WithCause(err)
	}
	return f.Sync()
}

// PreRecoveryBackupPath returns where a local file should be copied before
// state recovery overwrites it, named <original>.pre-recovery-<ts>.
func (s *Store) PreRecoveryBackupPath(relPath string, at time.Time) string {
	return filepath.Join(s.root, relPath+".pre-recovery-"+at.UTC().Format("20060102T150405Z"))
}

// BackupBeforeOverwrite copies the existing file at relPath (if any) to its
// pre-recovery backup path before state recovery overwrites it in place.
func (s *Store) BackupBeforeOverwrite(relPath string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := filepath.Join(s.root, relPath)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.New(errors.CodeLocalIO, "failed to read file for pre-recovery backup").WithCause(err)
	}

	dst := s.PreRecoveryBackupPath(relPath, at)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to write pre-recovery backup").WithCause(err)
	}
	return nil
}

// ManagedFiles enumerates the high-level state files by their on-disk
// relative path, for use by internal/staterecovery's boot-time sweep.
func ManagedFiles() []string {
	return []string{aggregateStatePath, yesterdayStatePath, permanentDeletePath, directoryStatePath}
}
