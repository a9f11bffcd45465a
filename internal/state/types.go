// Package state defines the JSON-backed local state files the sync engine
// reads and mutates every run: the aggregate shard index, per-shard file
// metadata, yesterday's tombstones, the permanent-deletion audit, the
// alignment-history directory state, and the object-store cache snapshot.
// Every one of these except the object-store cache carries a
// state_file_version and a last_updated timestamp, and all of them are
// written through atomicWriteJSON's temp-file-then-rename path. The
// recovery audit log is appended to line by line instead.
package state

import "time"

const fileVersion = 1

// Reasons recorded against a DeletedFile entry.
const (
	ReasonUserDeletion          = "user_deletion"
	ReasonDirectoryDeletion     = "directory_deletion"
	ReasonForcedAlignmentOrphan = "forced_alignment_orphan_cleanup"
)

// FileEntry is the metadata tracked for one live or tombstoned file.
type FileEntry struct {
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
	MTime    int64  `json:"mtime"`
}

// ShardMetadata carries free-form per-shard tags, notably the
// deep-root/deep-subdir classification a deep trigger expands into.
type ShardMetadata map[string]string

const (
	MetaShardKindDeepRoot   = "deep-root"
	MetaShardKindDeepSubdir = "deep-subdir"
	MetaShardKindShallow    = "shallow"
	MetaKeyShardKind        = "shard_kind"
)

// Shard is the per-directory state file persisted at
// current/<shard-key>.state.json.
type Shard struct {
	StateFileVersion int                  `json:"state_file_version"`
	LastUpdated      time.Time            `json:"last_updated"`
	AbsolutePath     string               `json:"absolute_path"`
	RelativePath     string               `json:"relative_path"`
	LastScanned      time.Time            `json:"last_scanned"`
	Files            map[string]FileEntry `json:"files"`
	Metadata         ShardMetadata        `json:"metadata,omitempty"`
}

// NewShard returns an empty Shard ready to be populated by a scan.
func NewShard(absolutePath, relativePath string) *Shard {
	return &Shard{
		StateFileVersion: fileVersion,
		AbsolutePath:     absolutePath,
		RelativePath:     relativePath,
		Files:            make(map[string]FileEntry),
		Metadata:         make(ShardMetadata),
	}
}

// ScanStats summarizes the most recent filesystem walk across all shards.
type ScanStats struct {
	ShardsScanned int   `json:"shards_scanned"`
	FilesScanned  int   `json:"files_scanned"`
	BytesScanned  int64 `json:"bytes_scanned"`
}

// AggregateState is the high-level index of which shards exist; the file
// content for each shard lives in its own Shard file under current/.
type AggregateState struct {
	StateFileVersion int       `json:"state_file_version"`
	LastUpdated      time.Time `json:"last_updated"`
	ShardKeys        []string  `json:"shard_keys"`
	ScanStats        ScanStats `json:"scan_stats"`
}

// NewAggregateState returns an empty AggregateState.
func NewAggregateState() *AggregateState {
	return &AggregateState{StateFileVersion: fileVersion, ShardKeys: []string{}}
}

// DeletedFile is one entry in YesterdayState.DeletedFiles. Component and
// Filename together rebuild the deleted_<component>/<filename> object key;
// the map key itself (component joined with filename) is not reversible on
// its own since either half may contain slashes.
type DeletedFile struct {
	Component       string    `json:"component"`
	Filename        string    `json:"filename"`
	SourceDirectory string    `json:"source_directory"`
	Checksum        string    `json:"checksum"`
	Size            int64     `json:"size"`
	DeletedAt       time.Time `json:"deleted_at"`
	DeletionReason  string    `json:"deletion_reason"`
}

// DeletedDirectory records a whole directory that disappeared between scans.
type DeletedDirectory struct {
	SourceDirectory string    `json:"source_directory"`
	DeletedAt       time.Time `json:"deleted_at"`
	DeletionReason  string    `json:"deletion_reason"`
	FileCount       int       `json:"file_count"`
}

// YesterdaySummary tracks running counts for quick inspection without
// iterating the full maps.
type YesterdaySummary struct {
	DeletedFileCount      int `json:"deleted_file_count"`
	DeletedDirectoryCount int `json:"deleted_directory_count"`
}

// YesterdayState holds tombstones: files and directories removed from
// scope but still retained under the deleted_ object-store prefix pending
// retention expiry. Keyed by mount-relative path, the shard's component
// joined with the file's shard-relative path (see DESIGN.md's Open
// Question decision on relative-path-keyed deletion tracking).
type YesterdayState struct {
	StateFileVersion   int                          `json:"state_file_version"`
	LastUpdated        time.Time                    `json:"last_updated"`
	DeletedFiles       map[string]*DeletedFile      `json:"deleted_files"`
	DeletedDirectories map[string]*DeletedDirectory `json:"deleted_directories"`
	Summary            YesterdaySummary             `json:"summary"`
}

// NewYesterdayState returns an empty YesterdayState.
func NewYesterdayState() *YesterdayState {
	return &YesterdayState{
		StateFileVersion:   fileVersion,
		DeletedFiles:       make(map[string]*DeletedFile),
		DeletedDirectories: make(map[string]*DeletedDirectory),
	}
}

// PutDeletedFile adds or replaces a tombstone and refreshes the summary.
func (y *YesterdayState) PutDeletedFile(relPath string, entry *DeletedFile) {
	if _, exists := y.DeletedFiles[relPath]; !exists {
		y.Summary.DeletedFileCount++
	}
	y.DeletedFiles[relPath] = entry
}

// RemoveDeletedFile drops a tombstone, typically once retention expires.
func (y *YesterdayState) RemoveDeletedFile(relPath string) {
	if _, exists := y.DeletedFiles[relPath]; exists {
		delete(y.DeletedFiles, relPath)
		if y.Summary.DeletedFileCount > 0 {
			y.Summary.DeletedFileCount--
		}
	}
}

// PutDeletedDirectory adds or replaces a directory-level tombstone.
func (y *YesterdayState) PutDeletedDirectory(relPath string, entry *DeletedDirectory) {
	if _, exists := y.DeletedDirectories[relPath]; !exists {
		y.Summary.DeletedDirectoryCount++
	}
	y.DeletedDirectories[relPath] = entry
}

// PermanentDeletionRecord is one append-only audit entry for a tombstone
// that has exceeded its retention period and been purged from the store.
type PermanentDeletionRecord struct {
	SourceDirectory      string    `json:"source_directory"`
	Checksum             string    `json:"checksum"`
	Size                 int64     `json:"size"`
	RetentionPeriod      string    `json:"retention_period"`
	OriginalDeletedAt    time.Time `json:"original_deleted_at"`
	PermanentlyDeletedAt time.Time `json:"permanently_deleted_at"`
}

// PermanentDeletionTotals tracks cumulative counts across the audit's life.
type PermanentDeletionTotals struct {
	TotalFiles int   `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
}

// PermanentDeletionAudit is the append-only record of every tombstone ever
// purged after its retention period elapsed.
type PermanentDeletionAudit struct {
	StateFileVersion int                                 `json:"state_file_version"`
	LastUpdated      time.Time                            `json:"last_updated"`
	Records          map[string]*PermanentDeletionRecord `json:"records"`
	Totals           PermanentDeletionTotals              `json:"totals"`
}

// NewPermanentDeletionAudit returns an empty audit.
func NewPermanentDeletionAudit() *PermanentDeletionAudit {
	return &PermanentDeletionAudit{
		StateFileVersion: fileVersion,
		Records:          make(map[string]*PermanentDeletionRecord),
	}
}

// Append records a purge and updates the running totals. It is an error to
// append the same path twice; callers should not call Append for a path
// already present in Records.
func (a *PermanentDeletionAudit) Append(relPath string, rec *PermanentDeletionRecord) {
	a.Records[relPath] = rec
	a.Totals.TotalFiles++
	a.Totals.TotalBytes += rec.Size
}

// AlignmentRecord is one entry in DirectoryState.History, appended after
// every forced-alignment run.
type AlignmentRecord struct {
	Timestamp     time.Time     `json:"timestamp"`
	OrphanedDirs  []string      `json:"orphaned_dirs"`
	ObjectsMoved  int           `json:"objects_moved"`
	ObjectsFailed int           `json:"objects_failed"`
	BytesMoved    int64         `json:"bytes_moved"`
	Duration      time.Duration `json:"duration_ns"`
	Status        string        `json:"status"`
}

// DirectoryStateSummary tracks lifetime alignment totals.
type DirectoryStateSummary struct {
	TotalAlignments   int   `json:"total_alignments"`
	TotalObjectsMoved int   `json:"total_objects_moved"`
	TotalBytesMoved   int64 `json:"total_bytes_moved"`
}

// DirectoryState is the forced-alignment reconciler's history ledger.
type DirectoryState struct {
	StateFileVersion int                    `json:"state_file_version"`
	LastUpdated      time.Time              `json:"last_updated"`
	History          []AlignmentRecord      `json:"history"`
	Summary          DirectoryStateSummary  `json:"summary"`
}

// NewDirectoryState returns an empty DirectoryState.
func NewDirectoryState() *DirectoryState {
	return &DirectoryState{StateFileVersion: fileVersion, History: []AlignmentRecord{}}
}

// AppendAlignment records rec, trimming History to the most recent
// maxHistory entries when maxHistory > 0.
func (d *DirectoryState) AppendAlignment(rec AlignmentRecord, maxHistory int) {
	d.History = append(d.History, rec)
	if maxHistory > 0 && len(d.History) > maxHistory {
		d.History = d.History[len(d.History)-maxHistory:]
	}
	d.Summary.TotalAlignments++
	d.Summary.TotalObjectsMoved += rec.ObjectsMoved
	d.Summary.TotalBytesMoved += rec.BytesMoved
}

// ObjectCache is the inspector subprocess's snapshot of every key under
// the bucket prefix, the source of truth the change detector and the
// forced-alignment reconciler both consult instead of listing S3 live.
type ObjectCache struct {
	Files       []string  `json:"files"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RecoveryAuditRecord is one JSONL line appended during boot-time state
// recovery, recording the local-vs-remote decision for one managed file.
type RecoveryAuditRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	FileType         string    `json:"file_type"`
	Decision         string    `json:"decision"`
	Reason           string    `json:"reason"`
	LocalAgeSeconds  float64   `json:"local_age_s"`
	RemoteAgeSeconds float64   `json:"s3_age_s"`
}
