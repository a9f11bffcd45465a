// Package syncengine drives the per-shard New/Modified/Unchanged/Deleted
// state machine: for every file a scanner finds, it consults the change
// detector, moves or uploads object-store content accordingly, and mutates
// the shard's local file-entry map and the shared yesterday-state tombstone
// ledger to match.
package syncengine

import "github.com/driftlock/driftlock/internal/state"

// Transition is the outcome the engine reached for one file in one run.
type Transition string

const (
	TransitionNew       Transition = "new"
	TransitionModified  Transition = "modified"
	TransitionUnchanged Transition = "unchanged"
	TransitionDeleted   Transition = "deleted"
	TransitionErrored   Transition = "errored"
)

// FileResult is the per-file outcome of processing one shard entry.
type FileResult struct {
	RelPath    string
	Transition Transition
	Bytes      int64
	Err        error

	// Entry, when non-nil, replaces shard.Files[RelPath] once the pool
	// round finishes. Delete, when true, removes RelPath from the map
	// instead. Applying these after the pool completes keeps shard.Files
	// free of concurrent writers.
	Entry  *state.FileEntry
	Delete bool
}

// ShardResult summarizes one ProcessShard call.
type ShardResult struct {
	Component string

	New       int
	Modified  int
	Unchanged int
	Deleted   int
	Errored   int

	BytesUploaded int64

	Results []FileResult
}

func tallyResult(result *ShardResult, r FileResult) {
	result.Results = append(result.Results, r)
	switch r.Transition {
	case TransitionNew:
		result.New++
		result.BytesUploaded += r.Bytes
	case TransitionModified:
		result.Modified++
		result.BytesUploaded += r.Bytes
	case TransitionUnchanged:
		result.Unchanged++
	case TransitionDeleted:
		result.Deleted++
	case TransitionErrored:
		result.Errored++
	}
}
