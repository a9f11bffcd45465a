// Package alignment implements the forced-alignment reconciler: a
// mandatory-cache-refresh sweep that finds state shards and live objects
// left behind by triggers no longer present on disk, demotes their
// objects to the deleted_ namespace, archives the stale shard files, and
// records the run in the alignment history.
package alignment

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftlock/driftlock/internal/inspector"
	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/internal/scanner"
	"github.com/driftlock/driftlock/internal/state"
	"github.com/driftlock/driftlock/pkg/errors"
)

// Result is the outcome of one Run, suitable for appending to
// state.DirectoryState.History via AppendAlignment.
type Result struct {
	OrphanedDirs  []string
	ObjectsMoved  int
	ObjectsFailed int
	BytesMoved    int64
	Duration      time.Duration
	Status        string // "ok" | "partial"
}

func (r Result) toRecord(at time.Time) state.AlignmentRecord {
	return state.AlignmentRecord{
		Timestamp:     at,
		OrphanedDirs:  r.OrphanedDirs,
		ObjectsMoved:  r.ObjectsMoved,
		ObjectsFailed: r.ObjectsFailed,
		BytesMoved:    r.BytesMoved,
		Duration:      r.Duration,
		Status:        r.Status,
	}
}

// Reconciler runs the forced-alignment procedure.
type Reconciler struct {
	store      objectstore.ObjectStore
	stateStore *state.Store
	scanner    *scanner.Scanner
	inspector  *inspector.Runner
	logger     *slog.Logger
	maxHistory int
}

// New returns a Reconciler.
func New(store objectstore.ObjectStore, stateStore *state.Store, scn *scanner.Scanner, insp *inspector.Runner, logger *slog.Logger, maxHistory int) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:      store,
		stateStore: stateStore,
		scanner:    scn,
		inspector:  insp,
		logger:     logger.With("component", "alignment"),
		maxHistory: maxHistory,
	}
}

// Run executes the forced-alignment procedure against mountRoot and
// persists its outcome to directory state and the aggregate shard index.
// configPath, when non-empty, has its FORCE_ALIGNMENT_MODE line flipped to
// false on success, per step 7.
func (r *Reconciler) Run(ctx context.Context, mountRoot, configPath string) (*Result, error) {
	start := time.Now()

	if err := r.inspector.RefreshCache(ctx); err != nil {
		return nil, err
	}
	cache, found, err := r.stateStore.LoadObjectCache()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(errors.CodeInspectorMissing, "object cache missing after mandatory inspector refresh")
	}

	triggers, err := r.scanner.DiscoverTriggers(ctx)
	if err != nil {
		return nil, err
	}
	expanded := scanner.ExpandDeep(scanner.FilterHierarchy(triggers), mountRoot, r.logger)

	active := make(map[string]bool, len(expanded))
	for _, e := range expanded {
		active[e.Component] = true
	}

	agg, err := r.stateStore.LoadAggregateState()
	if err != nil {
		return nil, err
	}
	yesterday, err := r.stateStore.LoadYesterdayState()
	if err != nil {
		return nil, err
	}

	result := &Result{Status: "ok"}
	remainingShardKeys := make([]string, 0, len(agg.ShardKeys))
	considered := make(map[string]bool, len(agg.ShardKeys))

	for _, shardKey := range agg.ShardKeys {
		component, err := state.ShardComponent(shardKey)
		if err != nil {
			r.logger.Warn("unparseable shard key in aggregate index, leaving in place", "key", shardKey, "error", err)
			remainingShardKeys = append(remainingShardKeys, shardKey)
			continue
		}
		considered[component] = true
		if active[component] {
			remainingShardKeys = append(remainingShardKeys, shardKey)
			continue
		}

		result.OrphanedDirs = append(result.OrphanedDirs, component)
		r.demoteOrphan(ctx, shardKey, component, cache.Files, yesterday, start, result)

		if err := r.stateStore.ArchiveShard(shardKey, start); err != nil {
			r.logger.Warn("failed to archive orphaned shard state", "shard_key", shardKey, "error", err)
		}
	}

	// The cache is authoritative for what the object store holds (§9): a
	// component can still own live current_state/ objects even when its
	// shard-key entry is gone entirely (state recovery picked an older
	// snapshot, a shard file was removed by hand). Those objects never show
	// up in the loop above and would otherwise survive forced alignment.
	for component := range cacheComponents(cache.Files) {
		if active[component] || considered[component] {
			continue
		}
		result.OrphanedDirs = append(result.OrphanedDirs, component)
		r.demoteOrphan(ctx, "", component, cache.Files, yesterday, start, result)
	}

	agg.ShardKeys = remainingShardKeys
	if err := r.stateStore.SaveAggregateState(agg); err != nil {
		return result, err
	}
	if err := r.stateStore.SaveYesterdayState(yesterday); err != nil {
		return result, err
	}

	dirState, err := r.stateStore.LoadDirectoryState()
	if err != nil {
		return result, err
	}

	if result.ObjectsFailed > 0 {
		result.Status = "partial"
	}
	result.Duration = time.Since(start)

	dirState.AppendAlignment(result.toRecord(start), r.maxHistory)
	if err := r.stateStore.SaveDirectoryState(dirState); err != nil {
		return result, err
	}

	// Best-effort cache refresh; a failure here doesn't undo the alignment
	// that already committed.
	if err := r.inspector.RefreshCache(ctx); err != nil {
		r.logger.Warn("post-alignment cache refresh failed", "error", err)
	}

	if result.Status == "ok" && configPath != "" {
		if err := DisableForceAlignment(configPath, start); err != nil {
			r.logger.Warn("failed to auto-disable FORCE_ALIGNMENT_MODE", "error", err)
		}
	}

	return result, nil
}

// demoteOrphan moves every live object under component's current_state/
// prefix to the deleted_ namespace. shardKey may be empty when the cache
// shows live objects for a component that has no local shard-state entry
// at all; demotion proceeds without size/checksum metadata in that case.
func (r *Reconciler) demoteOrphan(ctx context.Context, shardKey, component string, cacheFiles []string, yesterday *state.YesterdayState, at time.Time, result *Result) {
	var shard *state.Shard
	var found bool
	if shardKey != "" {
		var err error
		shard, found, err = r.stateStore.LoadShard(shardKey)
		if err != nil {
			r.logger.Warn("failed to load orphaned shard state, proceeding without size metadata", "shard_key", shardKey, "error", err)
		}
	}

	for _, objectKey := range orphanedObjectKeys(cacheFiles, component) {
		relPath := objectKey[len(currentPrefix(component)):]

		var entry state.FileEntry
		var sourceDir string
		if found {
			entry = shard.Files[relPath]
			sourceDir = shard.AbsolutePath
		}

		dstKey := deletedKey(component, relPath)
		if err := r.store.Move(ctx, objectKey, dstKey); err != nil {
			r.logger.Warn("failed to demote orphaned object", "key", objectKey, "error", err)
			result.ObjectsFailed++
			continue
		}

		result.ObjectsMoved++
		result.BytesMoved += entry.Size

		tombstoneKey := relPath
		if component != "" {
			tombstoneKey = component + "/" + relPath
		}
		yesterday.PutDeletedFile(tombstoneKey, &state.DeletedFile{
			Component:       component,
			Filename:        relPath,
			SourceDirectory: sourceDir,
			Checksum:        entry.Checksum,
			Size:            entry.Size,
			DeletedAt:       at,
			DeletionReason:  state.ReasonForcedAlignmentOrphan,
		})
	}
}
