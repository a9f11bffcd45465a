package syncengine

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/driftlock/driftlock/internal/detector"
	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/internal/scanner"
	"github.com/driftlock/driftlock/internal/state"
	"github.com/driftlock/driftlock/pkg/errors"
)

// Engine drives one shard's New/Modified/Unchanged/Deleted transitions: it
// walks the shard's files, consults a Detector for each, and issues the
// matching Move/Put calls against the object store before persisting the
// shard's updated file map.
type Engine struct {
	store      objectstore.ObjectStore
	detector   *detector.Detector
	scanner    *scanner.Scanner
	stateStore *state.Store
	logger     *slog.Logger
	dryRun     bool
	workers    int
}

// New returns an Engine. workers <= 0 defaults to 10.
func New(store objectstore.ObjectStore, det *detector.Detector, scn *scanner.Scanner, stateStore *state.Store, logger *slog.Logger, dryRun bool, workers int) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 10
	}
	return &Engine{
		store:      store,
		detector:   det,
		scanner:    scn,
		stateStore: stateStore,
		logger:     logger.With("component", "syncengine"),
		dryRun:     dryRun,
		workers:    workers,
	}
}

// ProcessShard runs one shard's full backup cycle: load its persisted file
// map, walk its current files, classify and transfer each, tombstone
// anything missing from the walk into yesterday, and (unless dryRun) save
// the shard's updated state. The caller owns saving yesterday afterward.
func (e *Engine) ProcessShard(ctx context.Context, shard scanner.ExpandedTrigger, cache *detector.Cache, yesterday *state.YesterdayState) (*ShardResult, error) {
	shardKey := state.ShardKey(shard.Component)
	shardState, found, err := e.stateStore.LoadShard(shardKey)
	if err != nil {
		return nil, err
	}
	if !found {
		shardState = state.NewShard(shard.Directory, shard.Component)
	}
	if shardState.Metadata == nil {
		shardState.Metadata = make(state.ShardMetadata)
	}
	shardState.Metadata[state.MetaKeyShardKind] = shard.Kind

	dirGone := false
	if _, statErr := os.Stat(shard.Directory); os.IsNotExist(statErr) {
		dirGone = true
	}
	filesBeforeRun := len(shardState.Files)

	files, err := e.scanner.WalkShardFiles(ctx, shard)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(files))
	tasks := make([]func() FileResult, 0, len(files))
	for _, f := range files {
		f := f
		seen[f.RelativePath] = true
		prior, hadPrior := shardState.Files[f.RelativePath]
		var priorPtr *state.FileEntry
		if hadPrior {
			priorPtr = &prior
		}
		tasks = append(tasks, func() FileResult {
			return e.processFile(ctx, shard, f, priorPtr, cache)
		})
	}

	results := runPool(ctx, e.workers, tasks)

	result := &ShardResult{Component: shard.Component}
	for _, r := range results {
		if r.Entry != nil {
			shardState.Files[r.RelPath] = *r.Entry
		}
		tallyResult(result, r)
	}

	for relPath, entry := range shardState.Files {
		if seen[relPath] {
			continue
		}
		reason := state.ReasonUserDeletion
		if dirGone {
			reason = state.ReasonDirectoryDeletion
		}
		r := e.processDeletion(ctx, shard, relPath, entry, yesterday, reason)
		if r.Delete {
			delete(shardState.Files, relPath)
		}
		tallyResult(result, r)
	}

	if dirGone && filesBeforeRun > 0 {
		yesterday.PutDeletedDirectory(mountRelativePath(shard.Component, ""), &state.DeletedDirectory{
			SourceDirectory: shard.Directory,
			DeletedAt:       time.Now(),
			DeletionReason:  state.ReasonDirectoryDeletion,
			FileCount:       filesBeforeRun,
		})
	}

	shardState.LastScanned = time.Now()
	if !e.dryRun {
		if err := e.stateStore.SaveShard(shardKey, shardState); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (e *Engine) processFile(ctx context.Context, shard scanner.ExpandedTrigger, f scanner.FileRef, prior *state.FileEntry, cache *detector.Cache) FileResult {
	size := f.Info.Size()
	mtime := f.Info.ModTime().Unix()
	currentKey := CurrentKey(shard.Component, f.RelativePath)

	decision := e.detector.Detect(f.RelativePath, size, mtime, prior, currentKey, cache)
	if decision == detector.Unchanged {
		return FileResult{RelPath: f.RelativePath, Transition: TransitionUnchanged}
	}

	digest, err := detector.Digest(f.AbsolutePath, e.detector.Algorithm, size, mtime)
	if err != nil {
		return FileResult{RelPath: f.RelativePath, Transition: TransitionErrored, Err: err}
	}

	classification := detector.Classify(prior, digest)
	transition := TransitionNew
	if classification == detector.ClassificationModified {
		transition = TransitionModified
	}
	entry := state.FileEntry{Checksum: digest, Size: size, MTime: mtime}

	if e.dryRun {
		return FileResult{RelPath: f.RelativePath, Transition: transition, Bytes: size, Entry: &entry}
	}

	if classification == detector.ClassificationModified {
		versionsKey := VersionsKey(shard.Component, f.RelativePath)
		if err := e.store.Move(ctx, currentKey, versionsKey); err != nil {
			e.logger.Warn("failed to move current object to versions, skipping upload",
				"path", f.RelativePath, "error", err)
			return FileResult{RelPath: f.RelativePath, Transition: TransitionErrored, Err: err}
		}
	}

	info, err := e.putFile(ctx, currentKey, f.AbsolutePath, size)
	if err != nil {
		return FileResult{RelPath: f.RelativePath, Transition: TransitionErrored, Err: err}
	}
	if info.Size != size {
		return FileResult{
			RelPath:    f.RelativePath,
			Transition: TransitionErrored,
			Err:        errors.New(errors.CodeVerificationFailed, "uploaded size mismatch for "+f.RelativePath),
		}
	}

	return FileResult{RelPath: f.RelativePath, Transition: transition, Bytes: size, Entry: &entry}
}

func (e *Engine) putFile(ctx context.Context, key, absPath string, size int64) (objectstore.Info, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return objectstore.Info{}, errors.New(errors.CodeLocalIO, "failed to open file for upload: "+absPath).WithCause(err)
	}
	defer func() { _ = f.Close() }()
	return e.store.Put(ctx, key, f, size)
}

func (e *Engine) processDeletion(ctx context.Context, shard scanner.ExpandedTrigger, relPath string, entry state.FileEntry, yesterday *state.YesterdayState, reason string) FileResult {
	if e.dryRun {
		return FileResult{RelPath: relPath, Transition: TransitionDeleted, Bytes: entry.Size, Delete: true}
	}

	currentKey := CurrentKey(shard.Component, relPath)
	deletedKey := DeletedKey(shard.Component, relPath)
	if err := e.store.Move(ctx, currentKey, deletedKey); err != nil {
		return FileResult{RelPath: relPath, Transition: TransitionErrored, Err: err}
	}

	yesterday.PutDeletedFile(mountRelativePath(shard.Component, relPath), &state.DeletedFile{
		Component:       shard.Component,
		Filename:        relPath,
		SourceDirectory: shard.Directory,
		Checksum:        entry.Checksum,
		Size:            entry.Size,
		DeletedAt:       time.Now(),
		DeletionReason:  reason,
	})

	return FileResult{RelPath: relPath, Transition: TransitionDeleted, Bytes: entry.Size, Delete: true}
}
