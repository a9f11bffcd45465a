// The orchestrator ties every package together into the control flow a
// single invocation follows: optional boot-time state recovery, then
// either a forced-alignment pass or a normal backup pass (never both),
// then retention garbage collection, then a state snapshot upload, and
// finally an optional inspector report.
package main

import (
	"context"
	"time"

	"github.com/driftlock/driftlock/internal/alignment"
	"github.com/driftlock/driftlock/internal/config"
	"github.com/driftlock/driftlock/internal/detector"
	"github.com/driftlock/driftlock/internal/inspector"
	"github.com/driftlock/driftlock/internal/metrics"
	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/internal/retention"
	"github.com/driftlock/driftlock/internal/scanner"
	"github.com/driftlock/driftlock/internal/staterecovery"
	"github.com/driftlock/driftlock/internal/state"
	"github.com/driftlock/driftlock/internal/syncengine"

	"log/slog"
)

// Summary is the end-of-run report: printed as text or JSON and used to
// pick up whether the process should exit non-zero for file-level or
// alignment failures even though the run itself completed.
type Summary struct {
	New       int64 `json:"new"`
	Modified  int64 `json:"modified"`
	Unchanged int64 `json:"unchanged"`
	Deleted   int64 `json:"deleted"`
	Errored   int64 `json:"errored"`

	BytesUploaded    int64 `json:"bytes_uploaded"`
	TombstonesReaped int64 `json:"tombstones_reaped"`

	Aligned          bool     `json:"aligned,omitempty"`
	AlignmentOrphans []string `json:"alignment_orphaned_dirs,omitempty"`
	AlignmentFailed  int      `json:"alignment_objects_failed,omitempty"`

	Duration time.Duration `json:"duration"`
}

// HasFailures reports whether anything in the run warrants a non-zero
// exit status despite the run itself completing.
func (s *Summary) HasFailures() bool {
	return s.Errored > 0 || s.AlignmentFailed > 0
}

// deps bundles every collaborator the orchestrator drives, built once in
// main and passed down so runBackup stays exercisable against a fake
// object store in tests.
type deps struct {
	store      objectstore.ObjectStore
	stateStore *state.Store
	scanner    *scanner.Scanner
	inspector  *inspector.Runner
	collector  *metrics.Collector
	logger     *slog.Logger

	configPath     string
	forceAlignment bool
	skipRecovery   bool
}

// run executes one full invocation and returns the printable summary.
func run(ctx context.Context, cfg *config.Config, d deps, now time.Time) (*Summary, error) {
	if d.logger == nil {
		d.logger = slog.Default()
	}
	start := now

	if !d.skipRecovery {
		recoverer := staterecovery.New(d.store, d.stateStore, d.logger)
		if err := recoverer.Recover(ctx, now); err != nil {
			return nil, err
		}
	}

	summary := &Summary{}

	if cfg.ForceAlignmentMode || d.forceAlignment {
		result, err := runAlignment(ctx, cfg, d)
		if err != nil {
			return nil, err
		}
		summary.Aligned = true
		summary.AlignmentOrphans = result.OrphanedDirs
		summary.AlignmentFailed = result.ObjectsFailed
		summary.BytesUploaded += result.BytesMoved
	} else {
		if err := runBackup(ctx, cfg, d, summary); err != nil {
			return nil, err
		}
	}

	if err := runRetention(ctx, cfg, d, now, summary); err != nil {
		return nil, err
	}

	if !cfg.DryRun {
		recoverer := staterecovery.New(d.store, d.stateStore, d.logger)
		if err := recoverer.UploadSnapshots(ctx); err != nil {
			d.logger.Warn("state snapshot upload failed", "error", err)
		}
	}

	if cfg.DetailedS3Report {
		if err := d.inspector.GenerateReport(ctx); err != nil {
			d.logger.Warn("inspector report generation failed", "error", err)
		}
	}

	summary.Duration = time.Since(start)
	if d.collector != nil {
		d.collector.RecordRunDuration(summary.Duration)
	}
	return summary, nil
}

func runAlignment(ctx context.Context, cfg *config.Config, d deps) (*alignment.Result, error) {
	reconciler := alignment.New(d.store, d.stateStore, d.scanner, d.inspector, d.logger, cfg.AlignmentHistoryRetention)
	return reconciler.Run(ctx, d.scanner.MountRoot(), d.configPath)
}

func runBackup(ctx context.Context, cfg *config.Config, d deps, summary *Summary) error {
	if err := maybeRefreshCache(ctx, cfg, d); err != nil {
		return err
	}

	var cache *detector.Cache
	oc, found, err := d.stateStore.LoadObjectCache()
	if err != nil {
		return err
	}
	if found {
		cache = detector.NewCache(oc)
	}

	triggers, err := d.scanner.DiscoverTriggers(ctx)
	if err != nil {
		return err
	}
	shards := scanner.ExpandDeep(scanner.FilterHierarchy(triggers), d.scanner.MountRoot(), d.logger)

	det := detector.New(detector.Algorithm(cfg.ChecksumAlgorithm), detector.IntegrityMode(cfg.IntegrityMode), cfg.StrictExtensions)
	engine := syncengine.New(d.store, det, d.scanner, d.stateStore, d.logger, cfg.DryRun, 10)

	agg, err := d.stateStore.LoadAggregateState()
	if err != nil {
		return err
	}
	yesterday, err := d.stateStore.LoadYesterdayState()
	if err != nil {
		return err
	}

	shardKeys := make(map[string]bool, len(agg.ShardKeys))
	for _, k := range agg.ShardKeys {
		shardKeys[k] = true
	}

	scanStats := state.ScanStats{}
	for _, shard := range shards {
		result, err := engine.ProcessShard(ctx, shard, cache, yesterday)
		if err != nil {
			return err
		}

		shardKeys[state.ShardKey(shard.Component)] = true
		scanStats.ShardsScanned++
		scanStats.FilesScanned += result.New + result.Modified + result.Unchanged
		scanStats.BytesScanned += result.BytesUploaded

		summary.New += int64(result.New)
		summary.Modified += int64(result.Modified)
		summary.Unchanged += int64(result.Unchanged)
		summary.Deleted += int64(result.Deleted)
		summary.Errored += int64(result.Errored)
		summary.BytesUploaded += result.BytesUploaded

		if d.collector != nil {
			recordTransitions(d.collector, result)
		}
	}

	if !cfg.DryRun {
		agg.ShardKeys = make([]string, 0, len(shardKeys))
		for k := range shardKeys {
			agg.ShardKeys = append(agg.ShardKeys, k)
		}
		agg.ScanStats = scanStats
		agg.LastUpdated = time.Now()
		if err := d.stateStore.SaveAggregateState(agg); err != nil {
			return err
		}
		if err := d.stateStore.SaveYesterdayState(yesterday); err != nil {
			return err
		}
	}

	return nil
}

func recordTransitions(c *metrics.Collector, result *syncengine.ShardResult) {
	for i := 0; i < result.New; i++ {
		c.RecordTransition(metrics.TransitionNew)
	}
	for i := 0; i < result.Modified; i++ {
		c.RecordTransition(metrics.TransitionModified)
	}
	for i := 0; i < result.Unchanged; i++ {
		c.RecordTransition(metrics.TransitionUnchanged)
	}
	for i := 0; i < result.Deleted; i++ {
		c.RecordTransition(metrics.TransitionDeleted)
	}
	for i := 0; i < result.Errored; i++ {
		c.RecordTransition(metrics.TransitionErrored)
	}
	c.RecordBytesUploaded(result.BytesUploaded)
}

// maybeRefreshCache refreshes the inspector-owned object cache when the
// operator forced it or the cached snapshot has aged past the configured
// refresh interval. A cache that has never been generated is always
// refreshed.
func maybeRefreshCache(ctx context.Context, cfg *config.Config, d deps) error {
	if cfg.ForceFilesystemScanRefresh {
		return d.inspector.RefreshCache(ctx)
	}

	oc, found, err := d.stateStore.LoadObjectCache()
	if err != nil {
		return err
	}
	if !found {
		return d.inspector.RefreshCache(ctx)
	}

	maxAge := time.Duration(cfg.ScanRefreshHours) * time.Hour
	if maxAge > 0 && time.Since(oc.GeneratedAt) > maxAge {
		return d.inspector.RefreshCache(ctx)
	}
	return nil
}

func runRetention(ctx context.Context, cfg *config.Config, d deps, now time.Time, summary *Summary) error {
	window, err := cfg.RetentionWindow()
	if err != nil {
		return err
	}
	if retention.Disabled(window) {
		return nil
	}

	yesterday, err := d.stateStore.LoadYesterdayState()
	if err != nil {
		return err
	}
	audit, err := d.stateStore.LoadPermanentDeletionAudit()
	if err != nil {
		return err
	}

	gc := retention.New(d.store, d.logger)
	result := gc.Run(ctx, now, window, yesterday, audit)

	summary.TombstonesReaped += int64(result.Expired)
	if d.collector != nil {
		d.collector.RecordTombstonesReaped(int64(result.Expired))
	}

	if cfg.DryRun {
		return nil
	}
	if err := d.stateStore.SaveYesterdayState(yesterday); err != nil {
		return err
	}
	if err := d.stateStore.SavePermanentDeletionAudit(audit); err != nil {
		return err
	}
	return nil
}
