package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/internal/state"
)

// Result summarizes one Run.
type Result struct {
	Expired int
	Failed  int
	Bytes   int64
}

// Engine permanently deletes tombstoned objects once their retention window
// elapses, appending to the permanent-deletion audit and removing the
// yesterday-state entry.
type Engine struct {
	store  objectstore.ObjectStore
	logger *slog.Logger
}

// New returns an Engine.
func New(store objectstore.ObjectStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger.With("component", "retention")}
}

// Run evaluates every entry in yesterday against window, permanently
// deleting expired tombstones and recording them in audit. window == 0
// disables cleanup entirely (Run is then a no-op). now is passed in so
// callers control the clock under test.
func (e *Engine) Run(ctx context.Context, now time.Time, window time.Duration, yesterday *state.YesterdayState, audit *state.PermanentDeletionAudit) Result {
	var result Result
	if Disabled(window) {
		return result
	}

	expiredKeys := make([]string, 0)
	for key, df := range yesterday.DeletedFiles {
		if now.Sub(df.DeletedAt) < window {
			continue
		}

		objectKey := DeletedKey(df.Component, df.Filename)
		if err := e.store.Delete(ctx, objectKey); err != nil {
			e.logger.Warn("failed to permanently delete tombstoned object, leaving for next run",
				"key", objectKey, "error", err)
			result.Failed++
			continue
		}

		audit.Append(key, &state.PermanentDeletionRecord{
			SourceDirectory:      df.SourceDirectory,
			Checksum:             df.Checksum,
			Size:                 df.Size,
			RetentionPeriod:      window.String(),
			OriginalDeletedAt:    df.DeletedAt,
			PermanentlyDeletedAt: now,
		})

		result.Expired++
		result.Bytes += df.Size
		expiredKeys = append(expiredKeys, key)
	}

	for _, key := range expiredKeys {
		yesterday.RemoveDeletedFile(key)
	}

	return result
}
