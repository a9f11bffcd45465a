package staterecovery

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/internal/state"
	"github.com/driftlock/driftlock/pkg/errors"
)

// snapshotUploadConcurrency bounds how many of the (small, fixed-size)
// managed state files UploadSnapshots uploads at once.
const snapshotUploadConcurrency = 4

// Recoverer runs the boot-time recovery sweep and the post-run snapshot
// upload against the four files state.ManagedFiles lists.
type Recoverer struct {
	store      objectstore.ObjectStore
	stateStore *state.Store
	logger     *slog.Logger
}

// New returns a Recoverer.
func New(store objectstore.ObjectStore, stateStore *state.Store, logger *slog.Logger) *Recoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recoverer{store: store, stateStore: stateStore, logger: logger.With("component", "staterecovery")}
}

func backupKey(name string) string {
	return path.Join("state_backups", name+"-LATEST.json")
}

func fileTypeName(relPath string) string {
	base := path.Base(filepath.ToSlash(relPath))
	return strings.TrimSuffix(base, ".json")
}

// Recover runs the decision policy for every managed file, in order. now is
// passed in so callers control the clock under test.
func (r *Recoverer) Recover(ctx context.Context, now time.Time) error {
	for _, relPath := range state.ManagedFiles() {
		if err := r.recoverOne(ctx, relPath, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recoverer) recoverOne(ctx context.Context, relPath string, now time.Time) error {
	name := fileTypeName(relPath)
	localPath := filepath.Join(r.stateStore.Root(), relPath)

	localData, localErr := os.ReadFile(localPath)
	var localTime time.Time
	var localValid bool
	if localErr == nil {
		localTime, localValid = validate(localData, now)
	}

	remoteData, remoteErr := r.downloadRemote(ctx, name)
	var remoteTime time.Time
	var remoteValid bool
	if remoteErr == nil {
		remoteTime, remoteValid = validate(remoteData, now)
	}

	decision, reason := decide(localValid, remoteValid, localTime, remoteTime, now)

	rec := state.RecoveryAuditRecord{
		Timestamp: now,
		FileType:  name,
		Decision:  string(decision),
		Reason:    reason,
	}
	if localValid {
		rec.LocalAgeSeconds = now.Sub(localTime).Seconds()
	}
	if remoteValid {
		rec.RemoteAgeSeconds = now.Sub(remoteTime).Seconds()
	}

	r.logger.Info("state recovery decision", "file_type", name, "decision", decision, "reason", reason)

	if decision == DecisionUseRemote {
		if localErr == nil {
			if err := r.stateStore.BackupBeforeOverwrite(relPath, now); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return errors.New(errors.CodeLocalIO, "failed to create state directory for recovered file").WithCause(err)
		}
		if err := os.WriteFile(localPath, remoteData, 0o644); err != nil {
			return errors.New(errors.CodeLocalIO, "failed to write recovered state file: "+localPath).WithCause(err)
		}
	}

	return r.stateStore.AppendRecoveryAudit(rec)
}

func (r *Recoverer) downloadRemote(ctx context.Context, name string) ([]byte, error) {
	rc, err := r.store.Get(ctx, backupKey(name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// UploadSnapshots uploads the current content of every managed file to
// state_backups/<name>-LATEST.json. Called after a successful backup run.
// A managed file that doesn't exist locally yet (nothing has run) is
// skipped rather than treated as an error. The uploads themselves run
// through PutParallel so one transient failure stops the remaining
// uploads rather than racing ahead with backups built from a partially
// updated set of state files.
func (r *Recoverer) UploadSnapshots(ctx context.Context) error {
	var items []objectstore.PutItem
	for _, relPath := range state.ManagedFiles() {
		name := fileTypeName(relPath)
		localPath := filepath.Join(r.stateStore.Root(), relPath)

		data, err := os.ReadFile(localPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.New(errors.CodeLocalIO, "failed to read state file for snapshot upload: "+localPath).WithCause(err)
		}

		items = append(items, objectstore.PutItem{Key: backupKey(name), Data: data})
	}

	for _, result := range objectstore.PutParallel(ctx, r.store, items, snapshotUploadConcurrency) {
		if result.Err != nil {
			return result.Err
		}
	}
	return nil
}
