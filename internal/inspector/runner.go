// Package inspector invokes the external S3-inspector executable that owns
// bucket-walking: the core never lists the store itself, it only asks this
// subprocess to refresh the object cache or emit a report and then reads
// whatever the subprocess wrote through the local state store.
package inspector

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os/exec"

	"github.com/driftlock/driftlock/pkg/errors"
)

// Runner shells out to the configured inspector binary.
type Runner struct {
	ExecutablePath string
	ConfigPath     string
	logger         *slog.Logger
}

// New returns a Runner.
func New(executablePath, configPath string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{ExecutablePath: executablePath, ConfigPath: configPath, logger: logger.With("component", "inspector")}
}

// RefreshCache runs the inspector in cache-only mode. The inspector writes
// the refreshed object-cache file itself; callers reload it from the state
// store afterward.
func (r *Runner) RefreshCache(ctx context.Context) error {
	return r.run(ctx, "--cache-only", "--config", r.ConfigPath)
}

// GenerateReport runs the inspector in report-only mode.
func (r *Runner) GenerateReport(ctx context.Context) error {
	return r.run(ctx, "--report-only", "--config", r.ConfigPath)
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.ExecutablePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return errors.New(errors.CodeInspectorMissing, "inspector executable not found: "+r.ExecutablePath).WithCause(err)
		}
		r.logger.Error("inspector subprocess failed", "args", args, "stderr", stderr.String(), "error", err)
		return errors.New(errors.CodeInspectorMissing, "inspector subprocess failed: "+stderr.String()).WithCause(err)
	}
	return nil
}
