// Command driftlock runs one incremental backup cycle for a single
// mount: discover triggers, sync changed files to the object store, run
// retention garbage collection, and (on request) reconcile the object
// store against triggers still present on disk.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftlock/driftlock/internal/config"
	"github.com/driftlock/driftlock/internal/health"
	"github.com/driftlock/driftlock/internal/inspector"
	"github.com/driftlock/driftlock/internal/metrics"
	"github.com/driftlock/driftlock/internal/objectstore"
	"github.com/driftlock/driftlock/internal/objectstore/s3store"
	"github.com/driftlock/driftlock/internal/scanner"
	"github.com/driftlock/driftlock/internal/state"
	"github.com/driftlock/driftlock/pkg/errors"
	"github.com/driftlock/driftlock/pkg/utils"
)

var version = "dev"

var (
	flagConfigPath     string
	flagDryRun         bool
	flagForceAlignment bool
	flagJSONSummary    bool
	flagDumpDefaults   bool
	flagInspectorPath  string
	flagMetricsPort    int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "driftlock",
		Short:   "Incremental filesystem-to-object-store backup sync",
		Long:    "driftlock discovers opt-in trigger directories under a mount, syncs changed files to an object store, and reconciles the two when triggers disappear.",
		Version: version,
		// Cobra's default usage dump on every error is wrong for a
		// cron-driven tool; the sysexits-mapped error message is enough.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&flagConfigPath, "config", "", "path to the KEY=VALUE configuration file (default: $CONFIG_FILE or driftlock.conf)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "report what would change without touching the object store or local state")
	cmd.Flags().BoolVar(&flagForceAlignment, "force-alignment", false, "run the forced-alignment reconciler instead of a normal backup pass")
	cmd.Flags().BoolVar(&flagJSONSummary, "json-summary", false, "print the end-of-run summary as JSON instead of text")
	cmd.Flags().BoolVar(&flagDumpDefaults, "dump-defaults", false, "print a YAML reference of the configuration defaults and exit")
	cmd.Flags().StringVar(&flagInspectorPath, "inspector", "driftlock-inspector", "path to the S3-inspector executable")
	cmd.Flags().IntVar(&flagMetricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")

	return cmd
}

func runCommand(ctx context.Context) error {
	if flagDumpDefaults {
		data, err := config.DumpDefaults()
		if err != nil {
			return errors.New(errors.CodeInternal, "failed to render defaults").WithCause(err)
		}
		fmt.Print(string(data))
		return nil
	}

	configPath := resolveConfigPath()

	logLevel := os.Getenv("LOG_LEVEL")
	logger, err := utils.NewLogger(orDefault(logLevel, "INFO"), os.Getenv("LOG_FILE"))
	if err != nil {
		return errors.New(errors.CodeConfigInvalid, "invalid logging configuration").WithCause(err)
	}

	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return err
	}
	applyEnvOverrides(cfg)
	if flagDryRun {
		cfg.DryRun = true
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err = utils.NewLogger(cfg.LogLevel, os.Getenv("LOG_FILE"))
	if err != nil {
		return errors.New(errors.CodeConfigInvalid, "invalid LOG_LEVEL after config load").WithCause(err)
	}

	stateDir := filepath.Join(filepath.Dir(configPath), "state")
	stateStore := state.NewStore(stateDir)

	lock, err := stateStore.Lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	s3cfg := s3store.NewDefaultConfig()
	s3cfg.Bucket = cfg.S3Bucket
	s3cfg.Region = cfg.AWSRegion
	store, err := s3store.New(ctx, s3cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	checker := health.NewChecker(30 * time.Second)
	checker.Register("object-store-reachable", store.HeadBucket)
	results, err := checker.RunAll(ctx)
	for _, r := range results {
		logger.Info("startup check", "check", r.Check, "status", r.Status, "duration", r.Duration)
	}
	if err != nil {
		return errors.New(errors.CodePermissionDenied, "startup connectivity check failed").WithCause(err)
	}

	collector, err := metrics.NewCollector(metrics.Config{Enabled: flagMetricsPort > 0, Port: flagMetricsPort})
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to initialize metrics collector").WithCause(err)
	}
	if err := collector.Start(ctx); err != nil {
		return errors.New(errors.CodeInternal, "failed to start metrics server").WithCause(err)
	}
	defer func() { _ = collector.Stop(context.Background()) }()

	d := deps{
		store:          objectstore.NewRecovered(store, nil),
		stateStore:     stateStore,
		scanner:        scanner.New(cfg.MountDir, logger),
		inspector:      inspector.New(flagInspectorPath, configPath, logger),
		collector:      collector,
		logger:         logger,
		configPath:     configPath,
		forceAlignment: flagForceAlignment,
	}

	summary, runErr := run(ctx, cfg, d, time.Now())
	if summary != nil {
		printSummary(summary)
	}
	if runErr != nil {
		return runErr
	}
	if summary.HasFailures() {
		return errors.New(errors.CodeInternal, "run completed with file-level or alignment errors")
	}
	return nil
}

func resolveConfigPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		return v
	}
	return "driftlock.conf"
}

// applyEnvOverrides lets a small subset of keys be overridden by
// environment variable for cron/container deployments; everything else
// is configuration-file only.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("DRY_RUN"); v != "" {
		cfg.DryRun = v == "true" || v == "1"
	}
	if v := os.Getenv("FORCE_ALIGNMENT_MODE"); v != "" {
		cfg.ForceAlignmentMode = v == "true" || v == "1"
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func printSummary(s *Summary) {
	if flagJSONSummary {
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal summary: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("driftlock run complete in %s\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("  new=%d modified=%d unchanged=%d deleted=%d errored=%d\n",
		s.New, s.Modified, s.Unchanged, s.Deleted, s.Errored)
	fmt.Printf("  bytes_uploaded=%s tombstones_reaped=%d\n", utils.FormatBytes(s.BytesUploaded), s.TombstonesReaped)
	if s.Aligned {
		fmt.Printf("  alignment: %d orphaned dirs, %d objects failed\n", len(s.AlignmentOrphans), s.AlignmentFailed)
	}
}
