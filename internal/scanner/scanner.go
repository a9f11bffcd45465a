// Package scanner discovers trigger directories under a mount root,
// resolves the shallow/deep hierarchy, expands deep triggers into per-shard
// units, and lists the files owned by each shard.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/driftlock/driftlock/pkg/errors"
)

// Trigger file names recognized at any directory under the mount root.
const (
	ShallowTriggerFile = "backupthisdir.txt"
	DeepTriggerFile    = "backupalldirs.txt"
)

// Mode is the trigger mode resolved for a directory.
type Mode string

const (
	ModeShallow Mode = "shallow"
	ModeDeep    Mode = "deep"
)

// Trigger is one directory under the mount root with a resolved mode.
type Trigger struct {
	Directory string
	Mode      Mode
}

// Scanner walks a single mount root.
type Scanner struct {
	mountRoot string
	logger    *slog.Logger
}

// New returns a Scanner rooted at mountRoot.
func New(mountRoot string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{mountRoot: filepath.Clean(mountRoot), logger: logger.With("component", "scanner")}
}

// MountRoot returns the configured, cleaned mount root.
func (s *Scanner) MountRoot() string {
	return s.mountRoot
}

// resolvesToDir follows a symlink and reports whether it points at a
// directory. A broken symlink resolves to false and is logged, not fatal.
func (s *Scanner) resolvesToDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("broken symlink, skipping", "path", path, "error", err)
		return false
	}
	return info.IsDir()
}

// DiscoverTriggers walks the mount root once, collecting one Trigger per
// directory containing a shallow or deep trigger file (deep wins when both
// are present). A missing or inaccessible mount root is fatal; permission
// errors on subtrees are logged and that subtree is skipped, never fatal.
// Symlinked directories are followed but a device+inode visited set
// prevents infinite traversal around a cycle.
func (s *Scanner) DiscoverTriggers(ctx context.Context) ([]Trigger, error) {
	info, err := os.Stat(s.mountRoot)
	if err != nil {
		return nil, errors.New(errors.CodeMountMissing, "mount root is not accessible: "+s.mountRoot).WithCause(err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.CodeMountMissing, "mount root is not a directory: "+s.mountRoot)
	}

	w := &triggerWalk{
		scanner: s,
		visited: make(map[inodeKey]bool),
		found:   make(map[string]Mode),
	}
	if err := w.walk(ctx, s.mountRoot); err != nil {
		return nil, err
	}

	triggers := make([]Trigger, 0, len(w.found))
	for dir, mode := range w.found {
		triggers = append(triggers, Trigger{Directory: dir, Mode: mode})
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].Directory < triggers[j].Directory })
	return triggers, nil
}

type triggerWalk struct {
	scanner *Scanner
	visited map[inodeKey]bool
	found   map[string]Mode
}

func (w *triggerWalk) walk(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if key, ok := inodeKeyFor(dir); ok {
		if w.visited[key] {
			return nil
		}
		w.visited[key] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) {
			w.scanner.logger.Warn("permission denied, skipping subtree", "dir", dir)
			return nil
		}
		w.scanner.logger.Warn("failed to read directory, skipping subtree", "dir", dir, "error", err)
		return nil
	}

	hasShallow, hasDeep := false, false
	var subdirs []string
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		isDir := e.IsDir()
		if !isDir && e.Type()&os.ModeSymlink != 0 {
			isDir = w.scanner.resolvesToDir(full)
		}
		if !isDir {
			switch e.Name() {
			case ShallowTriggerFile:
				hasShallow = true
			case DeepTriggerFile:
				hasDeep = true
			}
			continue
		}
		subdirs = append(subdirs, full)
	}

	switch {
	case hasDeep:
		w.found[dir] = ModeDeep
	case hasShallow:
		w.found[dir] = ModeShallow
	}

	for _, sub := range subdirs {
		if err := w.walk(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}
