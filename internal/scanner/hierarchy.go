package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftlock/driftlock/internal/state"
)

// ExpandedTrigger is one shard unit after deep-expansion: a shallow trigger
// expands to itself, a deep trigger expands into a deep-root shard plus one
// deep-subdir shard per immediate child directory.
type ExpandedTrigger struct {
	Directory string
	Component string // mount-relative path; "" for the mount root itself
	Kind      string // state.MetaShardKindShallow / DeepRoot / DeepSubdir
}

// FilterHierarchy removes any shallow entry whose directory has an ancestor,
// still within the set, that is a deep entry. Deep entries always survive.
func FilterHierarchy(triggers []Trigger) []Trigger {
	deepDirs := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t.Mode == ModeDeep {
			deepDirs = append(deepDirs, t.Directory)
		}
	}

	filtered := make([]Trigger, 0, len(triggers))
	for _, t := range triggers {
		if t.Mode == ModeDeep || !hasDeepAncestor(t.Directory, deepDirs) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func hasDeepAncestor(dir string, deepDirs []string) bool {
	for _, deep := range deepDirs {
		if dir == deep {
			continue
		}
		rel, err := filepath.Rel(deep, dir)
		if err != nil {
			continue
		}
		if rel != "." && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// ExpandDeep rewrites each deep trigger into a deep-root shard plus one
// deep-subdir shard per immediate child directory. Shallow triggers pass
// through unchanged. A deep directory that can't be listed (permission,
// since-removed) contributes only its root shard; the failure is logged,
// never fatal.
func ExpandDeep(triggers []Trigger, mountRoot string, logger *slog.Logger) []ExpandedTrigger {
	expanded := make([]ExpandedTrigger, 0, len(triggers))

	for _, t := range triggers {
		switch t.Mode {
		case ModeShallow:
			expanded = append(expanded, ExpandedTrigger{
				Directory: t.Directory,
				Component: S3Component(mountRoot, t.Directory),
				Kind:      state.MetaShardKindShallow,
			})
		case ModeDeep:
			expanded = append(expanded, ExpandedTrigger{
				Directory: t.Directory,
				Component: S3Component(mountRoot, t.Directory),
				Kind:      state.MetaShardKindDeepRoot,
			})

			entries, err := os.ReadDir(t.Directory)
			if err != nil {
				if logger != nil {
					logger.Warn("failed to expand deep trigger, root shard only", "dir", t.Directory, "error", err)
				}
				continue
			}
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				childDir := filepath.Join(t.Directory, e.Name())
				expanded = append(expanded, ExpandedTrigger{
					Directory: childDir,
					Component: S3Component(mountRoot, childDir),
					Kind:      state.MetaShardKindDeepSubdir,
				})
			}
		}
	}

	return expanded
}

// S3Component returns dir's path relative to mountRoot, or "" when dir is
// the mount root itself. Object-store keys use the literal segment "root"
// for that empty component (see syncengine.CurrentKey).
func S3Component(mountRoot, dir string) string {
	mountRoot = filepath.Clean(mountRoot)
	dir = filepath.Clean(dir)
	if dir == mountRoot {
		return ""
	}
	rel, err := filepath.Rel(mountRoot, dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	return filepath.ToSlash(rel)
}
