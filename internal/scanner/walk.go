package scanner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/driftlock/driftlock/internal/state"
	"github.com/driftlock/driftlock/pkg/errors"
)

// FileRef is one file discovered while walking a shard, with its path
// relative to the shard root (the key used in Shard.Files).
type FileRef struct {
	AbsolutePath string
	RelativePath string
	Info         os.FileInfo
}

// WalkShardFiles lists the files owned by shard. Shallow and deep-root
// shards scan only their immediate children (depth 1, per the shallow
// trigger's semantics and the deep trigger's own directory); deep-subdir
// shards recurse without bound.
func (s *Scanner) WalkShardFiles(ctx context.Context, shard ExpandedTrigger) ([]FileRef, error) {
	if shard.Kind == state.MetaShardKindDeepSubdir {
		return s.walkRecursive(ctx, shard.Directory, shard.Directory, make(map[inodeKey]bool))
	}
	return s.walkShallow(shard.Directory)
}

func (s *Scanner) walkShallow(dir string) ([]FileRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) {
			s.logger.Warn("permission denied listing shard directory", "dir", dir)
			return nil, nil
		}
		return nil, errors.New(errors.CodeLocalIO, "failed to read shard directory: "+dir).WithCause(err)
	}

	var files []FileRef
	for _, e := range entries {
		if e.IsDir() || isTriggerFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.logger.Warn("cannot stat entry, skipping", "path", filepath.Join(dir, e.Name()), "error", err)
			continue
		}
		files = append(files, FileRef{
			AbsolutePath: filepath.Join(dir, e.Name()),
			RelativePath: e.Name(),
			Info:         info,
		})
	}
	return files, nil
}

func (s *Scanner) walkRecursive(ctx context.Context, root, dir string, visited map[inodeKey]bool) ([]FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if key, ok := inodeKeyFor(dir); ok {
		if visited[key] {
			return nil, nil
		}
		visited[key] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) {
			s.logger.Warn("permission denied, skipping subtree", "dir", dir)
			return nil, nil
		}
		s.logger.Warn("failed to read directory, skipping subtree", "dir", dir, "error", err)
		return nil, nil
	}

	var files []FileRef
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		isDir := e.IsDir()
		if !isDir && e.Type()&os.ModeSymlink != 0 {
			isDir = s.resolvesToDir(full)
		}
		if isDir {
			sub, err := s.walkRecursive(ctx, root, full, visited)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		if isTriggerFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			s.logger.Warn("cannot stat entry, skipping", "path", full, "error", err)
			continue
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			continue
		}
		files = append(files, FileRef{
			AbsolutePath: full,
			RelativePath: filepath.ToSlash(rel),
			Info:         info,
		})
	}
	return files, nil
}

func isTriggerFile(name string) bool {
	return name == ShallowTriggerFile || name == DeepTriggerFile
}
