package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftlock/driftlock/pkg/errors"
)

// atomicWriteJSON encodes v as indented JSON into a sibling temp file under
// root, fsyncs it, renames it over the target, then fsyncs the containing
// directory so the rename itself is durable. Grounded directly on the
// teacher's cache index persistence (temp file + os.Rename with a
// path-containment check), extended with the two fsyncs so a crash between
// write and rename never leaves a partial file observable.
func atomicWriteJSON(root, relPath string, v interface{}) error {
	cleanRoot := filepath.Clean(root)
	path := filepath.Join(root, relPath)
	if !strings.HasPrefix(filepath.Clean(path), cleanRoot) {
		return errors.New(errors.CodeLocalIO, "state file path escapes state root: "+relPath)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to create state directory").WithCause(err)
	}

	tmp := path + ".tmp"
	if !strings.HasPrefix(filepath.Clean(tmp), cleanRoot) {
		return errors.New(errors.CodeLocalIO, "state temp file path escapes state root: "+relPath)
	}

	f, err := os.Create(tmp)
	if err != nil {
		return errors.New(errors.CodeLocalIO, "failed to create temp state file").WithCause(err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.New(errors.CodeLocalIO, "failed to encode state file").WithCause(err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.New(errors.CodeLocalIO, "failed to fsync temp state file").WithCause(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.New(errors.CodeLocalIO, "failed to close temp state file").WithCause(err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.New(errors.CodeLocalIO, "failed to rename temp state file into place").WithCause(err)
	}

	if df, err := os.Open(dir); err == nil {
		_ = df.Sync()
		_ = df.Close()
	}

	return nil
}

// atomicReadJSON decodes the file at root/relPath into v. It returns
// (false, nil) when the file does not exist, and a CodeStateCorrupt error
// when it exists but fails to parse.
func atomicReadJSON(root, relPath string, v interface{}) (bool, error) {
	path := filepath.Join(root, relPath)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.New(errors.CodeLocalIO, "failed to open state file: "+relPath).WithCause(err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return true, errors.New(errors.CodeStateCorrupt, "failed to parse state file: "+relPath).WithCause(err)
	}
	return true, nil
}
