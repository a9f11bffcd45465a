package alignment

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/driftlock/driftlock/pkg/errors"
)

var forceAlignmentLineRe = regexp.MustCompile(`(?m)^(FORCE_ALIGNMENT_MODE\s*=\s*)(["']?)(?:true|false)(["']?)\s*$`)

// DisableForceAlignment flips FORCE_ALIGNMENT_MODE to false in the
// whitelisted KEY=VALUE config file at path, preserving whatever quoting
// the existing line used. A timestamped backup of the original file is
// written first.
func DisableForceAlignment(path string, now time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.CodeLocalIO, "failed to read config file for alignment flag update: "+path).WithCause(err)
	}

	if !forceAlignmentLineRe.Match(data) {
		return errors.New(errors.CodeConfigInvalid, "FORCE_ALIGNMENT_MODE line not found in "+path)
	}

	backupPath := fmt.Sprintf("%s.pre-alignment-%s.bak", path, now.UTC().Format("20060102T150405Z"))
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to write config backup: "+backupPath).WithCause(err)
	}

	updated := forceAlignmentLineRe.ReplaceAll(data, []byte("${1}${2}false${3}"))
	if err := os.WriteFile(path, updated, 0o600); err != nil {
		return errors.New(errors.CodeLocalIO, "failed to write updated config file: "+path).WithCause(err)
	}
	return nil
}
