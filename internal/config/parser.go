package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/driftlock/driftlock/pkg/errors"
)

// whitelistedKeys is the complete set of KEY=VALUE keys the loader accepts.
// Any key not in this set is warned about and dropped, never propagated
// into the map ParseFile returns.
var whitelistedKeys = map[string]bool{
	"S3_BUCKET":                     true,
	"S3_PREFIX":                     true,
	"AWS_REGION":                    true,
	"AWS_PROFILE":                   true,
	"AWS_ACCESS_KEY_ID":             true,
	"AWS_SECRET_ACCESS_KEY":         true,
	"AWS_SESSION_TOKEN":             true,
	"BACKUP_BACKEND":                true,
	"BACKUP_STRATEGY":               true,
	"PRESERVE_DIRECTORY_PATHS":      true,
	"BACKUP_ORGANIZATION":           true,
	"CHECKSUM_ALGORITHM":            true,
	"INTEGRITY_MODE":                true,
	"STRICT_EXTENSIONS":             true,
	"DELETED_FILE_RETENTION":        true,
	"DRY_RUN":                       true,
	"MOUNT_DIR":                     true,
	"FORCE_ALIGNMENT_MODE":          true,
	"ALIGNMENT_HISTORY_RETENTION":   true,
	"FILESYSTEM_SCAN_REFRESH_HOURS": true,
	"FORCE_FILESYSTEM_SCAN_REFRESH": true,
	"AUDIT_SYSTEM_ENABLED":          true,
	"LOG_LEVEL":                     true,
	"MAX_LOG_SIZE":                  true,
	"S3_CACHE_FILE":                 true,
	"S3_REPORT_FILE":                true,
	"S3_INSPECT_LOG_FILE":          true,
	"DETAILED_S3_REPORT":            true,
}

// kvLineRe matches a well-formed KEY=VALUE line; KEY must look like a shell
// environment variable name so anything past the first = is the value.
var kvLineRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// dangerousValueRe rejects the command-injection surface section 6 names:
// command substitution, backticks, semicolons and pipes (escaped or not),
// append/here-doc redirection, and brace expansion.
var dangerousValueRe = regexp.MustCompile("\\$\\(|`|;|\\||>>|<<|\\$\\{")

// ParseFile reads a KEY=VALUE configuration file, enforcing the whitelist
// and rejecting values with shell metacharacters. The file must not be
// executable by anyone; an executable config file is refused outright
// since this loader is a known privilege-escalation vector otherwise.
func ParseFile(path string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config")

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfigMissing, "failed to stat config file: "+path).WithCause(err)
	}
	if info.Mode().Perm()&0o111 != 0 {
		return nil, errors.New(errors.CodeConfigForbidden, "config file must not be executable: "+path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfigMissing, "failed to open config file: "+path).WithCause(err)
	}
	defer func() { _ = f.Close() }()

	raw := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		m := kvLineRe.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.New(errors.CodeConfigInvalid, fmt.Sprintf("malformed config line %d: %s", lineNo, line))
		}
		key, value := m[1], unquote(strings.TrimSpace(m[2]))

		if !whitelistedKeys[key] {
			logger.Warn("ignoring unknown config key", "key", key, "line", lineNo)
			continue
		}
		if dangerousValueRe.MatchString(value) {
			return nil, errors.New(errors.CodeConfigForbidden, fmt.Sprintf("rejected value for %s at line %d: contains disallowed shell metacharacters", key, lineNo))
		}

		raw[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid, "failed to read config file: "+path).WithCause(err)
	}

	return raw, nil
}

// unquote strips one layer of matching surrounding single or double quotes.
func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
