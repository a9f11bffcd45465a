// Package retention implements tombstone garbage collection: parsing the
// DD:HH:MM retention window, deciding which yesterday-state deletions have
// expired, permanently removing their objects, and appending the
// permanent-deletion audit trail.
package retention

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/driftlock/driftlock/pkg/errors"
)

// ParseWindow parses a DD:HH:MM retention window. "00:00:00" is valid and
// means retention is disabled (Disabled reports true for it).
func ParseWindow(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.New(errors.CodeConfigInvalid, "retention window must be DD:HH:MM, got "+s)
	}

	days, err := strconv.Atoi(parts[0])
	if err != nil || days < 0 {
		return 0, errors.New(errors.CodeConfigInvalid, fmt.Sprintf("retention window has invalid day component: %q", parts[0]))
	}
	hours, err := strconv.Atoi(parts[1])
	if err != nil || hours < 0 || hours > 23 {
		return 0, errors.New(errors.CodeConfigInvalid, fmt.Sprintf("retention window has invalid hour component: %q", parts[1]))
	}
	minutes, err := strconv.Atoi(parts[2])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, errors.New(errors.CodeConfigInvalid, fmt.Sprintf("retention window has invalid minute component: %q", parts[2]))
	}

	return time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

// Disabled reports whether a parsed window disables cleanup entirely.
func Disabled(d time.Duration) bool {
	return d == 0
}
