package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/driftlock/driftlock/pkg/errors"
)

// parseWindow parses a DD:HH:MM retention window, the same format
// internal/retention's garbage collector consumes. Config validates the
// string early so a malformed DELETED_FILE_RETENTION value is caught at
// startup rather than at the first retention run.
func parseWindow(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errors.New(errors.CodeConfigInvalid, fmt.Sprintf("DELETED_FILE_RETENTION must be DD:HH:MM, got %q", s))
	}

	days, errD := strconv.Atoi(parts[0])
	hours, errH := strconv.Atoi(parts[1])
	minutes, errM := strconv.Atoi(parts[2])
	if errD != nil || errH != nil || errM != nil {
		return 0, errors.New(errors.CodeConfigInvalid, fmt.Sprintf("DELETED_FILE_RETENTION must be DD:HH:MM, got %q", s))
	}
	if days < 0 || hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, errors.New(errors.CodeConfigInvalid, fmt.Sprintf("DELETED_FILE_RETENTION out of range: %q", s))
	}

	return time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}
