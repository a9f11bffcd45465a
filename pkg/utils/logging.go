package utils

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide slog.Logger: JSON to logFile when set,
// text to stderr otherwise.
func NewLogger(levelStr, logFile string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(levelStr))); err != nil {
		return nil, fmt.Errorf("invalid log level: %s", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}

	if logFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(file, opts)), nil
}

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ParseBytes parses a human-readable byte string such as "512M" or "2G".
func ParseBytes(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	s = strings.ToUpper(strings.TrimSpace(s))

	if strings.HasSuffix(s, "B") {
		s = s[:len(s)-1]
	}

	var multiplier int64 = 1
	var numStr string

	if len(s) > 0 {
		lastChar := s[len(s)-1]
		switch lastChar {
		case 'K':
			multiplier = 1024
			numStr = s[:len(s)-1]
		case 'M':
			multiplier = 1024 * 1024
			numStr = s[:len(s)-1]
		case 'G':
			multiplier = 1024 * 1024 * 1024
			numStr = s[:len(s)-1]
		case 'T':
			multiplier = 1024 * 1024 * 1024 * 1024
			numStr = s[:len(s)-1]
		case 'P':
			multiplier = 1024 * 1024 * 1024 * 1024 * 1024
			numStr = s[:len(s)-1]
		default:
			numStr = s
		}
	}

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid number format: %s", s)
	}

	return int64(num * float64(multiplier)), nil
}
