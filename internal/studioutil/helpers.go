// Package studioutil provides small formatting and file-name helpers shared
// by the history store, diagnostics, and the HTTP layer.
package studioutil

import (
	"fmt"
	"strings"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
)

const invalidCharReplacement = "_"

// FormatBytes renders a byte count in the largest sensible unit.
func FormatBytes(size int64) string {
	switch {
	case size >= gigabyte:
		return fmt.Sprintf(formatGB, float64(size)/float64(gigabyte))
	case size >= megabyte:
		return fmt.Sprintf(formatMB, float64(size)/float64(megabyte))
	case size >= kilobyte:
		return fmt.Sprintf(formatKB, float64(size)/float64(kilobyte))
	default:
		return fmt.Sprintf(formatBytes, size)
	}
}

// FormatSeconds renders a duration in seconds as a short human string.
func FormatSeconds(seconds float64) string {
	switch {
	case seconds >= secondsInHour:
		hours := int(seconds) / secondsInHour
		minutes := (int(seconds) % secondsInHour) / secondsInMinute

		return fmt.Sprintf(formatHours, hours, minutes)
	case seconds >= secondsInMinute:
		minutes := int(seconds) / secondsInMinute
		remainder := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainder)
	default:
		return fmt.Sprintf(formatSeconds, seconds)
	}
}

// SanitizeFileName strips path separators and control characters from a
// user-supplied file name so it is safe to join onto a storage directory.
func SanitizeFileName(name string) string {
	var builder strings.Builder

	for _, char := range name {
		switch {
		case char == '/' || char == '\\' || char == ':':
			builder.WriteString(invalidCharReplacement)
		case char < 0x20:
			builder.WriteString(invalidCharReplacement)
		default:
			builder.WriteRune(char)
		}
	}

	sanitized := strings.TrimSpace(builder.String())
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		return invalidCharReplacement
	}

	return sanitized
}
