package utils

import "time"

// FormatTimestamp renders t in UTC with nanosecond precision so stored
// timestamps sort lexically
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a stored timestamp. The zero time is returned for
// empty input.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
