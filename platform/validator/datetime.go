package validator

import (
	"strings"
	"time"
)

// Zone-less layouts are interpreted in the caller's location.
var (
	zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}
	localLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02T15:04"}
)

// IsISODateTime reports whether s is an ISO 8601 date-time accepted by ParseISODateTime.
func IsISODateTime(s string) bool {
	_, err := ParseISODateTime(s, time.UTC)
	return err == nil
}

// ParseISODateTime parses an ISO 8601 date-time. Values without an offset are read in loc.
func ParseISODateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}

	var lastErr error
	for _, layout := range zonedLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	for _, layout := range localLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
