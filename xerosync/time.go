package xerosync

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var msDatePattern = regexp.MustCompile(`^/Date\((-?\d+)(?:[+-]\d{4})?\)/$`)

// parseXeroTime handles the timestamp shapes the API emits: the legacy
// /Date(ms)/ wrapper, ISO 8601, and plain dates. Empty values and the
// zero-date sentinel come back as nil so a poisoned "unchanged since"
// value is never persisted.
func parseXeroTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || value == "0000-00-00 00:00:00" {
		return nil
	}
	if m := msDatePattern.FindStringSubmatch(value); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || ms <= 0 {
			return nil
		}
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			if t.IsZero() {
				return nil
			}
			t = t.UTC()
			return &t
		}
	}
	return nil
}
