package usecase

import (
	"strconv"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimeBound normalizes flexible date/time text into epoch seconds.
// Accepts a numeric epoch string or any of the supported layouts (UTC).
// Empty or unparseable input yields nil: a malformed bound degrades to
// "unfiltered on that axis", it never fails the query.
func parseTimeBound(s string) *int64 {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n := t.Unix()
			return &n
		}
	}
	return nil
}
