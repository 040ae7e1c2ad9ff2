// Package util holds small parsers shared by config loading and HTTP
// handlers.
package util

import (
	"strconv"
	"strings"
	"time"
)

// ParseTime accepts RFC3339 with optional fractional seconds, or positive
// unix seconds. The result is always UTC.
func ParseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// IntOr returns s as an int, or fallback when s is not a number.
func IntOr(s string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return fallback
}

// SplitList splits a comma separated value and drops blank items. It
// returns nil when nothing is left.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
