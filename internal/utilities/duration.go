package utilities

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseDuration parses "5m", "1h30m", "250ms". A bare integer is treated as seconds.
func ParseDuration(s string) (time.Duration, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, &time.ParseError{Layout: "duration", Value: s, Message: "empty duration"}
	}
	if isBareInt(in) {
		secs, err := strconv.ParseInt(in, 10, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(in)
}

// DurationOrDefault parses s, returning def when s is empty, invalid, or not positive.
func DurationOrDefault(s string, def time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return def
	}
	d, err := ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func isBareInt(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
		if s == "" {
			return false
		}
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
