package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// SplitCSV splits a comma-separated list, trimming entries and dropping
// empty ones. An empty input yields nil.
func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseInt64List parses a comma-separated list of integers such as chat
// identities. Any malformed entry fails the whole list.
func ParseInt64List(s string) ([]int64, error) {
	fields := SplitCSV(s)
	if len(fields) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}
