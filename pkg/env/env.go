// Package env reads the few settings needed before config.Load runs, such as
// the log format used to report config errors.
package env

import (
	"os"
	"strconv"
	"strings"
)

func lookup[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

func Get(key, fallback string) string {
	return lookup(key, fallback, func(s string) (string, error) { return s, nil })
}

// Bool falls back on unset and malformed values alike.
func Bool(key string, fallback bool) bool {
	return lookup(key, fallback, strconv.ParseBool)
}
