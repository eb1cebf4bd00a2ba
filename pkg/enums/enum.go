// Package enums holds the string enums stored in Postgres text columns.
// Each column carries a CHECK constraint listing the same values.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// values is the closed set of one enum type, in declaration order.
type values[T ~string] []T

func (v values[T]) has(candidate T) bool {
	return slices.Contains(v, candidate)
}

func (v values[T]) parse(kind, raw string) (T, error) {
	candidate := T(strings.TrimSpace(raw))
	if v.has(candidate) {
		return candidate, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
