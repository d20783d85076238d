// Package enums holds the string enums shared by the Postgres schema, the
// API and the outbox wire format.
package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of set equal to raw. kind names the enum in the
// error.
func parse[T ~string](set []T, kind, raw string) (T, error) {
	if i := slices.Index(set, T(raw)); i >= 0 {
		return set[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
