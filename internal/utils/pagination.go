// Package utils provides small helper functions shared across layers,
// independent of domain logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi. If the string
// is empty or cannot be parsed as an integer, it returns the provided
// default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPerPage bounds a page-size value: non-positive values become def,
// values above max become max. Listing endpoints use it so a caller cannot
// request an unbounded result set.
func ClampPerPage(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
