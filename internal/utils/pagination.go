// Package utils provides small helpers for query parameters and paging that
// the HTTP and service layers share.
package utils

import "strconv"

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// BoundedInt parses s like AtoiDefault and clamps the result to [lo, hi].
//
//	utils.BoundedInt("", 20, 1, 100)    // 20
//	utils.BoundedInt("500", 20, 1, 100) // 100
//	utils.BoundedInt("-3", 20, 1, 100)  // 1
func BoundedInt(s string, def, lo, hi int) int {
	n := AtoiDefault(s, def)
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Offset is the number of rows before page (1-based) at size rows per page.
// Pages below 1 count as the first page.
func Offset(page, size int) int {
	if page < 1 || size < 1 {
		return 0
	}
	return (page - 1) * size
}

// TotalPages is how many pages of size hold total rows.
func TotalPages(total int64, size int) int {
	if total <= 0 || size < 1 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
