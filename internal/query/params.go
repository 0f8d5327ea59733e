package query

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ParseParams builds Params from raw query-string values. Non-numeric page or
// limit values are treated as absent (zero), which Normalize later replaces
// with defaults, so malformed input degrades instead of failing the request.
// Numbers too large for an int saturate, so a huge page is still past the end.
func ParseParams(search, sort, page, limit string) Params {
	return Params{
		Search: search,
		Sort:   strings.TrimSpace(sort),
		Page:   atoiDefault(page, 0),
		Limit:  atoiDefault(limit, 0),
	}
}

// atoiDefault parses s as a base-10 int, returning def when s is blank or
// malformed. Out-of-range numbers clamp to math.MaxInt or math.MinInt.
//
//	atoiDefault("42", 0)                   // 42
//	atoiDefault("", 10)                    // 10
//	atoiDefault("x", 5)                    // 5
//	atoiDefault("99999999999999999999", 0) // math.MaxInt
func atoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err == nil {
		return n
	}
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(s, "-") {
			return math.MinInt
		}
		return math.MaxInt
	}
	return def
}
