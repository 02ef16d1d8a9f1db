package mapper

import (
	"math"
	"strconv"
	"strings"
)

// NormalizePrice renders a non-negative price as integer digits clipped to
// the platform's max field length. Values whose digit count exceeds maxLen
// clamp to the largest representable value rather than truncating, so an
// out-of-range price stays obviously wrong instead of silently plausible.
// Idempotent for any numeric input ≥ 0.
func NormalizePrice(price float64, maxLen int) string {
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return ""
	}
	if maxLen <= 0 {
		maxLen = 6
	}
	digits := strconv.FormatInt(int64(price), 10)
	if len(digits) > maxLen {
		return strings.Repeat("9", maxLen)
	}
	return digits
}

// NormalizeWeight renders item weights the way listing forms accept them:
// values under 10 keep one decimal, values from 10 up round to the nearest
// integer, and a trailing ".0" is stripped.
func NormalizeWeight(w float64) string {
	if w <= 0 {
		return ""
	}
	if w < 10 {
		s := strconv.FormatFloat(w, 'f', 1, 64)
		return strings.TrimSuffix(s, ".0")
	}
	return strconv.FormatInt(int64(math.Round(w)), 10)
}
