package truncate

import "unicode/utf8"

const (
	textMarker        = "... [truncated]"
	textMarkerReserve = 20
)

// Text cuts s to at most maxChars bytes, ending with a truncation marker.
// The cut never splits a UTF-8 sequence.
func Text(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	keep := maxChars - textMarkerReserve
	if keep < 0 {
		keep = 0
	}
	return cutBytes(s, keep) + textMarker
}

// cutBytes returns the longest prefix of s no longer than n bytes that ends
// on a rune boundary.
func cutBytes(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Runes keeps the first n runes of s and appends "..." when it cut. Log
// fields use it to shorten queries.
func Runes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}
