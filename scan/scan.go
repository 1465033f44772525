// Package scan implements a minimal IDA-style byte/wildcard signature
// scanner. spec.md §1 explicitly scopes pattern scanning out of the core
// hooking problem; this package exists only because §6 lists "a pattern
// scanner" as an external collaborator the core relies on to locate hook
// targets in the first place. It stays deliberately simple — a linear
// scan, no Boyer-Moore or SIMD — matching that scoping note.
package scan

import "github.com/themusaigen/mywr/strutil"

// FindPattern returns the offset of the first match of pattern (an
// IDA-style hex/wildcard string, e.g. "48 8B ?? ?? E8") within image, and
// whether a match was found at all.
func FindPattern(image []byte, pattern string) (int, bool) {
	pat, ok := strutil.ParsePattern(pattern)
	if !ok {
		return 0, false
	}
	for off := 0; off+len(pat) <= len(image); off++ {
		if strutil.MatchAt(image, pat, off) {
			return off, true
		}
	}
	return 0, false
}

// FindAllPatterns returns every match offset of pattern in image, in
// ascending order. It advances one byte at a time, so overlapping matches
// (e.g. a pattern that is its own suffix) are all reported.
func FindAllPatterns(image []byte, pattern string) []int {
	pat, ok := strutil.ParsePattern(pattern)
	if !ok {
		return nil
	}
	var out []int
	for off := 0; off+len(pat) <= len(image); off++ {
		if strutil.MatchAt(image, pat, off) {
			out = append(out, off)
		}
	}
	return out
}
