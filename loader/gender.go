package loader

import (
	"strings"

	"gitlab.com/kockalogger/kockalogger/util"
)

// GENDER expansion uses three private-use-area runes as opaque
// markers so the alternation's own regex metacharacters ("|") survive
// EscapeRegex untouched, per the Design Notes: "use a two-pass
// transform over a byte buffer with an opaque sentinel rather than a
// string placeholder." None of these runes can occur in real
// MediaWiki message text.
const (
	genderOpen  = ""
	genderSep   = ""
	genderClose = ""
)

// expandGender rewrites every {{GENDER:...|a|b|c}} construct in raw
// into a sentinel-delimited option list, deferring the actual
// alternation syntax until after EscapeRegex has run (see
// finalizeGenderSentinels). Per spec.md §4.3 step 5, the final option
// is dropped when it is textually identical to an earlier one ("a==c
// or b==c → drop c").
func expandGender(raw string) string {
	for {
		start := strings.Index(raw, "{{GENDER:")
		if start < 0 {
			break
		}
		end := findMatchingClose(raw, start)
		if end < 0 {
			break
		}
		inner := raw[start+len("{{GENDER:") : end]
		parts := strings.Split(inner, "|")
		if len(parts) > 1 {
			parts = parts[1:] // drop the leading gender-selector argument (e.g. "$1")
		}
		options := dedupeOptions(parts)
		replacement := genderOpen + strings.Join(options, genderSep) + genderClose
		raw = raw[:start] + replacement + raw[end+2:]
	}
	return raw
}

// findMatchingClose returns the index of the first byte of the "}}"
// matching the "{{" found at start, or -1 if unterminated. Handles
// (the unlikely but possible) nested templates inside the gender
// selector argument.
func findMatchingClose(s string, start int) int {
	depth := 0
	for i := start; i < len(s)-1; i++ {
		switch {
		case s[i] == '{' && s[i+1] == '{':
			depth++
			i++
		case s[i] == '}' && s[i+1] == '}':
			depth--
			i++
			if depth == 0 {
				return i - 1
			}
		}
	}
	return -1
}

// dedupeOptions drops the final option when it duplicates an earlier
// option, per spec.md's "a==c or b==c → drop c" rule; the remaining
// options keep their order.
func dedupeOptions(parts []string) []string {
	if len(parts) < 2 {
		return parts
	}
	last := parts[len(parts)-1]
	for _, p := range parts[:len(parts)-1] {
		if p == last {
			return parts[:len(parts)-1]
		}
	}
	return parts
}

// finalizeGenderSentinels runs after EscapeRegex: it replaces each
// genderOpen...genderClose span (whose options are now individually
// escaped) with a real non-capturing alternation.
func finalizeGenderSentinels(escaped string) string {
	for {
		start := strings.Index(escaped, genderOpen)
		if start < 0 {
			return escaped
		}
		rest := escaped[start+len(genderOpen):]
		closeOffset := strings.Index(rest, genderClose)
		if closeOffset < 0 {
			return escaped
		}
		options := strings.Split(rest[:closeOffset], genderSep)
		alternation := "(?:" + strings.Join(options, "|") + ")"
		escaped = escaped[:start] + alternation + rest[closeOffset+len(genderClose):]
	}
}

// ExpandAndEscape applies GENDER expansion, then EscapeRegex, then
// reinstates the alternation syntax, keeping the two passes in
// lockstep so the sentinel runes never collide with escaped message
// content.
func ExpandAndEscape(raw string) string {
	expanded := expandGender(raw)
	escaped := util.EscapeRegex(expanded)
	return finalizeGenderSentinels(escaped)
}
