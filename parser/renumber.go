package parser

import (
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/kockalogger/kockalogger/messagemap"
)

// genderSelectorRegex finds the selector argument of a {{GENDER:$N|...}}
// construct so it can be excluded from the renumbering scan: the
// selector drives which alternative is chosen, it is never itself
// captured, per spec.md §9 "Positional renumbering".
var genderSelectorRegex = regexp.MustCompile(`\{\{GENDER:\$(\d+)`)

// placeholderRegex finds every $N occurrence in a raw template.
var placeholderRegex = regexp.MustCompile(`\$(\d+)`)

// renumbered holds the result of matching one message name's regex
// against a summary: the placeholder values in $N order (ret[0] is
// $1, ret[1] is $2, ...) plus any trailing captures (the reason) that
// follow the highest named placeholder.
type renumbered struct {
	ret  []string
	maxN int
}

// reason returns the first trailing capture beyond the named
// placeholders, if any — the generic trailing-reason group every
// MessageMap transform appends.
func (r renumbered) reason() string {
	if len(r.ret) > r.maxN {
		return r.ret[r.maxN]
	}
	return ""
}

// placeholder returns ret[n-1] for the $n th placeholder, or "" if
// absent or out of range.
func (r renumbered) placeholder(n int) string {
	if n <= 0 || n > r.maxN || n > len(r.ret) {
		return ""
	}
	return r.ret[n-1]
}

// renumber rebuilds the positional result array described in
// spec.md §4.5: given the matching regex's capture groups (groups[0]
// is the full match) and the raw template text that regex was
// compiled from, walk the template's $N occurrences in textual order
// (skipping the GENDER selector argument and any $N with no
// capturing group for this message name), and assign each matched
// capture to its semantic $N slot. Captures left over after the
// highest named $N (the trailing reason) are appended unchanged.
func renumber(name, template string, groups []string) renumbered {
	excludedGenderSelector := map[int]bool{}
	for _, m := range genderSelectorRegex.FindAllStringSubmatchIndex(template, -1) {
		excludedGenderSelector[m[2]-1] = true // index of the selector's "$"
	}

	capturing := messagemap.CapturingPlaceholders(name)

	var order []int
	for _, m := range placeholderRegex.FindAllStringSubmatchIndex(template, -1) {
		if excludedGenderSelector[m[0]] {
			continue
		}
		n, err := strconv.Atoi(template[m[2]:m[3]])
		if err != nil {
			continue
		}
		if !capturing[n] {
			continue
		}
		order = append(order, n)
	}

	maxN := 0
	for _, n := range order {
		if n > maxN {
			maxN = n
		}
	}

	ret := make([]string, maxN)
	for i, n := range order {
		groupIdx := i + 1 // groups[0] is the full match
		if groupIdx < len(groups) {
			ret[n-1] = groups[groupIdx]
		}
	}
	for i := len(order) + 1; i < len(groups); i++ {
		ret = append(ret, groups[i])
	}

	return renumbered{ret: ret, maxN: maxN}
}

// splitTrimmed splits s on sep and trims whitespace from each part,
// dropping empty results — used for the comma-separated block-flag
// and rights-group lists.
func splitTrimmed(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
