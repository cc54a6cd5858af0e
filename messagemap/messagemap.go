// Package messagemap maps the ~20 MediaWiki system messages recognized
// by the log parser to transform functions: given a raw, localized
// message string containing $1..$N placeholders and IRC color markers,
// produce the source of a regular expression that captures each
// placeholder positionally.
package messagemap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/kockalogger/kockalogger/util"
)

// ErrUnknownMessage is returned when Transform is asked to build a
// regex for a message name it does not recognize.
var ErrUnknownMessage = errors.Base("unknown message name")

// colorWrap wraps a wikilink capture in the optional IRC color markers
// (\x0302 before it; \x0310 or a bare \x03 after it) that Fandom's feed
// sometimes emits around it.
const colorWrap = "(?:\x0302)?%s(?:\x03(?:10)?)?"

// trailingReason is appended to messages whose tail is a free-text
// reason, separated from the templated part by ":" or the fullwidth
// colon "：".
const trailingReason = `(?:\s?[:：]\s?(.*))?`

// placeholder describes the capture pattern substituted for one $N
// occurrence of a message template.
type placeholder struct {
	index     int    // the N in $N
	pattern   string // the capture regex substituted in its place
	wrap      bool   // wrap the substituted pattern with colorWrap
	capturing bool   // whether pattern contains a capturing group
}

// spec is the full transform recipe for one message name.
type spec struct {
	placeholders   []placeholder
	trailingReason bool
	terminator     string // used instead of trailingReason when the message has its own terminator
}

// Transform builds the source of a regular expression matching raw,
// localized instances of the message named name, given the raw
// template string (with literal $1, $2, ... placeholders) as found in
// allmessages.
func Transform(name, raw string) (string, errors.E) {
	s, ok := specs[name]
	if !ok {
		return "", errors.WithDetails(ErrUnknownMessage, "name", name)
	}
	escaped := util.EscapeRegex(raw)
	for _, p := range s.placeholders {
		token := `\$` + strconv.Itoa(p.index)
		replacement := p.pattern
		if p.wrap {
			replacement = fmt.Sprintf(colorWrap, p.pattern)
		}
		escaped = strings.ReplaceAll(escaped, token, replacement)
	}
	var b strings.Builder
	b.WriteByte('^')
	b.WriteString(escaped)
	if s.terminator != "" {
		b.WriteString(s.terminator)
	} else if s.trailingReason {
		b.WriteString(trailingReason)
	}
	b.WriteByte('$')
	return b.String(), nil
}

// Compile is a convenience wrapper combining Transform with
// regexp.Compile, using the Unicode-aware (?s) flag off since log
// summaries are single-line by construction.
func Compile(name, raw string) (*regexp.Regexp, errors.E) {
	source, err := Transform(name, raw)
	if err != nil {
		return nil, err
	}
	re, compileErr := regexp.Compile(source)
	if compileErr != nil {
		return nil, errors.WithDetails(errors.WithStack(compileErr), "name", name, "raw", raw)
	}
	return re, nil
}

// Known reports whether name is recognized by the message map.
func Known(name string) bool {
	_, ok := specs[name]
	return ok
}

// Names returns every recognized message name, used by the Loader to
// build the ammessages query parameter.
func Names() []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	return names
}

// CapturingPlaceholders returns the set of $N indices that produce a
// capturing group in name's compiled regex. The parser scans a
// matched template's literal text for $N occurrences in textual
// order, keeps only the ones in this set, and uses that order to
// renumber the regex's capture groups back against the semantic
// placeholder positions — this is what lets a translation reorder
// $1/$2 in its sentence and still parse correctly (spec.md §9
// "Positional renumbering").
func CapturingPlaceholders(name string) map[int]bool {
	s := specs[name]
	set := make(map[int]bool, len(s.placeholders))
	for _, p := range s.placeholders {
		if p.capturing {
			set[p.index] = true
		}
	}
	return set
}

// HasTrailingReason reports whether name's transform appends the
// generic trailing free-text reason group.
func HasTrailingReason(name string) bool {
	return specs[name].trailingReason
}

// wikilinkBody matches the contents of a [[...]] wikilink, captured
// without the brackets.
const wikilinkBody = `\[\[([^\]]+)\]\]`

var specs = map[string]spec{
	"blocklogentry": {
		placeholders: []placeholder{
			{1, `[^:]+:([^\x03]+)`, true, true},
			{2, `(.*?)`, false, true},
			{3, `(?:[(（]([^)）]*)[)）])?`, false, true},
		},
		trailingReason: true,
	},
	"unblocklogentry": {
		placeholders: []placeholder{
			{1, `[^:]+:([^\x03]+)`, true, true},
		},
		trailingReason: true,
	},
	"reblock-logentry": {
		placeholders: []placeholder{
			{1, `[^:]+:([^\x03]+)`, true, true},
			{2, `(.*?)`, false, true},
			{3, `(?:[(（]([^)）]*)[)）])?`, false, true},
		},
		trailingReason: true,
	},
	"protectedarticle": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"modifiedarticleprotection": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"unprotectedarticle": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"movedarticleprotection": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
			{2, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"rightslogentry": {
		placeholders: []placeholder{
			{1, `[^:]+:([^\x03]+)`, false, true},
			{2, `(.*?)`, false, true},
			{3, `(.*?)`, false, true},
		},
		trailingReason: true,
	},
	"deletedarticle": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"undeletedarticle": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"logentry-delete-revision-legacy": {
		placeholders: []placeholder{
			{1, `.*?`, false, false},
			{3, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"logentry-delete-event-legacy": {
		placeholders: []placeholder{
			{1, `.*?`, false, false},
			{3, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"uploadedimage": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"overwroteimage": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"1movedto2": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
			{2, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"1movedto2_redir": {
		placeholders: []placeholder{
			{1, wikilinkBody, true, true},
			{2, wikilinkBody, true, true},
		},
		trailingReason: true,
	},
	"patrol-log-line": {
		placeholders: []placeholder{
			{1, `(\d+)`, false, true},
			{2, wikilinkBody, true, true},
			{3, `.*?`, false, false},
		},
		trailingReason: true,
	},
	"chat-chatbanadd-log-entry": {
		placeholders: []placeholder{
			{1, `([^\x03]+)`, false, true},
			{2, `(.*?)`, false, true},
			{3, `(.*?)`, false, true},
		},
		trailingReason: true,
	},
	"chat-chatbanadd-change-log-entry": {
		placeholders: []placeholder{
			{1, `([^\x03]+)`, false, true},
			{2, `(.*?)`, false, true},
			{3, `(.*?)`, false, true},
		},
		trailingReason: true,
	},
	"chat-chatbanremove-log-entry": {
		placeholders: []placeholder{
			{1, `([^\x03]+)`, false, true},
		},
		trailingReason: true,
	},
	"blog-avatar-removed-log": {
		placeholders: []placeholder{
			{1, `([^\x03]+)`, false, true},
		},
		trailingReason: true,
	},
	"autosumm-replace": {
		placeholders: []placeholder{
			{1, `(.*)`, false, true},
		},
	},
}

// blockFlagNames lists the block-log-flags-<flag> messages the Loader
// fetches alongside the table above. They carry no placeholders: each
// is just the localized label for one block option, matched literally
// against the comma-split flag list in the block family extractor.
var blockFlagNames = []string{
	"angry-autoblock",
	"anononly",
	"hiddenname",
	"noautoblock",
	"noemail",
	"nousertalk",
	"nocreate",
}

func init() {
	for _, flag := range blockFlagNames {
		specs["block-log-flags-"+flag] = spec{}
	}
}
