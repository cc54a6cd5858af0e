package parser

import "regexp"

// EditLineRegex matches a reassembled RC EDIT line per spec.md §4.4.
// Named groups: page, flags, wiki, domain, lang, query, user, sign,
// amount, summary. Exported so the LineDecoder can trial-match it
// when deciding whether a reassembled buffer needs the "insert one
// space" retry (spec.md §4.4's reassembly rule).
var EditLineRegex = regexp.MustCompile(
	"\x0314\\[\\[\x0307(?P<page>[^\x03]+)\x0314\\]\\]\x034 (?P<flags>[^\x03]*)\x0310 " +
		"\x0302https?://(?P<wiki>[^.]+)\\.(?P<domain>[a-z0-9.-]+)/(?:(?P<lang>[a-z-]+)/)?index\\.php\\?(?P<query>[^\x03]*)\x03 " +
		"\x035\\*\x03 " +
		"\x0303(?P<user>[^\x03]+)\x03 " +
		"\x035\\*\x03 " +
		"(?P<sign>\x02?[+-]\\d+\x02?) " +
		"\x0310(?P<summary>.*)$",
)

// LogLineRegex matches a reassembled RC LOG line per spec.md §4.4.
// Named groups: ns, logtype, action, url, user, summary. Exported for
// the same reassembly-trial reason as EditLineRegex.
var LogLineRegex = regexp.MustCompile(
	"\x0314\\[\\[\x0307(?P<ns>[^:]+):Log/(?P<logtype>[^\x03]+)\x0314\\]\\]\x034 (?P<action>[^\x03]*)\x0310 " +
		"\x0302(?P<url>[^\x03]*)\x03 " +
		"\x035\\*\x03 " +
		"\x0303(?P<user>[^\x03]+)\x03 " +
		"\x035\\*\x03\\s{1,2}" +
		"\x0310(?P<summary>.*)$",
)

// IsCanonicalRCLine reports whether line begins a new RC fragment,
// per spec.md §4.4's reassembly rule: a canonical line starts with
// \x0314. Exported so LineDecoder can detect fragment boundaries
// without duplicating the byte check.
func IsCanonicalRCLine(line string) bool {
	return len(line) > 0 && line[0] == '\x03' && len(line) > 2 && line[1] == '1' && line[2] == '4'
}

// logURLRegex extracts wiki/domain/lang out of a LOG line's optional
// URL field, when present, using the same shape as the edit URL.
// LOG lines don't carry a dedicated language capture (spec.md §4.4),
// so wiki context is recovered from this URL when the feed includes
// one, falling back to the default domain/English otherwise.
var logURLRegex = regexp.MustCompile(`https?://(?P<wiki>[^.]+)\.(?P<domain>[a-z0-9.-]+)/(?:(?P<lang>[a-z-]+)/)?`)

func extractWikiFromURL(url string) (wiki, domain, lang string, ok bool) {
	match := logURLRegex.FindStringSubmatch(url)
	if match == nil {
		return "", "", "", false
	}
	groups := namedGroups(logURLRegex.SubexpNames(), match)
	return groups["wiki"], groups["domain"], groups["lang"], true
}

// signedAmount parses the captured (\x02?[+-]\d+\x02?) diff token,
// stripping the optional STX wrapping bytes.
func signedAmount(s string) string {
	start, end := 0, len(s)
	if start < end && s[start] == '\x02' {
		start++
	}
	if end > start && s[end-1] == '\x02' {
		end--
	}
	return s[start:end]
}
