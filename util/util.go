// Package util provides pure helper functions shared across the
// KockaLogger pipeline: URL building, MediaWiki-flavored URL encoding,
// HTML entity decoding, Markdown escaping, regex escaping, and IP/CIDR
// classification.
package util

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// URL builds the base URL of a wiki given its subdomain, language code
// and domain. An empty or "en" language is omitted from the path.
func URL(wiki, lang, domain string) string {
	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(wiki)
	b.WriteByte('.')
	b.WriteString(domain)
	if lang != "" && lang != "en" {
		b.WriteByte('/')
		b.WriteString(lang)
	}
	return b.String()
}

// encodeReplacer restores the characters MediaWiki keeps unescaped
// in its own flavor of percent-encoding.
var encodeReplacer = strings.NewReplacer(
	"%20", "_",
	"%3A", ":",
	"%2F", "/",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
	"%7E", "~",
)

// decodeReplacer undoes the MediaWiki-specific substitutions before
// standard percent-decoding is applied.
var decodeReplacer = strings.NewReplacer(
	"_", "%20",
	":", "%3A",
	"/", "%2F",
)

// Encode percent-encodes s the way MediaWiki titles and query values
// are encoded: standard RFC 3986 escaping, followed by un-escaping of
// the handful of characters MediaWiki prefers to keep literal.
func Encode(s string) string {
	return encodeReplacer.Replace(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"))
}

// Decode is the inverse of Encode.
func Decode(s string) (string, error) {
	return url.QueryUnescape(decodeReplacer.Replace(s))
}

// regexMetacharacters is the byte class escaped by EscapeRegex, in the
// order KockaLogger's upstream uses it: -/\^$*+?.()|[]{}.
const regexMetacharacters = `-/\^$*+?.()|[]{}`

// EscapeRegex backslash-escapes every byte in s that is a regex
// metacharacter in the class above.
func EscapeRegex(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(regexMetacharacters, c) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

var markdownBreakers = []string{"http://", "https://", "discord.gg", "@"}

const zeroWidthSpace = "​"

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"~", "\\~",
	"|", "\\|",
	"`", "\\`",
	">", "\\>",
)

// EscapeMarkdown prepares a free-text string (a log summary or edit
// summary) for posting into a Markdown-rendering chat transport: it
// breaks up link-like and mention-like substrings with zero-width
// spaces so they do not auto-embed or ping, strips carriage returns
// and newlines, and escapes Markdown's own formatting tokens.
func EscapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	for _, breaker := range markdownBreakers {
		if !strings.Contains(s, breaker) {
			continue
		}
		mid := (len(breaker) + 1) / 2
		broken := breaker[:mid] + zeroWidthSpace + breaker[mid:]
		s = strings.ReplaceAll(s, breaker, broken)
	}
	return markdownEscaper.Replace(s)
}

var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#039;", "'",
	"&#10;", "\n",
)

// DecodeHTML decodes the small, fixed set of HTML entities that
// MediaWiki uses in log summaries and page titles.
func DecodeHTML(s string) string {
	return htmlEntities.Replace(s)
}

// ipRangeCap is the most permissive (largest range) CIDR prefix length
// accepted for each address family: /16 for IPv4, /19 for IPv6.
const (
	ipv4RangeCap = 16
	ipv6RangeCap = 19
)

// IsIP reports whether s parses as a single IPv4 or IPv6 address
// (no CIDR suffix).
func IsIP(s string) bool {
	if strings.Contains(s, "/") {
		return false
	}
	return net.ParseIP(s) != nil
}

// IsIPRange reports whether s is a CIDR range no broader than the
// family's cap (/16 for IPv4, /19 for IPv6). A narrower (more
// specific) prefix is accepted; a broader one is rejected as too
// coarse to be a legitimate per-user rangeblock.
func IsIPRange(s string) bool {
	ip, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return false
	}
	ones, bits := ipNet.Mask.Size()
	if ip.To4() != nil {
		return bits == 32 && ones >= ipv4RangeCap
	}
	return bits == 128 && ones >= ipv6RangeCap
}

// ParseQuery parses a MediaWiki index.php query string into a map of
// key to integer value, silently dropping keys whose value is not a
// base-10 integer (only "diff" and "oldid" are consumed downstream,
// but the map is built generically).
func ParseQuery(query string) (map[string]int, errors.E) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := make(map[string]int, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		n, err := strconv.Atoi(vals[0])
		if err != nil {
			continue
		}
		result[key] = n
	}
	return result, nil
}
