package parser

import (
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/message"
)

// blockFlagNames are the block options a "flags" capture is
// comma-split and matched against, per spec.md §4.5's block bullet.
var blockFlagNames = []string{
	"angry-autoblock",
	"anononly",
	"hiddenname",
	"noautoblock",
	"noemail",
	"nousertalk",
	"nocreate",
}

// extractFamily dispatches to the per-log-family field extractor
// described in spec.md §4.5, given the renumbered placeholder
// results from the matched MessageMap regex.
func (p *Parser) extractFamily(base *message.Message, logType, action string, result renumbered, key cache.Key) *message.Message {
	switch logType {
	case "block":
		return p.extractBlock(base, action, result, key)
	case "delete":
		return extractDelete(base, action, result)
	case "move":
		return extractMove(base, result)
	case "patrol":
		return extractPatrol(base, result)
	case "protect":
		return extractProtect(base, action, result)
	case "rights":
		return extractRights(base, result)
	case "upload":
		return extractUpload(base, result)
	case "useravatar":
		return extractUserAvatar(base, result)
	case "chatban":
		return extractChatban(base, action, result)
	default:
		return errorMessage(base.Raw, ErrCodeLogParseFail, "no extractor registered for log family "+logType)
	}
}

func (p *Parser) extractBlock(base *message.Message, action string, result renumbered, key cache.Key) *message.Message {
	base.Target = result.placeholder(1)
	if action != "unblock" {
		base.Expiry = result.placeholder(2)
		for _, raw := range splitTrimmed(result.placeholder(3), ",") {
			base.LogFlags = append(base.LogFlags, p.matchBlockFlag(key, raw))
		}
	}
	base.Reason = result.reason()
	return base
}

// matchBlockFlag matches one comma-split flag token against each
// block-log-flags-<FLAG> message cached for key's language, returning
// the canonical flag name or "unknown" if none match, per spec.md
// §4.5.
func (p *Parser) matchBlockFlag(key cache.Key, value string) string {
	for _, flag := range blockFlagNames {
		for _, re := range p.cache.Regexes(key, "block-log-flags-"+flag) {
			if re.MatchString(value) {
				return flag
			}
		}
	}
	return "unknown"
}

func extractDelete(base *message.Message, action string, result renumbered) *message.Message {
	switch action {
	case "revision", "event":
		base.Target = result.placeholder(3)
	default:
		base.Page = result.placeholder(1)
	}
	base.Reason = result.reason()
	return base
}

func extractMove(base *message.Message, result renumbered) *message.Message {
	base.Page = result.placeholder(1)
	base.Target = result.placeholder(2)
	base.Reason = result.reason()
	return base
}

func extractPatrol(base *message.Message, result renumbered) *message.Message {
	if revision, err := strconv.Atoi(result.placeholder(1)); err == nil {
		base.Revision = revision
	}
	base.Page = result.placeholder(2)
	return base
}

// leftToRightMark is U+200E, the marker MediaWiki wraps each
// feature=level(expiry) triple with in a protection-level blob.
const leftToRightMark = "‎"

// protectLevelRegex extracts one feature=level(expiry) triple from a
// protection-level blob, per spec.md §4.5's protect bullet.
var protectLevelRegex = regexp.MustCompile(
	leftToRightMark + `\[(edit|move|upload|create|comment|everything)=(\w+)\] \(([^` + leftToRightMark + `]+)\)`,
)

func extractProtect(base *message.Message, action string, result renumbered) *message.Message {
	base.Page = result.placeholder(1)
	if action == "move_prot" {
		base.Target = result.placeholder(2)
	}
	if action != "unprotect" {
		blob := result.reason()
		matches := protectLevelRegex.FindAllStringSubmatch(blob, -1)
		levels := make([]message.ProtectLevel, 0, len(matches))
		for _, m := range matches {
			levels = append(levels, message.ProtectLevel{Feature: m[1], Level: m[2], Expiry: m[3]})
		}
		base.ProtectSet = levels
		base.Reason = strings.TrimSpace(strings.TrimPrefix(protectLevelRegex.ReplaceAllString(blob, ""), ":"))
	} else {
		base.Reason = result.reason()
	}
	return base
}

// rewriteProtectSite implements the ProtectSite extension fallback
// (spec.md §4.5): when a site-wide protection summary doesn't carry
// the usual feature=level blob, rewrite its trailing
// " <duration>(: <reason>)?" into the expected
// " ‎[everything=restricted] (<duration>): <reason>" shape and
// let the caller retry the i18n match once.
func rewriteProtectSite(summary string) (string, bool) {
	if !strings.Contains(summary, ":Allpages") {
		return "", false
	}
	idx := strings.Index(summary, "]]")
	if idx < 0 {
		return "", false
	}
	prefix := summary[:idx+2]
	tail := summary[idx+2:]

	tailRegex := regexp.MustCompile(`^:\s*(.+?)(?:\s*:\s*(.*))?$`)
	m := tailRegex.FindStringSubmatch(tail)
	if m == nil {
		return "", false
	}
	duration, reason := m[1], m[2]

	rewritten := prefix + " " + leftToRightMark + "[everything=restricted] (" + duration + ")"
	if reason != "" {
		rewritten += ": " + reason
	}
	return rewritten, true
}

func extractRights(base *message.Message, result renumbered) *message.Message {
	base.Target = result.placeholder(1)
	base.OldGroups = splitTrimmed(result.placeholder(2), ",")
	base.NewGroups = splitTrimmed(result.placeholder(3), ",")
	base.Reason = result.reason()
	if len(base.OldGroups) == 0 && len(base.NewGroups) == 0 {
		return errorMessage(base.Raw, ErrCodeMissingGroups, "rights log entry with no old or new groups")
	}
	return base
}

func extractUpload(base *message.Message, result renumbered) *message.Message {
	base.File = result.placeholder(1)
	base.Reason = result.reason()
	return base
}

func extractUserAvatar(base *message.Message, result renumbered) *message.Message {
	base.Target = result.placeholder(1)
	return base
}

func extractChatban(base *message.Message, action string, result renumbered) *message.Message {
	base.Target = result.placeholder(1)
	if action != "chatbanremove" {
		base.Length = result.placeholder(2)
		base.Expires = result.placeholder(3)
	}
	base.Reason = result.reason()
	return base
}

// abuseFilterRegex matches the trailing AbuseFilter hit link that
// every abusefilter log summary ends with, per spec.md §4.5.
var abuseFilterRegex = regexp.MustCompile(`AbuseFilter/(\d+).*?/history/(\d+)/diff/prev/(\d+)`)

func (p *Parser) extractAbuseFilter(base *message.Message, summary string) *message.Message {
	m := abuseFilterRegex.FindStringSubmatch(summary)
	if m == nil {
		return errorMessage(base.Raw, ErrCodeAbuseFilterParse, "no AbuseFilter link found in summary")
	}
	base.FilterID = m[1]
	base.PrevDiff, _ = strconv.Atoi(m[3])
	base.Reason = summary
	return base
}

// wikiFeaturesRegex matches the wikifeatures extension-option summary
// shape, per spec.md §4.5.
var wikiFeaturesRegex = regexp.MustCompile(`^wikifeatures\s?[:：]\s?set extension option\s?[:：]\s?(\w+) = (true|false)$`)

func (p *Parser) extractWikiFeatures(base *message.Message, summary string) *message.Message {
	m := wikiFeaturesRegex.FindStringSubmatch(summary)
	if m == nil {
		return errorMessage(base.Raw, ErrCodeWikiFeaturesError, "summary does not match the wikifeatures grammar")
	}
	base.Feature = m[1]
	base.Value = m[2] == "true"
	return base
}
