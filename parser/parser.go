package parser

import (
	"strconv"

	"github.com/rs/zerolog"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/message"
	"gitlab.com/kockalogger/kockalogger/util"
)

// messageFamilyTable maps a log family (the <logtype> captured out of
// the "ns:Log/<logtype>" wikilink) and an action to the MediaWiki
// message name whose compiled regex extracts that action's fields,
// per spec.md §4.2/§4.5.
//
// restore aliases to 1movedto2 for the move family: spec.md §9's
// Open Question notes this alias is present in one upstream version
// and not another; this implementation keeps it, matching the source.
var messageFamilyTable = map[string]map[string]string{
	"block": {
		"block":   "blocklogentry",
		"reblock": "reblock-logentry",
		"unblock": "unblocklogentry",
	},
	"delete": {
		"delete":   "deletedarticle",
		"restore":  "undeletedarticle",
		"revision": "logentry-delete-revision-legacy",
		"event":    "logentry-delete-event-legacy",
	},
	"move": {
		"move":       "1movedto2",
		"move_redir": "1movedto2_redir",
		"restore":    "1movedto2",
	},
	"protect": {
		"protect":   "protectedarticle",
		"modify":    "modifiedarticleprotection",
		"unprotect": "unprotectedarticle",
		"move_prot": "movedarticleprotection",
	},
	"rights": {
		"rights": "rightslogentry",
	},
	"upload": {
		"upload":    "uploadedimage",
		"overwrite": "overwroteimage",
	},
	"patrol": {
		"patrol": "patrol-log-line",
	},
	"chatban": {
		"chatbanadd":    "chat-chatbanadd-log-entry",
		"chatbanchange": "chat-chatbanadd-change-log-entry",
		"chatbanremove": "chat-chatbanremove-log-entry",
	},
	"useravatar": {
		"avatar_rem": "blog-avatar-removed-log",
	},
}

// Parser converts reassembled lines into typed Messages, consulting
// the message cache for log-family field extraction. It holds no
// per-call state: Parse is safe to call concurrently from multiple
// LineDecoders, per spec.md §5's "parsers ... are each serial with
// respect to themselves" (serial per caller, concurrent across
// callers).
type Parser struct {
	cache  *cache.Cache
	logger zerolog.Logger
}

// New builds a Parser around the shared message Cache.
func New(c *cache.Cache, logger zerolog.Logger) *Parser {
	return &Parser{cache: c, logger: logger}
}

// Parse implements spec.md §4.5's contract: parse(raw, channel) ->
// Message. It never returns an error itself — parse failures are
// surfaced as a TypeError Message so they can flow through the same
// dispatch path as successful ones (spec.md §7).
func (p *Parser) Parse(raw RawMessage) *message.Message {
	switch raw.Channel {
	case ChannelRC:
		return p.parseRC(raw.Raw)
	case ChannelDiscussions:
		return p.parseDiscussions(raw.Raw)
	case ChannelNewusers:
		return p.parseNewusers(raw.Raw)
	default:
		return errorMessage(raw.Raw, ErrCodeUnknownType, "unrecognized channel")
	}
}

func errorMessage(raw, code, msg string) *message.Message {
	return &message.Message{
		Type:         message.TypeError,
		Raw:          raw,
		ErrorCode:    code,
		ErrorMessage: msg,
	}
}

// locatedErrorMessage is errorMessage plus the (wiki, domain,
// language) tuple the Dispatcher needs to target the RetryFetcher at,
// per spec.md §4.7's "Parse-failure feedback loop".
func locatedErrorMessage(base *message.Message, code, msg string) *message.Message {
	m := errorMessage(base.Raw, code, msg)
	m.Wiki = base.Wiki
	m.Domain = base.Domain
	m.Language = base.Language
	return m
}

// namedGroups extracts re's named capture groups from a successful
// FindStringSubmatch result into a map, skipping the unnamed ones.
func namedGroups(names []string, match []string) map[string]string {
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name == "" || i >= len(match) {
			continue
		}
		groups[name] = match[i]
	}
	return groups
}

func (p *Parser) parseRC(raw string) *message.Message {
	if match := EditLineRegex.FindStringSubmatch(raw); match != nil {
		return p.parseEdit(namedGroups(EditLineRegex.SubexpNames(), match), raw)
	}
	if match := LogLineRegex.FindStringSubmatch(raw); match != nil {
		return p.parseLog(namedGroups(LogLineRegex.SubexpNames(), match), raw)
	}
	return errorMessage(raw, ErrCodeRCError, "line matches neither the edit nor the log grammar")
}

func (p *Parser) parseEdit(g map[string]string, raw string) *message.Message {
	params, errE := util.ParseQuery(g["query"])
	if errE != nil {
		return errorMessage(raw, ErrCodeRCError, errE.Error())
	}

	diff, err := strconv.Atoi(signedAmount(g["sign"]))
	if err != nil {
		return errorMessage(raw, ErrCodeRCError, "unparseable diff amount")
	}

	flags := make([]message.EditFlag, 0, len(g["flags"]))
	for _, c := range g["flags"] {
		flags = append(flags, message.EditFlag(c))
	}

	domain := g["domain"]
	if domain == "" {
		domain = message.DefaultDomain
	}

	return &message.Message{
		Type:     message.TypeEdit,
		Wiki:     g["wiki"],
		Domain:   domain,
		Language: message.NormalizeLanguage(g["lang"]),
		User:     g["user"],
		Raw:      raw,
		Page:     g["page"],
		Flags:    flags,
		Params:   params,
		Diff:     diff,
		Summary:  g["summary"],
	}
}

func (p *Parser) parseLog(g map[string]string, raw string) *message.Message {
	logType := g["logtype"]
	action := g["action"]
	user := g["user"]
	summary := g["summary"]

	wiki, domain, lang, _ := extractWikiFromURL(g["url"])
	if domain == "" {
		domain = message.DefaultDomain
	}

	base := &message.Message{
		Type:     message.TypeLog,
		Wiki:     wiki,
		Language: message.NormalizeLanguage(lang),
		Domain:   domain,
		User:     user,
		Raw:      raw,
		Log:      logType,
		Action:   action,
	}

	switch logType {
	case "0":
		// Fandom's own logfuckup bucket: mark for threadlog
		// enrichment rather than extracting fields here, per
		// spec.md §9's note that this is one cause (an empty log
		// URL on a closed thread) observed two ways.
		return base
	case "abusefilter":
		return p.extractAbuseFilter(base, summary)
	case "wikifeatures":
		return p.extractWikiFeatures(base, summary)
	}

	family, ok := messageFamilyTable[logType]
	if !ok {
		return errorMessage(raw, ErrCodeLogActionUnknown, "unrecognized log family "+logType)
	}
	name, ok := family[action]
	if !ok {
		return errorMessage(raw, ErrCodeLogActionUnknown, "unrecognized action "+action+" for log "+logType)
	}

	key := cache.Key{Language: base.Language, Wiki: base.Wiki, Domain: base.Domain}
	template, groups, ok := p.matchMessage(key, name, summary)
	if !ok && logType == "protect" {
		// ProtectSite fallback: retry once with the summary
		// rewritten into the expected protection-level shape,
		// per spec.md §4.5.
		if rewritten, rewroteOK := rewriteProtectSite(summary); rewroteOK {
			template, groups, ok = p.matchMessage(key, name, rewritten)
		}
	}
	if !ok {
		return locatedErrorMessage(base, ErrCodeLogParseFail, "no cached regex matched for "+name)
	}

	result := renumber(name, template, groups)
	return p.extractFamily(base, logType, action, result, key)
}

// matchMessage tries the per-wiki override regex first, then the
// language-wide list, per spec.md §4.5's "[i18n2[key][name] if
// present] ++ i18n[name]" ordering.
func (p *Parser) matchMessage(key cache.Key, name, summary string) (template string, groups []string, ok bool) {
	if customRe, customTemplate, found := p.cache.MatchCustom(key, name, summary); found {
		return customTemplate, customRe.FindStringSubmatch(summary), true
	}
	if wideRe, wideTemplate, found := p.cache.MatchLanguageWide(name, summary); found {
		return wideTemplate, wideRe.FindStringSubmatch(summary), true
	}
	return "", nil, false
}
