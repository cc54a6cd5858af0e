package parser

import (
	"regexp"

	"gitlab.com/kockalogger/kockalogger/message"
)

// newusersLineRegex matches the compact single-line newusers grammar
// (spec.md §4.4): a colored user name, a colored wiki URL, and the
// literal terminating token "newusers".
var newusersLineRegex = regexp.MustCompile(
	`^\x0303(?P<user>[^\x03]+)\x03 \x0302(?P<url>[^\x03]+)\x03 newusers$`,
)

func (p *Parser) parseNewusers(raw string) *message.Message {
	match := newusersLineRegex.FindStringSubmatch(raw)
	if match == nil {
		return errorMessage(raw, ErrCodeNewUsersError, "line does not end with the newusers token")
	}
	g := namedGroups(newusersLineRegex.SubexpNames(), match)

	wiki, domain, lang, _ := extractWikiFromURL(g["url"])
	if domain == "" {
		domain = message.DefaultDomain
	}

	return NewUsersMessage(g["user"], wiki, lang, domain, raw)
}

// NewUsersMessage builds the newusers log Message directly from its
// already-known fields, for callers that have a user/wiki/language/
// domain tuple from somewhere other than the IRC line grammar (the
// EnrichmentCache expiry debounce, per spec.md §4.6/§3's
// "newusers:{user}:{wiki}:{lang}:{domain}" key, re-enters the
// pipeline this way instead of being serialized back into a fake IRC
// line and re-parsed). raw is carried through only for logging.
func NewUsersMessage(user, wiki, language, domain, raw string) *message.Message {
	if domain == "" {
		domain = message.DefaultDomain
	}
	return &message.Message{
		Type:     message.TypeLog,
		Wiki:     wiki,
		Domain:   domain,
		Language: message.NormalizeLanguage(language),
		User:     user,
		Raw:      raw,
		Log:      "newusers",
		Action:   "newusers",
	}
}
