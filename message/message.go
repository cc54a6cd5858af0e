// Package message defines the Message type produced by the parser:
// a tagged union over edit, log, discussions, and error events.
package message

// Type identifies which branch of the Message union is populated.
type Type string

const (
	// TypeEdit is a recent-changes edit event.
	TypeEdit Type = "edit"
	// TypeLog is a recent-changes log event (block, delete, move, ...).
	TypeLog Type = "log"
	// TypeDiscussions is a Discussions/article-comment/message-wall event.
	TypeDiscussions Type = "discussions"
	// TypeError is a parse or fetch failure surfaced as a Message.
	TypeError Type = "error"
)

// EditFlag is one character of the RC edit flag set: N (new page),
// B (bot), M (minor), ! (unpatrolled).
type EditFlag byte

const (
	FlagNew         EditFlag = 'N'
	FlagBot         EditFlag = 'B'
	FlagMinor       EditFlag = 'M'
	FlagUnpatrolled EditFlag = '!'
)

// ProtectLevel is one feature=level(expiry) triple parsed out of a
// protect log summary.
type ProtectLevel struct {
	Feature string
	Level   string
	Expiry  string
}

// Message is the decoded, enriched representation of a single feed
// event. Only the fields relevant to Type are meaningfully populated;
// the zero value of the others is left in place rather than using a
// pointer-per-field union, matching the source feed's "mostly flat
// struct with a type tag" shape.
type Message struct {
	Type Type

	// Common fields, populated whenever Type != TypeError.
	Wiki     string
	Domain   string
	Language string
	User     string
	Raw      string

	// Edit fields.
	Page    string
	Flags   []EditFlag
	Params  map[string]int
	Diff    int
	Summary string

	// PageTitle is the human-readable title resolved from Params's
	// "diff" or "oldid" revision id via the pagetitle enrichment
	// property, cached under "{wiki}-{revid}". Empty until a module
	// requests it.
	PageTitle string

	// Log fields.
	Log    string
	Action string

	Target     string
	Expiry     string
	LogFlags   []string
	Reason     string
	OldGroups  []string
	NewGroups  []string
	File       string
	Revision   int
	Feature    string
	Value      bool
	Length     string
	Expires    string
	ProtectSet []ProtectLevel

	ThreadID  string
	Namespace string

	// AbuseFilter fields.
	FilterID string
	PrevDiff int

	// Discussions fields.
	Platform string
	DType    string
	Title    string
	Snippet  string
	Size     int
	Category string
	URL      string
	Thread   string
	Reply    string

	// Error fields.
	ErrorCode    string
	ErrorMessage string
	Details      map[string]string
}

// NormalizeLanguage replaces an empty language capture with "en", per
// the invariant that Message.Language is never empty for non-error
// messages.
func NormalizeLanguage(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}

// DefaultDomain is the domain assumed when none is present in the
// decoded URL.
const DefaultDomain = "fandom.com"
