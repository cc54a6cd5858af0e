package parser

// Error codes surfaced as message.Message.ErrorCode, per spec.md §7's
// parse-error taxonomy.
const (
	ErrCodeRCError           = "rcerror"
	ErrCodeLogParseFail      = "logparsefail"
	ErrCodeLogActionUnknown  = "logactionunknown"
	ErrCodeAbuseFilterParse  = "afparseerr"
	ErrCodeMissingGroups     = "missinggroups"
	ErrCodeWikiFeaturesError = "wikifeatureserror"
	ErrCodeDiscussionsJSON   = "discussionsjson"
	ErrCodeDiscussionsURL    = "discussionsurl"
	ErrCodeDiscussionsURL2   = "discussionsurl2"
	ErrCodeDiscussionsType   = "discussionstype"
	ErrCodeNewUsersError     = "newuserserror"
	ErrCodeUnknownType       = "unknowntype"
)
