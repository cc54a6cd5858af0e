package parser_test

import (
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/message"
	"gitlab.com/kockalogger/kockalogger/messagemap"
	"gitlab.com/kockalogger/kockalogger/parser"
)

// buildCache compiles one raw template per message name into a fresh
// Cache, mirroring what the Loader would have built, so tests don't
// need a live MediaWiki instance.
func buildCache(t *testing.T, templates map[string]string) *cache.Cache {
	t.Helper()
	messageCache := map[string][]string{}
	i18n := map[string][]*regexp.Regexp{}
	for name, raw := range templates {
		re, errE := messagemap.Compile(name, raw)
		require.NoError(t, errE)
		messageCache[name] = []string{raw}
		i18n[name] = []*regexp.Regexp{re}
	}
	c := cache.New()
	c.PutLanguageWide(messageCache, i18n)
	return c
}

func TestParseEditLine(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	line := "\x0314[[\x0307Main Page\x0314]]\x034 \x0310 " +
		"\x0302https://community.fandom.com/index.php?diff=2&oldid=1\x03 " +
		"\x035*\x03 \x0303Alice\x03 \x035*\x03 \x02+42\x02 \x0310fixed a typo"

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: line})
	require.Equal(t, message.TypeEdit, msg.Type)
	assert.Equal(t, "community", msg.Wiki)
	assert.Equal(t, "fandom.com", msg.Domain)
	assert.Equal(t, "en", msg.Language)
	assert.Equal(t, "Alice", msg.User)
	assert.Equal(t, "Main Page", msg.Page)
	assert.Equal(t, 42, msg.Diff)
	assert.Equal(t, "fixed a typo", msg.Summary)
	assert.Equal(t, 2, msg.Params["diff"])
	assert.Equal(t, 1, msg.Params["oldid"])
}

func TestParseEditLineNegativeDiff(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	line := "\x0314[[\x0307Main Page\x0314]]\x034 \x0310 " +
		"\x0302https://community.fandom.com/index.php?diff=2\x03 " +
		"\x035*\x03 \x0303Bob\x03 \x035*\x03 \x02-5\x02 \x0310blanked"

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: line})
	require.Equal(t, message.TypeEdit, msg.Type)
	assert.Equal(t, -5, msg.Diff)
}

func TestParseLineNeitherEditNorLog(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: "garbage"})
	require.Equal(t, message.TypeError, msg.Type)
	assert.Equal(t, parser.ErrCodeRCError, msg.ErrorCode)
}

func logLine(ns, logtype, action, url, user, summary string) string {
	return "\x0314[[\x0307" + ns + ":Log/" + logtype + "\x0314]]\x034 " + action + "\x0310 " +
		"\x0302" + url + "\x03 \x035*\x03 \x0303" + user + "\x03 \x035*\x03 \x0310" + summary
}

func TestParseDeleteLog(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"deletedarticle": "deleted page $1"})
	p := parser.New(c, zerolog.Nop())

	summary := "deleted page \x0302[[Some Page]]\x03: not needed"
	raw := logLine("Special", "delete", "delete", "https://community.fandom.com/index.php?title=Special:Log/delete", "Carol", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type)
	assert.Equal(t, "delete", msg.Log)
	assert.Equal(t, "delete", msg.Action)
	assert.Equal(t, "Some Page", msg.Page)
	assert.Equal(t, "not needed", msg.Reason)
}

func TestParseDeleteRevisionUsesThirdPlaceholder(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"logentry-delete-revision-legacy": "changed visibility of $1 revisions on page $3"})
	p := parser.New(c, zerolog.Nop())

	summary := "changed visibility of revisions revisions on page \x0302[[Talk:Some Page]]\x03: because"
	raw := logLine("Special", "delete", "revision", "", "Dana", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "Talk:Some Page", msg.Target)
	assert.Equal(t, "because", msg.Reason)
}

func TestParseMoveLog(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"1movedto2": "moved $1 to $2"})
	p := parser.New(c, zerolog.Nop())

	summary := "moved \x0302[[Old Name]]\x03 to \x0302[[New Name]]\x03: rename"
	raw := logLine("Special", "move", "move", "", "Eve", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "Old Name", msg.Page)
	assert.Equal(t, "New Name", msg.Target)
	assert.Equal(t, "rename", msg.Reason)
}

func TestParseBlockLogWithFlags(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{
		"blocklogentry":             "blocked $1 with an expiry time of $2 $3",
		"block-log-flags-anononly":  "anonymous users only",
		"block-log-flags-nocreate":  "account creation disabled",
	})
	p := parser.New(c, zerolog.Nop())

	summary := "blocked \x0302User:Spammer\x03 with an expiry time of indefinite (anonymous users only, account creation disabled): abuse"
	raw := logLine("Special", "block", "block", "", "Frank", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "Spammer", msg.Target)
	assert.Equal(t, "indefinite", msg.Expiry)
	assert.ElementsMatch(t, []string{"anononly", "nocreate"}, msg.LogFlags)
	assert.Equal(t, "abuse", msg.Reason)
}

func TestParseUnblockLogSkipsExpiryAndFlags(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"unblocklogentry": "unblocked $1"})
	p := parser.New(c, zerolog.Nop())

	summary := "unblocked \x0302User:Reformed\x03: good behavior"
	raw := logLine("Special", "block", "unblock", "", "Gina", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "Reformed", msg.Target)
	assert.Empty(t, msg.Expiry)
	assert.Empty(t, msg.LogFlags)
	assert.Equal(t, "good behavior", msg.Reason)
}

func TestParseRightsLogMissingGroupsIsError(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"rightslogentry": "changed group membership for $1 from $2 to $3"})
	p := parser.New(c, zerolog.Nop())

	summary := "changed group membership for User:Nobody from  to : no real change"
	raw := logLine("Special", "rights", "rights", "", "Hank", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeError, msg.Type)
	assert.Equal(t, parser.ErrCodeMissingGroups, msg.ErrorCode)
}

func TestParseRightsLogPopulatesGroups(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"rightslogentry": "changed group membership for $1 from $2 to $3"})
	p := parser.New(c, zerolog.Nop())

	summary := "changed group membership for User:Promoted from autoconfirmed to autoconfirmed, sysop: trusted"
	raw := logLine("Special", "rights", "rights", "", "Ivan", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "Promoted", msg.Target)
	assert.Equal(t, []string{"autoconfirmed"}, msg.OldGroups)
	assert.Equal(t, []string{"autoconfirmed", "sysop"}, msg.NewGroups)
	assert.Equal(t, "trusted", msg.Reason)
}

func TestParseProtectLogParsesLevels(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"protectedarticle": "protected $1"})
	p := parser.New(c, zerolog.Nop())

	summary := "protected \x0302[[Main Page]]\x03: ‎[edit=sysop] (indefinite)‎[move=sysop] (indefinite): vandalism"
	raw := logLine("Special", "protect", "protect", "", "Jill", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "Main Page", msg.Page)
	require.Len(t, msg.ProtectSet, 2)
	assert.Equal(t, "edit", msg.ProtectSet[0].Feature)
	assert.Equal(t, "sysop", msg.ProtectSet[0].Level)
	assert.Equal(t, "indefinite", msg.ProtectSet[0].Expiry)
	assert.Equal(t, "move", msg.ProtectSet[1].Feature)
}

func TestParsePatrolLog(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"patrol-log-line": "marked revision $1 of page $2 patrolled"})
	p := parser.New(c, zerolog.Nop())

	summary := "marked revision 12345 of page \x0302[[Some Page]]\x03 patrolled"
	raw := logLine("Special", "patrol", "patrol", "", "Kim", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, 12345, msg.Revision)
	assert.Equal(t, "Some Page", msg.Page)
}

func TestParseAbuseFilterLog(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	summary := "hit AbuseFilter/7: https://community.fandom.com/wiki/Special:AbuseFilter/history/7/diff/prev/99"
	raw := logLine("Special", "abusefilter", "hit", "", "Liam", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "7", msg.FilterID)
	assert.Equal(t, 99, msg.PrevDiff)
}

func TestParseWikiFeaturesLog(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	summary := "wikifeatures: set extension option: forum = true"
	raw := logLine("Special", "wikifeatures", "", "", "Mona", summary)

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "forum", msg.Feature)
	assert.True(t, msg.Value)
}

func TestParseZeroBucketIsPassthrough(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	raw := logLine("Special", "0", "", "", "Nora", "anything")
	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "0", msg.Log)
}

func TestParseUnknownLogFamily(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	raw := logLine("Special", "mysteryfamily", "doit", "", "Oscar", "anything")
	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeError, msg.Type)
	assert.Equal(t, parser.ErrCodeLogActionUnknown, msg.ErrorCode)
}

func TestParseLogNoMatchingRegexIsError(t *testing.T) {
	t.Parallel()
	c := buildCache(t, map[string]string{"deletedarticle": "deleted page $1"})
	p := parser.New(c, zerolog.Nop())

	raw := logLine("Special", "delete", "delete", "", "Pete", "this summary shares no shape with the template")
	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelRC, Raw: raw})
	require.Equal(t, message.TypeError, msg.Type)
	assert.Equal(t, parser.ErrCodeLogParseFail, msg.ErrorCode)
}

func TestParseDiscussionsValidPayload(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	raw := `{"wiki":"community","domain":"fandom.com","language":"en","user":"Quinn",` +
		`"platform":"discussion","dtype":"thread","action":"created","title":"Hello",` +
		`"url":"https://community.fandom.com/f/p/1"}`

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelDiscussions, Raw: raw})
	require.Equal(t, message.TypeDiscussions, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "discussion", msg.Platform)
	assert.Equal(t, "thread", msg.DType)
	assert.Equal(t, "Hello", msg.Title)
}

func TestParseDiscussionsInvalidJSON(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelDiscussions, Raw: "not json"})
	require.Equal(t, message.TypeError, msg.Type)
	assert.Equal(t, parser.ErrCodeDiscussionsJSON, msg.ErrorCode)
}

func TestParseNewusers(t *testing.T) {
	t.Parallel()
	c := buildCache(t, nil)
	p := parser.New(c, zerolog.Nop())

	raw := "\x0303Riley\x03 \x0302https://community.fandom.com/index.php\x03 newusers"
	msg := p.Parse(parser.RawMessage{Channel: parser.ChannelNewusers, Raw: raw})
	require.Equal(t, message.TypeLog, msg.Type, msg.ErrorMessage)
	assert.Equal(t, "newusers", msg.Log)
	assert.Equal(t, "Riley", msg.User)
}
