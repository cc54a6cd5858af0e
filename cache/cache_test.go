package cache_test

import (
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/kockalogger/kockalogger/cache"
)

func TestRegexesOverridePrecedence(t *testing.T) {
	t.Parallel()

	c := cache.New()
	enRe := regexp.MustCompile(`^en$`)
	c.PutLanguageWide(
		map[string][]string{"blocklogentry": {"en raw"}},
		map[string][]*regexp.Regexp{"blocklogentry": {enRe}},
	)

	key := cache.Key{Language: "en", Wiki: "c", Domain: "fandom.com"}
	customRe := regexp.MustCompile(`^custom$`)
	c.PutCustom(key, map[string]string{"blocklogentry": "custom raw"}, map[string]*regexp.Regexp{"blocklogentry": customRe})

	regexes := c.Regexes(key, "blocklogentry")
	require.Len(t, regexes, 2)
	assert.Same(t, customRe, regexes[0])
	assert.Same(t, enRe, regexes[1])

	// A different wiki has no override and falls back to the language-wide list only.
	otherKey := cache.Key{Language: "en", Wiki: "other", Domain: "fandom.com"}
	regexes = c.Regexes(otherKey, "blocklogentry")
	require.Len(t, regexes, 1)
	assert.Same(t, enRe, regexes[0])
}

func TestContainsLiteral(t *testing.T) {
	t.Parallel()

	c := cache.New()
	c.PutLanguageWide(
		map[string][]string{"autosumm-blank": {"Blanked the page", "Página en blanco"}},
		map[string][]*regexp.Regexp{},
	)

	assert.True(t, c.ContainsLiteral("autosumm-blank", "Blanked the page"))
	assert.True(t, c.ContainsLiteral("autosumm-blank", "en blanco"))
	assert.False(t, c.ContainsLiteral("autosumm-blank", "nonexistent"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	c := cache.New()
	re := regexp.MustCompile(`^(foo|bar)$`)
	c.PutLanguageWide(
		map[string][]string{"blocklogentry": {"tpl-en", "tpl-fr"}},
		map[string][]*regexp.Regexp{"blocklogentry": {re}},
	)
	key := cache.Key{Language: "fr", Wiki: "c", Domain: "fandom.com"}
	customRe := regexp.MustCompile(`^custom$`)
	c.PutCustom(key, map[string]string{"blocklogentry": "custom-fr"}, map[string]*regexp.Regexp{"blocklogentry": customRe})

	require.NoError(t, c.Save(dir, false))

	loaded, errE := cache.Load(dir, false)
	require.NoError(t, errE)
	require.NotNil(t, loaded)

	assert.Equal(t, []string{"tpl-en", "tpl-fr"}, loaded.Templates("blocklogentry"))
	regexes := loaded.Regexes(key, "blocklogentry")
	require.Len(t, regexes, 2)
	assert.Equal(t, customRe.String(), regexes[0].String())
	assert.Equal(t, re.String(), regexes[1].String())
}

func TestSaveLoadDebugFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	c := cache.New()
	c.PutLanguageWide(
		map[string][]string{"deletedarticle": {"tpl"}},
		map[string][]*regexp.Regexp{"deletedarticle": {regexp.MustCompile(`^x$`)}},
	)
	require.NoError(t, c.Save(dir, true))

	for _, name := range []string{"_loader_messagecache.json", "_loader_i18n.json", "_loader_custom.json", "_loader_i18n2.json"} {
		_, err := os.Stat(dir + "/" + name)
		require.NoError(t, err, name)
	}

	loaded, errE := cache.Load(dir, true)
	require.NoError(t, errE)
	require.NotNil(t, loaded)
	assert.Equal(t, []string{"tpl"}, loaded.Templates("deletedarticle"))
}

func TestLoadMissingIsNil(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loaded, errE := cache.Load(dir, false)
	assert.NoError(t, errE)
	assert.Nil(t, loaded)
}
