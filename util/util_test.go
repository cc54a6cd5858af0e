package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/kockalogger/kockalogger/util"
)

func TestURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wiki, lang, domain, expected string
	}{
		{"c", "", "fandom.com", "https://c.fandom.com"},
		{"c", "en", "fandom.com", "https://c.fandom.com"},
		{"c", "fr", "fandom.com", "https://c.fandom.com/fr"},
		{"community", "", "wikia.org", "https://community.wikia.org"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.expected, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, util.URL(test.wiki, test.lang, test.domain))
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		encoded string
	}{
		{"Main Page", "Main_Page"},
		{"Talk:Foo", "Talk:Foo"},
		{"User/subpage", "User/subpage"},
		{"a!b'c(d)e*f~g", "a!b'c(d)e*f~g"},
		{"100%", "100%25"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.encoded, util.Encode(test.raw))
			decoded, err := util.Decode(test.encoded)
			assert.NoError(t, err)
			assert.Equal(t, test.raw, decoded)
		})
	}
}

func TestEscapeRegex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `\[test\]`, util.EscapeRegex("[test]"))
	assert.Equal(t, `a\.b\*c`, util.EscapeRegex("a.b*c"))
	assert.Equal(t, `1\+1`, util.EscapeRegex("1+1"))
	assert.Equal(t, "plain", util.EscapeRegex("plain"))
}

func TestEscapeMarkdown(t *testing.T) {
	t.Parallel()

	out := util.EscapeMarkdown("check http://example.com and @everyone\r\nplease")
	assert.NotContains(t, out, "\r")
	assert.NotContains(t, out, "\n")
	assert.Contains(t, out, "http​://example.com")
	assert.Contains(t, out, "@​everyone")

	assert.Equal(t, `\*bold\*`, util.EscapeMarkdown("*bold*"))
}

func TestDecodeHTML(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `<a> & "b" 'c'`+"\n", util.DecodeHTML(`&lt;a&gt; &amp; &quot;b&quot; &#039;c&#039;&#10;`))
}

func TestIsIP(t *testing.T) {
	t.Parallel()

	assert.True(t, util.IsIP("192.168.1.1"))
	assert.True(t, util.IsIP("::1"))
	assert.False(t, util.IsIP("192.168.1.1/24"))
	assert.False(t, util.IsIP("Evildoer"))
}

func TestIsIPRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cidr     string
		expected bool
	}{
		{"192.168.0.0/16", true},
		{"192.168.0.0/24", true},
		{"10.0.0.0/15", false},
		{"2001:db8::/19", true},
		{"2001:db8::/32", true},
		{"2001:db8::/18", false},
		{"not-a-cidr", false},
	}
	for _, test := range tests {
		test := test
		t.Run(test.cidr, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, util.IsIPRange(test.cidr))
		})
	}
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	result, err := util.ParseQuery("diff=12&oldid=10&rcid=abc")
	assert.NoError(t, err)
	assert.Equal(t, 12, result["diff"])
	assert.Equal(t, 10, result["oldid"])
	_, ok := result["rcid"]
	assert.False(t, ok)
}
