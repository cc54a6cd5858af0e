// Package retryfetcher implements the per-wiki override fetch
// described in spec.md §4.8: when the Parser promotes a message to
// error with logparsefail, fetch that (language, wiki, domain)
// tuple's customized messages and feed them back into the Loader's
// cache so the next occurrence matches.
package retryfetcher

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/singleflight"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/loader"
	"gitlab.com/kockalogger/kockalogger/mwapi"
	"gitlab.com/kockalogger/kockalogger/util"
)

// Error codes surfaced when a retry fetch fails, per spec.md §4.8's
// "messagefetch" family.
const (
	ErrCodeMessageFetchHTML    = "messagefetch.html"
	ErrCodeMessageFetchUnusual = "messagefetch.unusual"
	ErrCodeMessageFetchFail    = "messagefetch.fail"
)

// Base errors for the three messagefetch subcodes above, wrapped with
// per-call details (wiki, cause) at the point of failure.
var (
	errMessageFetchHTML    = errors.Base(ErrCodeMessageFetchHTML)
	errMessageFetchUnusual = errors.Base(ErrCodeMessageFetchUnusual)
	errMessageFetchFail    = errors.Base(ErrCodeMessageFetchFail)
)

// Fetcher deduplicates concurrent retry requests for the same wiki
// via singleflight, so a burst of logparsefail messages from one wiki
// triggers at most one in-flight HTTP fetch.
type Fetcher struct {
	client *mwapi.Client
	loader *loader.Loader
	logger zerolog.Logger
	group  singleflight.Group
}

// New builds a Fetcher around the shared Loader and HTTP client.
func New(client *mwapi.Client, l *loader.Loader, logger zerolog.Logger) *Fetcher {
	return &Fetcher{client: client, loader: l, logger: logger}
}

// Fetch retrieves and installs wiki's customized messages for
// language/domain, deduplicating concurrent callers for the same
// key. It returns the newly compiled regexes, or an error tagged with
// one of the messagefetch codes above.
func (f *Fetcher) Fetch(ctx context.Context, language, wiki, domain string) (map[string]*regexp.Regexp, errors.E) {
	key := language + ":" + wiki + ":" + domain
	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		return f.fetch(ctx, language, wiki, domain)
	})
	if err != nil {
		if errE, ok := err.(errors.E); ok { //nolint:errorlint
			return nil, errE
		}
		return nil, errors.WithStack(err)
	}
	return v.(map[string]*regexp.Regexp), nil
}

func (f *Fetcher) fetch(ctx context.Context, language, wiki, domain string) (map[string]*regexp.Regexp, errors.E) {
	baseURL := util.URL(wiki, language, domain)

	body, errE := f.client.RawQuery(ctx, baseURL+"/api.php", url.Values{
		"meta":          {"allmessages"},
		"amlang":        {language},
		"ammessages":    {loader.KnownNamesQuery()},
		"amprop":        {"default"},
		"amcustomized":  {"modified"},
	})
	if errE != nil {
		return nil, errors.WithDetails(errMessageFetchFail, "wiki", wiki, "cause", errE.Error())
	}

	var resp mwapi.AllMessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if looksLikeHTML(body) {
			return nil, errors.WithDetails(errMessageFetchHTML, "wiki", wiki)
		}
		return nil, errors.WithDetails(errMessageFetchUnusual, "wiki", wiki, "cause", err.Error())
	}
	if resp.Query == nil {
		return nil, errors.WithDetails(errMessageFetchUnusual, "wiki", wiki)
	}

	overrides := map[string]string{}
	for _, m := range resp.Query.AllMessages {
		if m.Missing || m.Customized == "" {
			continue
		}
		overrides[m.Name] = m.Value()
	}

	key := cache.Key{Language: language, Wiki: wiki, Domain: domain}
	return f.loader.UpdateCustom(key, overrides)
}

// looksLikeHTML is the distinguishing check between a captive-portal
// or maintenance page (messagefetch.html) and an otherwise unusual
// non-JSON / malformed response (messagefetch.unusual), per spec.md
// §4.8.
func looksLikeHTML(body []byte) bool {
	return htmlSniff.Match(body)
}

var htmlSniff = regexp.MustCompile(`(?i)^\s*<(!doctype|html)`)
