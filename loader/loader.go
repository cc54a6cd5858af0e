// Package loader implements the startup message-cache rebuild and the
// on-line per-wiki override update described in spec.md §4.3: bulk
// fetching allmessages across every Fandom language with bounded
// concurrency, compiling each into a regex via the messagemap table,
// and persisting the result.
package loader

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/messagemap"
	"gitlab.com/kockalogger/kockalogger/mwapi"
)

// FetchConcurrency is the fixed bound on simultaneous allmessages
// fetches during a bulk rebuild, per spec.md §4.3 step 2.
const FetchConcurrency = 10

// CommunityWiki is the wiki queried for the list of languages and,
// per-language, for every known message's default value.
const CommunityWiki = "https://community.fandom.com"

// literalOnlyNames are message names tracked in messagecache (for
// ContainsLiteral lookups) but with no regex transform, per spec.md
// §9's Open Question on autosumm-blank.
var literalOnlyNames = []string{"autosumm-blank"}

// patrolLogDiffName is never emitted on its own; its value is spliced
// into patrol-log-line as $1, per spec.md §4.3 step 3.
const patrolLogDiffName = "patrol-log-diff"

// Loader performs the full bulk rebuild and incremental per-wiki
// override updates.
type Loader struct {
	client        *mwapi.Client
	logger        zerolog.Logger
	cache         *cache.Cache
	communityWiki string
}

// New constructs a Loader around an existing Cache (possibly loaded
// from disk, possibly empty), querying CommunityWiki for cross-wiki
// metadata.
func New(client *mwapi.Client, logger zerolog.Logger, c *cache.Cache) *Loader {
	return &Loader{client: client, logger: logger, cache: c, communityWiki: CommunityWiki}
}

// WithCommunityWiki overrides the base URL queried for languages and
// allmessages, for tests that stand up a fake wiki server.
func (l *Loader) WithCommunityWiki(baseURL string) *Loader {
	l.communityWiki = baseURL
	return l
}

// Cache returns the Loader's underlying Cache.
func (l *Loader) Cache() *cache.Cache {
	return l.cache
}

// knownNames returns every message name the Loader fetches: the
// messagemap-transformed names, the literal-only names, and the
// patrol-log-diff helper.
func knownNames() []string {
	names := messagemap.Names()
	names = append(names, literalOnlyNames...)
	names = append(names, patrolLogDiffName)
	return names
}

// Run is the startup entry point. fetch forces a full rebuild even
// when dir already has a persisted cache; debug selects the
// single-file vs. four-file persistence layout, per spec.md §4.3 and
// §6.
func Run(ctx context.Context, client *mwapi.Client, logger zerolog.Logger, dir string, fetch, debug bool) (*Loader, errors.E) {
	if !fetch {
		if loaded, errE := cache.Load(dir, debug); errE == nil && loaded != nil {
			return New(client, logger, loaded), nil
		}
	}

	l := New(client, logger, cache.New())
	if errE := l.Rebuild(ctx); errE != nil {
		return nil, errE
	}
	if errE := l.cache.Save(dir, debug); errE != nil {
		logger.Error().Err(errE).Msg("failed to persist message cache")
	}
	return l, nil
}

// perLanguageMessages holds one language's allmessages fetch result.
type perLanguageMessages struct {
	language string
	values   map[string]string // name -> effective value
}

// Rebuild performs the full bulk fetch described in spec.md §4.3.
func (l *Loader) Rebuild(ctx context.Context) errors.E {
	names := knownNames()

	var langResp mwapi.LanguagesResponse
	errE := l.client.Query(ctx, l.communityWiki+"/api.php", url.Values{
		"meta":    {"siteinfo"},
		"siprop":  {"languages"},
	}, &langResp)
	if errE != nil {
		return errE
	}
	languages := langResp.Codes()
	if len(languages) == 0 {
		return errors.New("no languages returned from siteinfo")
	}

	results := make(chan perLanguageMessages, len(languages))

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan string)

	for i := 0; i < FetchConcurrency; i++ {
		g.Go(func() error {
			for lang := range jobs {
				values, errE := l.fetchLanguage(gctx, lang, names)
				if errE != nil {
					l.logger.Error().Err(errE).Str("language", lang).Msg("failed to fetch allmessages, skipping language")
					continue
				}
				results <- perLanguageMessages{language: lang, values: values}
			}
			return nil
		})
	}

	go func() {
		for _, lang := range languages {
			select {
			case jobs <- lang:
			case <-gctx.Done():
				close(jobs)
				return
			}
		}
		close(jobs)
	}()

	go func() {
		_ = g.Wait() //nolint:errcheck
		close(results)
	}()

	messageCache := map[string][]string{}
	seen := map[string]map[string]bool{}
	for r := range results {
		for name, value := range r.values {
			if value == "" {
				continue
			}
			if seen[name] == nil {
				seen[name] = map[string]bool{}
			}
			if seen[name][value] {
				continue
			}
			seen[name][value] = true
			messageCache[name] = append(messageCache[name], value)
		}
	}

	i18n := map[string][]*regexp.Regexp{}
	for name, values := range messageCache {
		if !messagemap.Known(name) {
			continue
		}
		regexes := make([]*regexp.Regexp, 0, len(values))
		for _, raw := range values {
			re, errE := compileTransformed(name, raw)
			if errE != nil {
				l.logger.Warn().Err(errE).Str("name", name).Msg("failed to compile message regex, skipping")
				continue
			}
			regexes = append(regexes, re)
		}
		i18n[name] = regexes
	}

	l.cache.PutLanguageWide(messageCache, i18n)
	return nil
}

// compileTransformed applies GENDER expansion before handing the
// result to the per-name placeholder transform, per spec.md §4.3
// step 5: GENDER must be expanded "before" the per-name transform so
// $N placeholders inside the gender options are not treated as
// literal text.
func compileTransformed(name, raw string) (*regexp.Regexp, errors.E) {
	expanded := expandGender(raw)
	source, errE := messagemap.Transform(name, expanded)
	if errE != nil {
		return nil, errE
	}
	source = finalizeGenderSentinelsInSource(source)
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, errors.WithDetails(errors.WithStack(err), "name", name, "raw", raw)
	}
	return re, nil
}

// finalizeGenderSentinelsInSource reinstates the alternation syntax
// in an already-transformed regex source (Transform itself escapes
// literal text with EscapeRegex, so the sentinels survive until now).
func finalizeGenderSentinelsInSource(source string) string {
	return finalizeGenderSentinels(source)
}

func (l *Loader) fetchLanguage(ctx context.Context, language string, names []string) (map[string]string, errors.E) {
	var resp mwapi.AllMessagesResponse
	errE := l.client.Query(ctx, l.communityWiki+"/api.php", url.Values{
		"meta":       {"allmessages"},
		"amlang":     {language},
		"ammessages": {strings.Join(names, "|")},
		"amprop":     {"default"},
	}, &resp)
	if errE != nil {
		return nil, errE
	}
	if resp.Query == nil {
		return nil, errors.Errorf("missing query.allmessages for language %s", language)
	}

	values := map[string]string{}
	var patrolLogDiff string
	for _, m := range resp.Query.AllMessages {
		if m.Missing {
			continue
		}
		if m.Name == patrolLogDiffName {
			patrolLogDiff = m.Value()
			continue
		}
		values[m.Name] = m.Value()
	}

	// Splice patrol-log-diff into patrol-log-line's $1, per spec.md
	// §4.3 step 3, and never emit patrol-log-diff on its own.
	if patrolLogDiff != "" {
		if line, ok := values["patrol-log-line"]; ok {
			values["patrol-log-line"] = strings.Replace(line, "$1", patrolLogDiff, 1)
		}
	}

	return values, nil
}

// UpdateCustom incorporates a freshly fetched per-wiki override set
// (from the RetryFetcher), recompiles the affected slot, persists
// nothing itself (the caller decides persistence cadence), and
// returns the newly compiled regexes.
func (l *Loader) UpdateCustom(key cache.Key, overrides map[string]string) (map[string]*regexp.Regexp, errors.E) {
	compiled := make(map[string]*regexp.Regexp, len(overrides))
	for name, raw := range overrides {
		if !messagemap.Known(name) {
			continue
		}
		re, errE := compileTransformed(name, raw)
		if errE != nil {
			l.logger.Warn().Err(errE).Str("name", name).Msg("failed to compile custom message regex, skipping")
			continue
		}
		compiled[name] = re
	}
	l.cache.PutCustom(key, overrides, compiled)
	return compiled, nil
}

// KnownNamesQuery joins every known name for use in an
// amcustomized=modified query (used by the RetryFetcher).
func KnownNamesQuery() string {
	return strings.Join(knownNames(), "|")
}
