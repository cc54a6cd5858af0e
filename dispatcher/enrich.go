package dispatcher

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"gitlab.com/tozd/go/errors"

	"gitlab.com/kockalogger/kockalogger/message"
	"gitlab.com/kockalogger/kockalogger/mwapi"
	"gitlab.com/kockalogger/kockalogger/util"
)

// Base errors for the enrichment fetch/cache failure codes, wrapped
// with per-call details (wiki, cause) at the point of failure.
var (
	errAPIThreadLog     = errors.Base(ErrCodeAPIThreadLog)
	errAPITitleAPI      = errors.Base(ErrCodeAPITitleAPI)
	errAPINoTitle       = errors.Base(ErrCodeAPINoTitle)
	errAPIThreadInfo    = errors.Base(ErrCodeAPIThreadInfo)
	errThreadLogNoFind  = errors.Base(ErrCodeThreadLogNoFind)
	errThreadTitleParse = errors.Base(ErrCodeThreadTitleParse)
	errCacheThreadTitle = errors.Base(ErrCodeCacheThreadTitle)
	errCacheSetThread   = errors.Base(ErrCodeCacheSetThread)
)

// acMetadataTitleRegex extracts a Discussions thread's title out of
// its parent page's wikitext, per spec.md §4.7's threadtitle
// property.
var acMetadataTitleRegex = regexp.MustCompile(`<ac_metadata [^>]*title="([^"]+)"[^>]*>\s*</ac_metadata>$`)

// fetchPageTitle implements the pagetitle enrichment property: given
// an edit's diff (or failing that, oldid) revision id, resolve and
// cache the page's current title under "{wiki}-{revid}".
func (d *Dispatcher) fetchPageTitle(ctx context.Context, msg *message.Message) error {
	revid := msg.Params["diff"]
	if revid == 0 {
		revid = msg.Params["oldid"]
	}
	if revid == 0 {
		return nil
	}

	key := fmt.Sprintf("%s-%d", msg.Wiki, revid)
	if title, ok, errE := d.cache.GetPageTitle(ctx, key); errE == nil && ok {
		msg.PageTitle = title
		return nil
	}

	var resp mwapi.PageInfoResponse
	baseURL := util.URL(msg.Wiki, msg.Language, msg.Domain)
	if errE := d.client.Query(ctx, baseURL+"/api.php", url.Values{
		"prop":   {"info"},
		"revids": {strconv.Itoa(revid)},
	}, &resp); errE != nil {
		return errors.WithDetails(errAPITitleAPI, "wiki", msg.Wiki, "cause", errE.Error())
	}

	title := resp.Title()
	if title == "" {
		return errors.WithDetails(errAPINoTitle, "wiki", msg.Wiki)
	}
	msg.PageTitle = title

	if errE := d.cache.SetPageTitle(ctx, key, title); errE != nil {
		d.logger.Warn().Err(errE).Str("wiki", msg.Wiki).Msg("failed to cache page title")
	}
	return nil
}

// fetchThreadLog implements the threadlog enrichment property: for a
// log message whose log family is the Fandom logfuckup bucket ("0"),
// look up the real recent-changes log entry and transpose its fields
// onto msg.
func (d *Dispatcher) fetchThreadLog(ctx context.Context, msg *message.Message) error {
	var resp mwapi.RecentChangesResponse
	baseURL := util.URL(msg.Wiki, msg.Language, msg.Domain)
	if errE := d.client.Query(ctx, baseURL+"/api.php", url.Values{
		"list":   {"recentchanges"},
		"rctype": {"log"},
		"rcprop": {"comment|ids|loginfo|title|user"},
	}, &resp); errE != nil {
		return errors.WithDetails(errAPIThreadLog, "wiki", msg.Wiki, "cause", errE.Error())
	}

	entry, found := resp.FirstLogType("0")
	if !found {
		return errors.WithDetails(errThreadLogNoFind, "wiki", msg.Wiki)
	}

	msg.Log = "thread"
	msg.Page = entry.Title
	msg.User = entry.User
	msg.Action = entry.LogAction
	msg.Namespace = strconv.Itoa(entry.NS)
	msg.Reason = entry.Comment
	msg.ThreadID = strconv.Itoa(entry.LogID)
	return nil
}

// fetchThreadTitle implements the threadtitle enrichment property:
// for a Discussions thread message, read the parent page's wikitext
// and extract the thread title Fandom embeds in its ac_metadata tag.
// The cache-miss fetch is single-flighted per (wiki, parent), per
// spec.md §5, so a burst of messages about the same thread triggers
// at most one in-flight MediaWiki request.
func (d *Dispatcher) fetchThreadTitle(ctx context.Context, msg *message.Message) error {
	parent := msg.Thread
	if parent == "" {
		return nil
	}
	cacheKey := "threadtitle:" + msg.Wiki + ":" + parent

	if title, ok, errE := d.cache.Get(ctx, cacheKey); errE != nil {
		return errors.WithDetails(errCacheThreadTitle, "wiki", msg.Wiki, "cause", errE.Error())
	} else if ok {
		msg.Title = title
		return nil
	}

	v, err, _ := d.threadTitleGroup.Do(cacheKey, func() (interface{}, error) {
		return d.resolveThreadTitle(ctx, msg.Wiki, msg.Language, msg.Domain, parent, cacheKey)
	})
	if err != nil {
		if errE, ok := err.(errors.E); ok { //nolint:errorlint
			return errE
		}
		return errors.WithStack(err)
	}
	msg.Title = v.(string)
	return nil
}

// resolveThreadTitle performs the actual MediaWiki fetch and cache
// fill behind fetchThreadTitle's singleflight call.
func (d *Dispatcher) resolveThreadTitle(ctx context.Context, wiki, language, domain, parent, cacheKey string) (string, error) {
	var resp mwapi.RevisionContentResponse
	baseURL := util.URL(wiki, language, domain)
	if errE := d.client.Query(ctx, baseURL+"/api.php", url.Values{
		"titles": {parent},
		"prop":   {"revisions"},
		"rvprop": {"content"},
	}, &resp); errE != nil {
		return "", errors.WithDetails(errAPIThreadInfo, "wiki", wiki, "cause", errE.Error())
	}

	match := acMetadataTitleRegex.FindStringSubmatch(resp.Content())
	if match == nil {
		return "", errors.WithDetails(errThreadTitleParse, "wiki", wiki)
	}
	title := util.DecodeHTML(match[1])

	if errE := d.cache.Set(ctx, cacheKey, title); errE != nil {
		return "", errors.WithDetails(errCacheSetThread, "wiki", wiki, "cause", errE.Error())
	}
	return title, nil
}
