package dispatcher

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gitlab.com/kockalogger/kockalogger/enrichment"
	"gitlab.com/kockalogger/kockalogger/message"
	"gitlab.com/kockalogger/kockalogger/mwapi"
	"gitlab.com/kockalogger/kockalogger/parser"
	"gitlab.com/kockalogger/kockalogger/retryfetcher"
)

// maxConcurrentFetches bounds outbound HTTP fan-out across a single
// message's enrichment properties, per spec.md §5's "HTTP requests
// are parallel with a cap of 10."
const maxConcurrentFetches = 10

// Dispatcher fans a parsed Message out to every registered Module,
// per spec.md §4.7. It holds no per-message state: Dispatch is safe
// to call concurrently for unrelated messages (each call owns its own
// enrichment goroutines), matching spec.md §5's "dispatcher ...
// [is] serial with respect to [itself]" read as per-message serial.
type Dispatcher struct {
	modules []Module
	cache   *enrichment.Cache
	client  *mwapi.Client
	retry   *retryfetcher.Fetcher
	logger  zerolog.Logger

	// threadTitleGroup deduplicates concurrent fetchThreadTitle calls
	// for the same (wiki, parent) on a cache miss, mirroring
	// retryfetcher.Fetcher's use of singleflight.
	threadTitleGroup singleflight.Group
}

// New builds a Dispatcher over the given modules, sharing the
// EnrichmentCache, MediaWiki client, and RetryFetcher wired up by the
// framework glue.
func New(modules []Module, c *enrichment.Cache, client *mwapi.Client, retry *retryfetcher.Fetcher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{modules: modules, cache: c, client: client, retry: retry, logger: logger}
}

// Dispatch implements spec.md §4.7's contract for a single message:
// interested modules either execute immediately or wait on the union
// of their requested enrichment properties; a logparsefail error also
// triggers the RetryFetcher for its (language, wiki, domain).
func (d *Dispatcher) Dispatch(ctx context.Context, msg *message.Message) {
	if msg.Type == message.TypeError && msg.ErrorCode == parser.ErrCodeLogParseFail {
		d.triggerRetry(ctx, msg)
	}

	var now, pending []Module
	props := make(map[string]bool)

	for _, m := range d.modules {
		interest, want := m.Interested(msg)
		switch interest {
		case Skip:
			continue
		case ExecuteNow:
			now = append(now, m)
		case NeedsEnrichment:
			pending = append(pending, m)
			for _, p := range want {
				props[p] = true
			}
		}
	}

	for _, m := range now {
		d.execute(ctx, m, msg)
	}

	if len(pending) == 0 {
		return
	}

	enriched, errE := d.enrich(ctx, msg, props)
	if errE != nil {
		d.logger.Warn().
			Err(errE).
			Str("wiki", msg.Wiki).
			Msg("enrichment failed, dropping message")
		return
	}

	for _, m := range pending {
		d.execute(ctx, m, enriched)
	}
}

// execute runs a single module's Execute under panic recovery, per
// spec.md §7's "exceptions ... are caught by the Dispatcher ... and
// swallowed."
func (d *Dispatcher) execute(ctx context.Context, m Module, msg *message.Message) {
	// trace correlates this one execution across whatever log lines
	// the module itself emits, since a module's Execute may suspend
	// on multiple outbound requests.
	trace := uuid.NewString()

	defer func() {
		if rcv := recover(); rcv != nil {
			d.logger.Error().
				Str("type", "dispatch").
				Str("mod", m.Name()).
				Str("trace", trace).
				Interface("panic", rcv).
				Msg("module execute panicked")
		}
	}()
	if err := m.Execute(ctx, msg); err != nil {
		d.logger.Warn().
			Str("type", "dispatch").
			Str("mod", m.Name()).
			Str("trace", trace).
			Err(err).
			Msg("module execute failed")
	}
}

// triggerRetry invokes the RetryFetcher for the failed message's
// wiki. Its own error is logged, never propagated: the fetch is
// naturally re-attempted on the next logparsefail for the same key.
func (d *Dispatcher) triggerRetry(ctx context.Context, msg *message.Message) {
	if d.retry == nil {
		return
	}
	if _, errE := d.retry.Fetch(ctx, msg.Language, msg.Wiki, msg.Domain); errE != nil {
		d.logger.Warn().
			Err(errE).
			Str("wiki", msg.Wiki).
			Msg("retry fetch after parse failure failed")
	}
}

// enrich fetches the union of requested properties concurrently
// (bounded by maxConcurrentFetches) into a copy of msg, returning the
// enriched copy or the first error encountered.
func (d *Dispatcher) enrich(ctx context.Context, msg *message.Message, props map[string]bool) (*message.Message, error) {
	out := *msg

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	if props[PropertyPageTitle] {
		g.Go(func() error { return d.fetchPageTitle(gctx, &out) })
	}
	if props[PropertyThreadLog] {
		g.Go(func() error { return d.fetchThreadLog(gctx, &out) })
	}
	if props[PropertyThreadTitle] {
		g.Go(func() error { return d.fetchThreadTitle(gctx, &out) })
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
