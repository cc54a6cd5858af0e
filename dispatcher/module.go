// Package dispatcher implements spec.md §4.7: it fans a parsed
// message out to every registered Module, fetching whatever
// enrichment properties a module asked for before calling Execute,
// and feeds logparsefail messages back into the RetryFetcher.
package dispatcher

import (
	"context"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/message"
)

// Interest is a Module's verdict on a Message, returned by
// Interested. It mirrors spec.md §4.7's three-way contract
// ("false/empty → skip; true → execute immediately; a string or list
// of strings → wants enrichment properties first") as a Go enum
// instead of a dynamically-typed return value.
type Interest int

const (
	// Skip means the module has nothing to do with this message.
	Skip Interest = iota
	// ExecuteNow means call Execute immediately, no enrichment needed.
	ExecuteNow
	// NeedsEnrichment means call Execute only after the properties
	// returned alongside this Interest have been fetched.
	NeedsEnrichment
)

// Module is the subscriber contract every sink (chat webhook, SQL
// table, cache) implements, per spec.md §6's "Module contract".
type Module interface {
	// Name identifies the module in dispatch log lines
	// ("type=dispatch, mod=<name>", per spec.md §7).
	Name() string

	// Setup is called once, after the Loader's initial run, with the
	// message cache it built.
	Setup(messages *cache.Cache) error

	// Interested is pure and synchronous: it must not suspend or
	// panic on ordinary input. When it returns NeedsEnrichment, props
	// names the enrichment properties (see the Property constants)
	// this module needs before Execute can run.
	Interested(msg *message.Message) (interest Interest, props []string)

	// Execute handles msg. It may suspend (HTTP calls, Redis). Any
	// panic is recovered by the Dispatcher and logged, not propagated.
	Execute(ctx context.Context, msg *message.Message) error

	// Kill releases the module's transports and flushes its caches.
	Kill() error
}

// Enrichment property names recognized by the Dispatcher, per
// spec.md §4.7.
const (
	PropertyPageTitle   = "pagetitle"
	PropertyThreadLog   = "threadlog"
	PropertyThreadTitle = "threadtitle"
)
