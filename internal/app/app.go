// Package app wires the KockaLogger pipeline together: Loader →
// LineDecoders → Parser → Dispatcher, per spec.md §2, and implements
// the §5 shutdown algorithm. It is the one piece of spec.md's design
// not named as its own §4 component but required by §5/§6's framework
// glue.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/config"
	"gitlab.com/kockalogger/kockalogger/dispatcher"
	"gitlab.com/kockalogger/kockalogger/enrichment"
	"gitlab.com/kockalogger/kockalogger/linedecoder"
	"gitlab.com/kockalogger/kockalogger/loader"
	"gitlab.com/kockalogger/kockalogger/mwapi"
	"gitlab.com/kockalogger/kockalogger/parser"
	"gitlab.com/kockalogger/kockalogger/retryfetcher"
)

// Product/Version/Description feed the User-Agent string spec.md §6
// requires of every outbound MediaWiki request.
const (
	Product     = "KockaLogger"
	Version     = "1.0.0"
	Description = "Fandom IRC feed consumer and event dispatcher"
)

// App owns every long-lived KockaLogger component and the
// intake/shutdown plumbing around them. The IRC transport itself is
// out of scope (spec.md §1 Non-goals): IngestLine is the boundary an
// embedding program's IRC client callback calls into.
type App struct {
	logger zerolog.Logger

	loader         *loader.Loader
	parser         *parser.Parser
	dispatcher     *dispatcher.Dispatcher
	enrichment     *enrichment.Cache
	subscriber     *enrichment.Subscriber
	commandRedis   redis.UniversalClient
	subscribeRedis redis.UniversalClient
	modules        []dispatcher.Module

	decoders map[parser.Channel]linedecoder.Decoder
	intake   map[parser.Channel]chan string

	drainTimeout time.Duration

	// cacheDir/debug/needsRebuild carry the loader.Run split (cache.Load
	// attempted in New, Rebuild+Save deferred to Run) across the
	// New/Run boundary Run already has for every other component.
	cacheDir     string
	debug        bool
	needsRebuild bool

	// rootCtx is handed to every in-flight Dispatch call; it is only
	// cancelled once the drain period ends, so it must not be tied to
	// ingestCtx below.
	rootCtx context.Context
	cancel  context.CancelFunc

	// ingestCtx governs the subscriber goroutine: it is cancelled the
	// instant shutdown begins, since the subscriber produces new work
	// (expirations) rather than draining existing work.
	ingestCtx    context.Context
	ingestCancel context.CancelFunc

	wg sync.WaitGroup

	shutdownOnce sync.Once
	shuttingDown chan struct{}
}

// New builds every component named in spec.md §2/§4 around cfg and
// modules, but does not yet start consuming lines: call Run for that.
// fetch forces a full message-cache rebuild on Run even when a
// persisted cache is found in cfg.Cache.Dir, per spec.md §4.3/§6.
func New(ctx context.Context, cfg config.Config, fetch bool, modules []dispatcher.Module, logger zerolog.Logger) (*App, errors.E) {
	messageCache, needsRebuild := loadOrFreshCache(cfg, fetch)
	client := mwapi.NewClient(logger, Product, Version, Description)
	ld := loader.New(client, logger, messageCache)
	p := parser.New(messageCache, logger)
	retry := retryfetcher.New(client, ld, logger)

	// Two separate connections, per spec.md §5's "Redis is a shared
	// external resource; two connections are required (one command,
	// one subscribe)": PSUBSCRIBE blocks its connection for the
	// subscriber's whole lifetime.
	commandRedis := newRedisClient(cfg.Redis)
	subscribeRedis := newRedisClient(cfg.Redis)
	enrichCache := enrichment.New(commandRedis)
	subscriber := enrichment.NewSubscriber(subscribeRedis, logger)

	d := dispatcher.New(modules, enrichCache, client, retry, logger)

	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = config.DefaultDrainTimeout
	}

	rootCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ingestCtx, ingestCancel := context.WithCancel(ctx)

	return &App{
		logger:         logger,
		loader:         ld,
		parser:         p,
		dispatcher:     d,
		enrichment:     enrichCache,
		subscriber:     subscriber,
		commandRedis:   commandRedis,
		subscribeRedis: subscribeRedis,
		modules:        modules,
		drainTimeout:   drainTimeout,
		cacheDir:       cfg.Cache.Dir,
		debug:          cfg.Log.Debug,
		needsRebuild:   needsRebuild,
		decoders: map[parser.Channel]linedecoder.Decoder{
			parser.ChannelRC:          linedecoder.NewRC(),
			parser.ChannelDiscussions: linedecoder.NewDiscussions(),
			parser.ChannelNewusers:    linedecoder.NewNewusers(),
		},
		intake: map[parser.Channel]chan string{
			parser.ChannelRC:          make(chan string, 256), //nolint:mnd
			parser.ChannelDiscussions: make(chan string, 256), //nolint:mnd
			parser.ChannelNewusers:    make(chan string, 256), //nolint:mnd
		},
		rootCtx:      rootCtx,
		cancel:       cancel,
		ingestCtx:    ingestCtx,
		ingestCancel: ingestCancel,
		shuttingDown: make(chan struct{}),
	}, nil
}

// loadOrFreshCache mirrors loader.Run's cache.Load-or-fresh split,
// reporting whether Run still needs to perform (and persist) a bulk
// rebuild.
func loadOrFreshCache(cfg config.Config, fetch bool) (*cache.Cache, bool) {
	if !fetch {
		if loaded, errE := cache.Load(cfg.Cache.Dir, cfg.Log.Debug); errE == nil && loaded != nil {
			return loaded, false
		}
	}
	return cache.New(), true
}

func newRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	network := cfg.Network
	if network == "" {
		network = "unix"
	}
	addr := cfg.Address
	if addr == "" && network == "unix" {
		addr = config.DefaultRedisSocket
	}
	return redis.NewClient(&redis.Options{Network: network, Addr: addr})
}

// Run rebuilds the message cache if New did not find a usable
// persisted one, calls Setup on every module, then starts one
// drain-tracked goroutine per feed channel plus the new-users
// expiration subscriber. It blocks until Shutdown cancels the root
// context at the end of the drain.
func (a *App) Run(ctx context.Context) errors.E {
	if a.needsRebuild {
		if errE := a.loader.Rebuild(ctx); errE != nil {
			return errors.WithMessage(errE, "initial message cache rebuild failed")
		}
		if errE := a.loader.Cache().Save(a.cacheDir, a.debug); errE != nil {
			a.logger.Error().Err(errE).Msg("failed to persist message cache")
		}
	}

	for _, m := range a.modules {
		if err := m.Setup(a.loader.Cache()); err != nil {
			return errors.WithDetails(errors.WithStack(err), "module", m.Name())
		}
	}

	for ch, intake := range a.intake {
		a.wg.Add(1)
		go a.consume(ch, intake)
	}

	expirations := make(chan enrichment.Expiration)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.subscriber.Run(a.ingestCtx, expirations)
	}()
	a.wg.Add(1)
	go a.forwardExpirations(expirations)

	<-a.rootCtx.Done()
	return nil
}

// consume decodes and dispatches every line received on intake, in
// arrival order (per spec.md §5's "within a single channel, order ...
// matches order received"). It never closes intake itself — once
// shutdown begins it drains whatever is already buffered, letting any
// resulting Dispatch call finish, then returns.
func (a *App) consume(ch parser.Channel, intake chan string) {
	defer a.wg.Done()
	decoder := a.decoders[ch]
	for {
		select {
		case raw := <-intake:
			a.handle(decoder, raw)
		case <-a.shuttingDown:
			a.drain(decoder, intake)
			return
		}
	}
}

// drain processes whatever is already queued in intake without
// blocking for more, so shutdown does not wait on lines that will
// never arrive.
func (a *App) drain(decoder linedecoder.Decoder, intake chan string) {
	for {
		select {
		case raw := <-intake:
			a.handle(decoder, raw)
		default:
			return
		}
	}
}

func (a *App) handle(decoder linedecoder.Decoder, raw string) {
	msg, ok := decoder.Feed(raw)
	if !ok {
		return
	}
	decoded := a.parser.Parse(msg)
	a.dispatcher.Dispatch(a.rootCtx, decoded)
}

// forwardExpirations turns each parsed "newusers:*" key expiration
// into a synthetic newusers Message and dispatches it directly: the
// expiration already carries the full (user, wiki, language, domain)
// tuple, so there is nothing to gain (and IRC color codes to get
// wrong) by re-serializing it into a fake line and feeding it back
// through the decoder/parser. It returns once the subscriber closes
// expirations (on ingestCtx cancellation).
func (a *App) forwardExpirations(expirations <-chan enrichment.Expiration) {
	defer a.wg.Done()
	for exp := range expirations {
		msg := parser.NewUsersMessage(exp.User, exp.Wiki, exp.Language, exp.Domain, "expired:"+exp.User)
		a.dispatcher.Dispatch(a.rootCtx, msg)
	}
}

// IngestLine is the boundary the embedding program's IRC client calls
// into for every raw line it receives. It is a no-op once shutdown
// has begun.
func (a *App) IngestLine(channel parser.Channel, raw string) {
	select {
	case <-a.shuttingDown:
		return
	default:
	}
	intake, ok := a.intake[channel]
	if !ok {
		return
	}
	select {
	case intake <- raw:
	case <-a.shuttingDown:
	}
}

// Shutdown implements spec.md §5's cancellation algorithm: stop
// accepting lines, wait up to the drain timeout for in-flight work,
// then cancel the root context to force-close transports. A second
// call (re-signaling during drain) only logs a warning — the first
// call wins.
func (a *App) Shutdown() {
	first := false
	a.shutdownOnce.Do(func() {
		first = true

		// Stop accepting new lines and stop the subscriber from
		// producing new expiration events.
		close(a.shuttingDown)
		a.ingestCancel()

		drained := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-time.After(a.drainTimeout):
			a.logger.Warn().Msg("shutdown drain timeout exceeded, forcing close")
		}

		// Force-close transports and caches still in flight.
		a.cancel()
		if err := a.commandRedis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close redis command connection")
		}
		if err := a.subscribeRedis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close redis subscribe connection")
		}

		for _, m := range a.modules {
			if err := m.Kill(); err != nil {
				a.logger.Warn().Err(err).Str("mod", m.Name()).Msg("module kill failed")
			}
		}
	})
	if !first {
		a.logger.Warn().Msg("shutdown already in progress, ignoring re-signal")
	}
}
