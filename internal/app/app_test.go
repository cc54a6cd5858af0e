package app

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/kockalogger/kockalogger/cache"
	"gitlab.com/kockalogger/kockalogger/dispatcher"
	"gitlab.com/kockalogger/kockalogger/linedecoder"
	"gitlab.com/kockalogger/kockalogger/parser"
)

// newTestApp builds an App whose network-touching fields point at
// addresses nothing listens on: the tests below exercise the
// intake/shutdown state machine only, never Run's loader rebuild or
// an actual Redis round trip.
func newTestApp(t *testing.T) *App {
	t.Helper()

	rootCtx, cancel := context.WithCancel(context.Background())
	ingestCtx, ingestCancel := context.WithCancel(context.Background())

	return &App{
		logger:         zerolog.Nop(),
		parser:         parser.New(cache.New(), zerolog.Nop()),
		dispatcher:     dispatcher.New(nil, nil, nil, nil, zerolog.Nop()),
		commandRedis:   redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		subscribeRedis: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		drainTimeout:   50 * time.Millisecond, //nolint:mnd
		decoders: map[parser.Channel]linedecoder.Decoder{
			parser.ChannelNewusers: linedecoder.NewNewusers(),
		},
		intake: map[parser.Channel]chan string{
			parser.ChannelNewusers: make(chan string, 8), //nolint:mnd
		},
		rootCtx:      rootCtx,
		cancel:       cancel,
		ingestCtx:    ingestCtx,
		ingestCancel: ingestCancel,
		shuttingDown: make(chan struct{}),
	}
}

func TestIngestLineAcceptsBeforeShutdown(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	a.IngestLine(parser.ChannelNewusers, "Alice https://community.fandom.com newusers")

	select {
	case raw := <-a.intake[parser.ChannelNewusers]:
		assert.Contains(t, raw, "newusers")
	default:
		t.Fatal("expected line to be queued")
	}
}

func TestIngestLineNoopsAfterShutdown(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	close(a.shuttingDown)

	a.IngestLine(parser.ChannelNewusers, "Alice https://community.fandom.com newusers")

	select {
	case <-a.intake[parser.ChannelNewusers]:
		t.Fatal("line should have been dropped after shutdown")
	default:
	}
}

func TestShutdownDrainsBufferedLinesBeforeReturning(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	intake := a.intake[parser.ChannelNewusers]
	intake <- "Alice https://community.fandom.com newusers"
	intake <- "Bob https://community.fandom.com newusers"

	a.wg.Add(1)
	go a.consume(parser.ChannelNewusers, intake)

	a.Shutdown()

	select {
	case <-intake:
		t.Fatal("intake should have been fully drained by shutdown")
	default:
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	require.NotPanics(t, func() {
		a.Shutdown()
		a.Shutdown()
	})
}

func TestShutdownCancelsRootContext(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	a.Shutdown()

	select {
	case <-a.rootCtx.Done():
	default:
		t.Fatal("expected rootCtx to be cancelled after shutdown")
	}
}
