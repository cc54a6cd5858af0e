// Command kockalogger wires up the framework glue and blocks until an
// interrupt or terminate signal asks it to drain and stop. Joining the
// IRC channels themselves is left to whatever library the embedding
// deployment prefers (spec.md §1 Non-goals); this binary is a minimal
// host that feeds lines read from stdin into the pipeline, one per
// line, in "channel raw-line" form.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/kockalogger/kockalogger/config"
	"gitlab.com/kockalogger/kockalogger/internal/app"
	"gitlab.com/kockalogger/kockalogger/parser"
)

func main() {
	var flags Flags
	kong.Parse(&flags, kong.UsageOnError())

	if errE := run(&flags); errE != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", errE)
		os.Exit(1)
	}
}

// run builds the App around a minimal configuration populated from
// flags (a full config.Config is a caller's own concern — see
// Flags), starts it, and blocks until Run returns, per spec.md §5's
// shutdown algorithm: SIGINT/SIGTERM trigger App.Shutdown, which
// drains in-flight work before Run itself unblocks.
func run(flags *Flags) errors.E {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := zerolog.InfoLevel
	if flags.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	cfg := config.Config{
		Cache: config.CacheConfig{Dir: flags.CacheDir},
		Log:   config.LogConfig{Debug: flags.Debug},
	}

	a, errE := app.New(ctx, cfg, flags.Fetch, nil, logger)
	if errE != nil {
		return errors.WithMessage(errE, "failed to build app")
	}

	go readStdin(a)

	runDone := make(chan errors.E, 1)
	go func() {
		runDone <- a.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case errE := <-runDone:
		a.Shutdown()
		return errE
	}
	a.Shutdown()

	return <-runDone
}

// readStdin feeds "channel raw-line" pairs from stdin into the App,
// the minimal bridge between an external IRC client process and
// IngestLine. It returns once stdin is closed.
func readStdin(a *app.App) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) //nolint:mnd
	for scanner.Scan() {
		channel, raw, ok := strings.Cut(scanner.Text(), " ")
		if !ok {
			continue
		}
		switch channel {
		case "rc":
			a.IngestLine(parser.ChannelRC, raw)
		case "discussions":
			a.IngestLine(parser.ChannelDiscussions, raw)
		case "newusers":
			a.IngestLine(parser.ChannelNewusers, raw)
		default:
			fmt.Fprintf(os.Stderr, "unknown channel %q\n", channel)
		}
	}
}
