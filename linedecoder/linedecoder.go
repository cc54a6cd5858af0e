// Package linedecoder reassembles fragmented IRC feed lines into
// complete parser.RawMessage values, one Decoder per channel kind, per
// spec.md §4.4. IRC chunks a line at a fixed byte limit; the decoders
// here undo that chunking before handing a line to the parser.
package linedecoder

import "gitlab.com/kockalogger/kockalogger/parser"

// Decoder turns a stream of possibly-fragmented lines on one IRC
// channel into complete RawMessage values. Feed is not safe for
// concurrent use by multiple goroutines on the same Decoder instance;
// spec.md §5 gives each channel its own decoder and reader goroutine.
type Decoder interface {
	// Feed consumes one raw IRC line. It returns a RawMessage and true
	// once a complete message has been reassembled, or false if line
	// was buffered (or discarded) pending more input.
	Feed(line string) (parser.RawMessage, bool)
}
