package linedecoder

import (
	"strings"

	"gitlab.com/kockalogger/kockalogger/parser"
)

// Newusers passes through the newusers IRC channel's single-line
// messages unchanged, per spec.md §4.4: every complete message is one
// line ending with the literal token "newusers". Anything else yields
// ok=false and an empty RawMessage; the line is not kept, and the
// framework glue drops it without logging it.
type Newusers struct{}

// NewNewusers builds a Newusers decoder. It is stateless: every Feed
// call is independent.
func NewNewusers() *Newusers {
	return &Newusers{}
}

// Feed implements Decoder. It returns the line with true for a
// well-formed line, and an empty RawMessage with false for a malformed
// one.
func (d *Newusers) Feed(line string) (parser.RawMessage, bool) {
	if !strings.HasSuffix(line, "newusers") {
		return parser.RawMessage{}, false
	}
	return parser.RawMessage{Channel: parser.ChannelNewusers, Raw: line}, true
}
