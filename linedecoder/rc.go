package linedecoder

import "gitlab.com/kockalogger/kockalogger/parser"

// RC reassembles the rc IRC channel's EDIT/LOG lines per spec.md
// §4.4's reassembly rule: a canonical line (one starting with
// \x0314) opens a new buffer; any line that isn't canonical is an
// overflow tail of the previous one. The buffer flushes when the
// next canonical line arrives.
type RC struct {
	pending    string
	tail       string
	hasPending bool
}

// NewRC builds an empty RC decoder.
func NewRC() *RC {
	return &RC{}
}

// Feed implements Decoder.
func (d *RC) Feed(line string) (parser.RawMessage, bool) {
	if !parser.IsCanonicalRCLine(line) {
		if d.hasPending {
			d.tail += line
		}
		// A non-canonical line with no pending buffer has nothing to
		// attach to; it's discarded, matching the Discussions
		// channel's "no buffer active" rule applied to RC overflow.
		return parser.RawMessage{}, false
	}

	var out parser.RawMessage
	var ok bool
	if d.hasPending {
		out, ok = d.flush()
	}
	d.pending = line
	d.tail = ""
	d.hasPending = true
	return out, ok
}

// flush assembles the pending buffer, retrying once with an inserted
// space at the buffer/tail boundary if the concatenation doesn't
// match either RC grammar (spec.md §4.4's "MediaWiki sometimes drops
// the space at the chunk boundary" note).
func (d *RC) flush() (parser.RawMessage, bool) {
	if d.tail == "" {
		return parser.RawMessage{Channel: parser.ChannelRC, Raw: d.pending}, true
	}

	joined := d.pending + d.tail
	if matchesRCGrammar(joined) {
		return parser.RawMessage{Channel: parser.ChannelRC, Raw: joined}, true
	}

	spaced := d.pending + " " + d.tail
	if matchesRCGrammar(spaced) {
		return parser.RawMessage{Channel: parser.ChannelRC, Raw: spaced}, true
	}

	// Neither candidate matches; hand the unspaced join to the parser
	// so it surfaces rcerror/logparsefail itself (spec.md §4.5).
	return parser.RawMessage{Channel: parser.ChannelRC, Raw: joined}, true
}

func matchesRCGrammar(line string) bool {
	return parser.EditLineRegex.MatchString(line) || parser.LogLineRegex.MatchString(line)
}
