package linedecoder

import (
	"strings"

	"gitlab.com/kockalogger/kockalogger/parser"
)

// Discussions reassembles the discussions IRC channel's JSON blobs
// per spec.md §4.4: a line starting with "{" begins a buffer, a line
// ending with "}" completes it, and any other line is discarded
// unless a buffer is already open.
type Discussions struct {
	buf    strings.Builder
	active bool
}

// NewDiscussions builds an empty Discussions decoder.
func NewDiscussions() *Discussions {
	return &Discussions{}
}

// Feed implements Decoder.
func (d *Discussions) Feed(line string) (parser.RawMessage, bool) {
	if !d.active {
		if !strings.HasPrefix(line, "{") {
			return parser.RawMessage{}, false
		}
		d.active = true
		d.buf.Reset()
	} else {
		d.buf.WriteByte('\n')
	}
	d.buf.WriteString(line)

	if !strings.HasSuffix(line, "}") {
		return parser.RawMessage{}, false
	}

	raw := d.buf.String()
	d.buf.Reset()
	d.active = false
	return parser.RawMessage{Channel: parser.ChannelDiscussions, Raw: raw}, true
}
