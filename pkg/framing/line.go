package framing

import "bytes"

// LineDecoder splits the stream on '\n', stripping one preceding '\r' if
// present.
//
// The decoder remembers how far it has already scanned, so repeated Next
// calls over partial reads stay linear in the stream size instead of
// rescanning the buffered prefix quadratically.
type LineDecoder struct {
	buf buffer

	// lastScanOffset is the index relative to the unconsumed window up to
	// which no '\n' exists.
	lastScanOffset int
}

// NewLineDecoder creates a line decoder.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{}
}

// Append feeds stream bytes into the decoder.
func (d *LineDecoder) Append(data []byte) {
	d.buf.write(data)
}

// Next pops the next complete line without its terminator, or nil (with
// ok=false) when no full line is buffered. An empty line yields a zero-
// length, non-nil result.
func (d *LineDecoder) Next() ([]byte, bool) {
	window := d.buf.peek(d.buf.len())

	idx := bytes.IndexByte(window[d.lastScanOffset:], '\n')
	if idx < 0 {
		d.lastScanOffset = len(window)
		return nil, false
	}
	nl := d.lastScanOffset + idx

	line := window[:nl]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	out := make([]byte, len(line))
	copy(out, line)

	d.buf.skip(nl + 1)
	d.lastScanOffset = 0
	return out, true
}

// Close reports a pending unterminated line as leftover.
func (d *LineDecoder) Close() error {
	return d.buf.closeLeftover()
}
