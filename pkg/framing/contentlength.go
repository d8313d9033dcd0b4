package framing

import (
	"bytes"
	"strconv"
	"strings"
)

// contentLengthState is the framer's three-state machine.
type contentLengthState int

const (
	waitingForHeaderNameOrBlockEnd contentLengthState = iota
	waitingForHeaderValue
	waitingForPayload
)

// ContentLengthDecoder frames messages behind an HTTP-style header block
// terminated by "\r\n\r\n", as used by the Language Server Protocol.
//
// Header names are lowercased and trimmed; only content-length is
// interpreted, every other header is skipped. The value must parse as an
// unsigned 32-bit integer. A block that ends without the header fails with
// ErrMissingContentLength. A zero-length payload is emitted as a 0-byte
// message as soon as the block terminator is seen.
type ContentLengthDecoder struct {
	buf buffer

	state         contentLengthState
	pendingName   string
	contentLength *uint32
}

// NewContentLengthDecoder creates a Content-Length framer.
func NewContentLengthDecoder() *ContentLengthDecoder {
	return &ContentLengthDecoder{}
}

// Append feeds stream bytes into the decoder.
func (d *ContentLengthDecoder) Append(data []byte) {
	d.buf.write(data)
}

// Next pops the next complete payload, or nil when more data is needed.
// The zero-length payload is returned as a non-nil empty slice.
func (d *ContentLengthDecoder) Next() ([]byte, error) {
	for {
		switch d.state {
		case waitingForHeaderNameOrBlockEnd:
			window := d.buf.peek(d.buf.len())

			// A leading CRLF terminates the header block
			if len(window) >= 2 && window[0] == '\r' && window[1] == '\n' {
				d.buf.skip(2)
				if d.contentLength == nil {
					return nil, ErrMissingContentLength
				}
				d.state = waitingForPayload
				continue
			}
			if len(window) == 1 && window[0] == '\r' {
				return nil, nil
			}

			colon := bytes.IndexByte(window, ':')
			crlf := bytes.Index(window, []byte("\r\n"))

			// A line that ends before any colon carries no header: skip it
			if crlf >= 0 && (colon < 0 || crlf < colon) {
				d.buf.skip(crlf + 2)
				continue
			}
			if colon < 0 {
				return nil, nil
			}

			name := strings.ToLower(strings.TrimSpace(string(window[:colon])))
			d.buf.skip(colon + 1)
			d.pendingName = name
			d.state = waitingForHeaderValue

		case waitingForHeaderValue:
			window := d.buf.peek(d.buf.len())
			idx := bytes.Index(window, []byte("\r\n"))
			if idx < 0 {
				return nil, nil
			}

			value := strings.TrimSpace(string(window[:idx]))
			d.buf.skip(idx + 2)

			if d.pendingName == "content-length" {
				parsed, err := strconv.ParseUint(value, 10, 32)
				if err != nil {
					return nil, &IllegalContentLengthError{Raw: value}
				}
				length := uint32(parsed)
				d.contentLength = &length
			}
			d.pendingName = ""
			d.state = waitingForHeaderNameOrBlockEnd

		case waitingForPayload:
			length := int(*d.contentLength)
			if d.buf.len() < length {
				return nil, nil
			}

			payload := d.buf.take(length)
			d.contentLength = nil
			d.state = waitingForHeaderNameOrBlockEnd
			return payload, nil
		}
	}
}

// Close reports a partially received header block or payload as leftover.
// A terminated header block whose payload never arrived counts as
// mid-frame even when no payload bytes are buffered yet.
func (d *ContentLengthDecoder) Close() error {
	if d.state == waitingForPayload {
		return &LeftoverBytesError{Bytes: d.buf.rest()}
	}
	return d.buf.closeLeftover()
}
