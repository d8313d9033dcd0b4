package framing

import (
	"encoding/binary"
	"fmt"
)

// Endianness selects the byte order of the length field.
type Endianness int

const (
	BigEndian Endianness = iota
	LittleEndian
)

// validFieldLengths are the supported length-field widths in bytes.
var validFieldLengths = map[int]bool{1: true, 2: true, 3: true, 4: true, 8: true}

// lengthFieldState is the decoder's two-state machine.
type lengthFieldState int

const (
	waitingForHeader lengthFieldState = iota
	waitingForFrame
)

// LengthFieldDecoder decodes frames preceded by a fixed-width integer
// giving the body length. Supported field widths are 1, 2, 3, 4, and 8
// bytes in either byte order; a 3-byte field carries 0..2^24-1.
type LengthFieldDecoder struct {
	fieldLength int
	endianness  Endianness

	state       lengthFieldState
	frameLength int
	buf         buffer
}

// NewLengthFieldDecoder creates a decoder with the given field width and
// byte order.
func NewLengthFieldDecoder(fieldLength int, endianness Endianness) (*LengthFieldDecoder, error) {
	if !validFieldLengths[fieldLength] {
		return nil, fmt.Errorf("framing: unsupported length field width %d", fieldLength)
	}
	return &LengthFieldDecoder{fieldLength: fieldLength, endianness: endianness}, nil
}

// Append feeds stream bytes into the decoder.
func (d *LengthFieldDecoder) Append(data []byte) {
	d.buf.write(data)
}

// Next pops the next complete frame, or nil when more data is needed.
func (d *LengthFieldDecoder) Next() ([]byte, error) {
	for {
		switch d.state {
		case waitingForHeader:
			if d.buf.len() < d.fieldLength {
				return nil, nil
			}
			length, err := decodeLength(d.buf.take(d.fieldLength), d.endianness)
			if err != nil {
				return nil, err
			}
			d.frameLength = length
			d.state = waitingForFrame

		case waitingForFrame:
			if d.buf.len() < d.frameLength {
				return nil, nil
			}
			frame := d.buf.take(d.frameLength)
			d.state = waitingForHeader
			d.frameLength = 0
			return frame, nil
		}
	}
}

// Close reports a partially received header or frame as leftover. A
// consumed header whose frame never arrived counts as mid-frame even when
// no body bytes are buffered yet.
func (d *LengthFieldDecoder) Close() error {
	if d.state == waitingForFrame {
		return &LeftoverBytesError{Bytes: d.buf.rest()}
	}
	return d.buf.closeLeftover()
}

// decodeLength reads the fixed-width length value.
func decodeLength(field []byte, endianness Endianness) (int, error) {
	var v uint64
	if endianness == BigEndian {
		for _, b := range field {
			v = v<<8 | uint64(b)
		}
	} else {
		for i := len(field) - 1; i >= 0; i-- {
			v = v<<8 | uint64(field[i])
		}
	}
	if v > uint64(int(^uint(0)>>1)) {
		return 0, fmt.Errorf("framing: frame length %d overflows", v)
	}
	return int(v), nil
}

// LengthFieldEncoder prepends the body length to outgoing frames using the
// same field widths and byte orders as the decoder.
type LengthFieldEncoder struct {
	fieldLength int
	endianness  Endianness
	max         uint64
}

// NewLengthFieldEncoder creates an encoder with the given field width and
// byte order.
func NewLengthFieldEncoder(fieldLength int, endianness Endianness) (*LengthFieldEncoder, error) {
	if !validFieldLengths[fieldLength] {
		return nil, fmt.Errorf("framing: unsupported length field width %d", fieldLength)
	}
	max := ^uint64(0)
	if fieldLength < 8 {
		max = 1<<(8*fieldLength) - 1
	}
	return &LengthFieldEncoder{fieldLength: fieldLength, endianness: endianness, max: max}, nil
}

// MaxFrameLength is the largest encodable body.
func (e *LengthFieldEncoder) MaxFrameLength() uint64 {
	return e.max
}

// Encode returns the frame prefixed with its length field. A body larger
// than the field can express fails with ErrMessageTooLong and nothing is
// emitted.
func (e *LengthFieldEncoder) Encode(frame []byte) ([]byte, error) {
	length := uint64(len(frame))
	if length > e.max {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLong, length, e.max)
	}

	out := make([]byte, e.fieldLength+len(frame))
	writeLength(out[:e.fieldLength], length, e.endianness)
	copy(out[e.fieldLength:], frame)
	return out, nil
}

// writeLength stores the length value into the field bytes.
func writeLength(field []byte, v uint64, endianness Endianness) {
	switch {
	case endianness == BigEndian && len(field) == 4:
		binary.BigEndian.PutUint32(field, uint32(v))
	case endianness == LittleEndian && len(field) == 4:
		binary.LittleEndian.PutUint32(field, uint32(v))
	case endianness == BigEndian:
		for i := len(field) - 1; i >= 0; i-- {
			field[i] = byte(v)
			v >>= 8
		}
	default:
		for i := 0; i < len(field); i++ {
			field[i] = byte(v)
			v >>= 8
		}
	}
}
