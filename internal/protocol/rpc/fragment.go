package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxFragmentSize is the maximum fragment body accepted by default.
// It leaves headroom above the advertised READ transfer sizes for the RPC
// and NFS headers.
const DefaultMaxFragmentSize = (1 << 20) + (1 << 18) // 1MB + 256KB headroom

// lastFragmentBit marks the final fragment of a record in the record-marking
// header (RFC 5531 Section 11).
const lastFragmentBit = 0x80000000

// FragmentHeader is a parsed RPC record-marking fragment header.
//
// The header is 4 bytes:
//   - Bit 31: last fragment flag (1 = last, 0 = more fragments follow)
//   - Bits 0-30: fragment body length in bytes
type FragmentHeader struct {
	IsLast bool
	Length uint32
}

// ReadFragmentHeader reads and parses the 4-byte fragment header.
//
// EOF before the first header byte is returned as io.EOF so callers can
// detect a clean client disconnect; EOF mid-header is io.ErrUnexpectedEOF.
func ReadFragmentHeader(r io.Reader) (*FragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	header := binary.BigEndian.Uint32(buf[:])
	return &FragmentHeader{
		IsLast: header&lastFragmentBit != 0,
		Length: header & 0x7FFFFFFF,
	}, nil
}

// ValidateFragmentSize checks the fragment length against max.
// This prevents memory exhaustion from malicious or corrupt headers.
func ValidateFragmentSize(length, max uint32) error {
	if length > max {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFragmentTooLong, length, max)
	}
	return nil
}

// ReadRecord reads one complete RPC record: it consumes fragments until the
// one carrying the last-fragment bit and returns the concatenated bodies.
// Most peers send single-fragment records, so the common case is one
// allocation sized by the first header.
//
// The accumulated record length is bounded by max across all fragments.
func ReadRecord(r io.Reader, max uint32) ([]byte, error) {
	var record []byte

	for {
		header, err := ReadFragmentHeader(r)
		if err != nil {
			if record == nil {
				return nil, err
			}
			// Mid-record EOF is a protocol violation, not a clean close
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		if err := ValidateFragmentSize(uint32(len(record))+header.Length, max); err != nil {
			return nil, err
		}

		body := make([]byte, header.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("read fragment body: %w", err)
		}

		if record == nil && header.IsLast {
			return body, nil
		}
		record = append(record, body...)

		if header.IsLast {
			return record, nil
		}
	}
}

// WriteRecord writes msg as a single fragment with the last bit set.
// The fragment header is prepended after the body is complete because the
// header needs the total length up front.
func WriteRecord(w io.Writer, msg []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(msg))|lastFragmentBit)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write fragment header: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write fragment body: %w", err)
	}
	return nil
}

// AppendRecordHeader returns msg prefixed with its single-fragment record
// header. Useful when the caller wants one buffer for a single write.
func AppendRecordHeader(msg []byte) []byte {
	out := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(out[:4], uint32(len(msg))|lastFragmentBit)
	copy(out[4:], msg)
	return out
}
