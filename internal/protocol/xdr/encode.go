package xdr

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ============================================================================
// XDR Encoding Helpers - Go Types → Wire Format
// ============================================================================

// WriteUint32 encodes a 32-bit unsigned integer in big-endian byte order.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	if _, err := buf.Write(b[:]); err != nil {
		return fmt.Errorf("write uint32: %w", err)
	}
	return nil
}

// WriteUint64 encodes a 64-bit unsigned integer (XDR unsigned hyper) in
// big-endian byte order.
func WriteUint64(buf *bytes.Buffer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	if _, err := buf.Write(b[:]); err != nil {
		return fmt.Errorf("write uint64: %w", err)
	}
	return nil
}

// WriteInt32 encodes a 32-bit signed integer in two's complement,
// big-endian byte order.
func WriteInt32(buf *bytes.Buffer, v int32) error {
	return WriteUint32(buf, uint32(v))
}

// WriteBool encodes an XDR boolean as uint32 0 or 1.
//
// Per RFC 4506 Section 4.4.
func WriteBool(buf *bytes.Buffer, v bool) error {
	if v {
		return WriteUint32(buf, 1)
	}
	return WriteUint32(buf, 0)
}

// WriteXDROpaque encodes opaque data in XDR format: length + data + padding.
//
// Per RFC 4506 Section 4.10 (Variable-Length Opaque Data):
// Format: [length:uint32][data:bytes][padding:0-3 bytes]
//
// Example:
//
//	[]byte{0x01, 0x02, 0x03} → [00 00 00 03][01 02 03][00] (8 bytes total)
func WriteXDROpaque(buf *bytes.Buffer, data []byte) error {
	length := uint32(len(data))
	if err := WriteUint32(buf, length); err != nil {
		return fmt.Errorf("write opaque length: %w", err)
	}

	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write opaque data: %w", err)
	}

	return WriteXDRPadding(buf, length)
}

// WriteXDRString encodes a string in XDR format: length + data + padding.
//
// Per RFC 4506 Section 4.11 (String). The string bytes are written as-is
// and interpreted as UTF-8 by readers.
//
// Example:
//
//	"abc" (3 bytes) → [00 00 00 03][61 62 63][00] (8 bytes total)
//	"test" (4 bytes) → [00 00 00 04][74 65 73 74] (8 bytes total)
func WriteXDRString(buf *bytes.Buffer, s string) error {
	length := uint32(len(s))
	if err := WriteUint32(buf, length); err != nil {
		return fmt.Errorf("write string length: %w", err)
	}

	if _, err := buf.WriteString(s); err != nil {
		return fmt.Errorf("write string data: %w", err)
	}

	return WriteXDRPadding(buf, length)
}

// WriteXDRFixedOpaque encodes fixed-length opaque data (no length prefix)
// plus alignment padding.
//
// Per RFC 4506 Section 4.9.
func WriteXDRFixedOpaque(buf *bytes.Buffer, data []byte) error {
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("write fixed opaque: %w", err)
	}
	return WriteXDRPadding(buf, uint32(len(data)))
}

// WriteXDRPadding writes the 0-3 pad bytes that align dataLen bytes of
// variable-length data to a 4-byte boundary. The pad value is PadByte.
func WriteXDRPadding(buf *bytes.Buffer, dataLen uint32) error {
	padding := Padding(dataLen)
	for i := uint32(0); i < padding; i++ {
		if err := buf.WriteByte(PadByte); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}
	return nil
}

// WriteUint32List encodes an XDR counted array of uint32 values.
//
// Format: [count:uint32][value:uint32 × count]
func WriteUint32List(buf *bytes.Buffer, values []uint32) error {
	if err := WriteUint32(buf, uint32(len(values))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, v := range values {
		if err := WriteUint32(buf, v); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
	}
	return nil
}

// WriteOptional writes the XDR optional-data discriminant. The caller
// encodes the value itself when present is true.
//
// Per RFC 4506 Section 4.19.
func WriteOptional(buf *bytes.Buffer, present bool) error {
	return WriteBool(buf, present)
}
