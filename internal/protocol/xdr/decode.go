package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
// XDR Decoding Helpers - Wire Format → Go Types
// ============================================================================

// DecodeUint32 decodes a 32-bit unsigned integer from XDR format.
//
// Per RFC 4506 Section 4.1, integers are encoded in big-endian byte order.
func DecodeUint32(reader io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return 0, wrapEOF(err, "uint32")
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// DecodeUint64 decodes a 64-bit unsigned integer (XDR unsigned hyper).
//
// Per RFC 4506 Section 4.5, hyper integers are encoded in big-endian byte order.
func DecodeUint64(reader io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return 0, wrapEOF(err, "uint64")
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// DecodeInt32 decodes a 32-bit signed integer from XDR format.
func DecodeInt32(reader io.Reader) (int32, error) {
	v, err := DecodeUint32(reader)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// DecodeBool decodes an XDR boolean.
//
// Per RFC 4506 Section 4.4, booleans are encoded as uint32 where 0 = false
// and any non-zero value = true (typically 1).
func DecodeBool(reader io.Reader) (bool, error) {
	v, err := DecodeUint32(reader)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DecodeOpaque decodes XDR variable-length opaque data.
//
// Per RFC 4506 Section 4.10 (Variable-Length Opaque Data):
// Format: [length:uint32][data:length bytes][padding:0-3 bytes]
// Padding aligns the next item to a 4-byte boundary; its contents are
// ignored.
func DecodeOpaque(reader io.Reader) ([]byte, error) {
	length, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	// Protect against malicious length prefixes
	if length > MaxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, MaxOpaqueLength)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, wrapEOF(err, "opaque data")
	}

	if err := SkipPadding(reader, length); err != nil {
		return nil, err
	}

	return data, nil
}

// DecodeOpaqueBounded decodes variable-length opaque data whose length must
// not exceed max. Used for fields with protocol-mandated limits such as RPC
// auth bodies (400 bytes) and file handles (64 bytes).
func DecodeOpaqueBounded(reader io.Reader, max uint32) ([]byte, error) {
	length, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if length > max {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, max)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, wrapEOF(err, "opaque data")
	}

	if err := SkipPadding(reader, length); err != nil {
		return nil, err
	}

	return data, nil
}

// DecodeFixedOpaque decodes fixed-length opaque data of exactly n bytes
// plus alignment padding.
//
// Per RFC 4506 Section 4.9 (Fixed-Length Opaque Data), fixed opaques carry
// no length prefix; the size is implied by the protocol.
func DecodeFixedOpaque(reader io.Reader, n uint32) ([]byte, error) {
	data := make([]byte, n)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, wrapEOF(err, "fixed opaque")
	}
	if err := SkipPadding(reader, n); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodeString decodes an XDR variable-length string.
//
// Per RFC 4506 Section 4.11, strings use the same encoding as opaque data
// but are interpreted as UTF-8.
func DecodeString(reader io.Reader) (string, error) {
	data, err := DecodeOpaque(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUint32List decodes an XDR counted array of uint32 values.
//
// Format: [count:uint32][value:uint32 × count]
func DecodeUint32List(reader io.Reader) ([]uint32, error) {
	count, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	// A count larger than the remaining input could allocate wildly; the
	// opaque bound is a reasonable ceiling for entry counts as well.
	if count > MaxOpaqueLength/4 {
		return nil, fmt.Errorf("list count %d exceeds maximum %d", count, MaxOpaqueLength/4)
	}

	values := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := DecodeUint32(reader)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// DecodeOptional decodes the XDR optional-data discriminant.
//
// Per RFC 4506 Section 4.19, optional data is a union over a boolean: a
// uint32 0/1 flag followed by the value when the flag is 1. The caller
// decodes the value itself when the returned flag is true.
func DecodeOptional(reader io.Reader) (bool, error) {
	return DecodeBool(reader)
}

// SkipPadding consumes the 0-3 alignment bytes that follow dataLen bytes of
// variable-length data. The padding contents are arbitrary filler and are
// discarded.
func SkipPadding(reader io.Reader, dataLen uint32) error {
	padding := Padding(dataLen)
	if padding == 0 {
		return nil
	}
	var padBuf [3]byte
	if _, err := io.ReadFull(reader, padBuf[:padding]); err != nil {
		return wrapEOF(err, "padding")
	}
	return nil
}

// wrapEOF converts io.EOF / io.ErrUnexpectedEOF into the package's
// out-of-data error so callers can test with errors.Is(err, ErrShortBuffer).
func wrapEOF(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return shortBuffer(what)
	}
	return fmt.Errorf("read %s: %w", what, err)
}
