// Package xdr provides generic XDR (External Data Representation) encoding and
// decoding utilities per RFC 4506.
//
// XDR is the standard data serialization format used by Sun RPC protocols
// including NFS and the MOUNT protocol. This package provides protocol-agnostic
// utilities shared across the protocol implementations in this module.
//
// Key characteristics of XDR:
//   - Big-endian byte order for all multi-byte integers
//   - 4-byte alignment for all data types
//   - Variable-length data is preceded by a 4-byte length
//   - Strings and opaque data are padded to 4-byte boundaries
//
// This package contains only generic utilities with no dependencies on other
// packages in this module (no logger or protocol types).
//
// Reference: RFC 4506 - XDR: External Data Representation Standard
// https://tools.ietf.org/html/rfc4506
package xdr

import (
	"errors"
	"fmt"
)

// PadByte is the filler byte written after variable-length data to reach
// 4-byte alignment. Readers must skip padding without inspecting it.
const PadByte byte = 0x00

// MaxOpaqueLength bounds variable-length opaque fields to protect against
// malicious length prefixes. NFS does not carry opaque fields larger than
// 1 MB outside of READ/WRITE payloads, which use their own limit.
const MaxOpaqueLength = 1024 * 1024

// ErrShortBuffer is returned when the input ends before a complete XDR
// item could be decoded.
var ErrShortBuffer = errors.New("xdr: unexpected end of data")

// shortBuffer wraps ErrShortBuffer with the item that was being decoded.
func shortBuffer(what string) error {
	return fmt.Errorf("decode %s: %w", what, ErrShortBuffer)
}

// Padding returns the number of pad bytes (0-3) required after dataLen
// bytes of variable-length data.
func Padding(dataLen uint32) uint32 {
	return (4 - (dataLen % 4)) % 4
}
