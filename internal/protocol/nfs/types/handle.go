package types

import (
	"encoding/binary"
	"fmt"
)

// FileHandleMaxLen is the maximum file handle length allowed by RFC 1813
// (NFS3_FHSIZE). The type can carry the full 64 bytes.
const FileHandleMaxLen = 64

// FileHandleLen is the handle length this implementation produces and
// accepts: exactly 8 bytes, interpreted as a big-endian 64-bit file id.
// Rejecting any other length is part of the contract with the shipped
// backend; the FileHandle type itself stays general.
const FileHandleLen = 8

// FileHandle is an NFSv3 file handle: a variable-length opaque of at most
// 64 bytes identifying a filesystem object.
type FileHandle []byte

// NewFileHandle builds the canonical 8-byte handle for a 64-bit file id.
func NewFileHandle(fileID uint64) FileHandle {
	h := make(FileHandle, FileHandleLen)
	binary.BigEndian.PutUint64(h, fileID)
	return h
}

// Validate checks the handle against the implementation's 8-byte contract.
func (h FileHandle) Validate() error {
	if len(h) != FileHandleLen {
		return &InvalidFileHandleError{Length: len(h)}
	}
	return nil
}

// FileID returns the 64-bit file id carried by a canonical handle.
// The handle must have been validated first.
func (h FileHandle) FileID() uint64 {
	return binary.BigEndian.Uint64(h)
}

// String renders the handle as hex for logging.
func (h FileHandle) String() string {
	return fmt.Sprintf("%x", []byte(h))
}

// ParseFileHandle validates raw handle bytes. Handles longer than the RFC
// limit or different from the implementation's 8-byte form are rejected.
func ParseFileHandle(raw []byte) (FileHandle, error) {
	if len(raw) != FileHandleLen {
		return nil, &InvalidFileHandleError{Length: len(raw)}
	}
	h := make(FileHandle, FileHandleLen)
	copy(h, raw)
	return h, nil
}

// InvalidFileHandleError reports a handle whose length violates the
// implementation's contract.
type InvalidFileHandleError struct {
	Length int
}

func (e *InvalidFileHandleError) Error() string {
	return fmt.Sprintf("invalid file handle format: %d bytes (want %d)", e.Length, FileHandleLen)
}
