// Package v3 implements the NFS version 3 procedure codecs (RFC 1813).
//
// Each procedure has a request and a response structure together with XDR
// encode/decode routines for both directions, so the same codecs serve the
// server (decode request, encode response) and the client (encode request,
// decode response). The RPC envelope is handled by the rpc package; the
// codecs here read and write only the NFS-level bodies.
package v3

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// Program is the NFS program number.
const Program uint32 = 100003

// Version is the NFS program version implemented by this package.
const Version uint32 = 3

// NFSv3 procedure numbers (RFC 1813 Section 3).
const (
	ProcNull        uint32 = 0
	ProcGetAttr     uint32 = 1
	ProcSetAttr     uint32 = 2
	ProcLookup      uint32 = 3
	ProcAccess      uint32 = 4
	ProcReadlink    uint32 = 5
	ProcRead        uint32 = 6
	ProcReadDir     uint32 = 16
	ProcReadDirPlus uint32 = 17
	ProcFSStat      uint32 = 18
	ProcFSInfo      uint32 = 19
	ProcPathConf    uint32 = 20
)

// ProcedureName returns the RFC 1813 name for a procedure number, for
// logging and metrics labels.
func ProcedureName(proc uint32) string {
	switch proc {
	case ProcNull:
		return "NULL"
	case ProcGetAttr:
		return "GETATTR"
	case ProcSetAttr:
		return "SETATTR"
	case ProcLookup:
		return "LOOKUP"
	case ProcAccess:
		return "ACCESS"
	case ProcReadlink:
		return "READLINK"
	case ProcRead:
		return "READ"
	case ProcReadDir:
		return "READDIR"
	case ProcReadDirPlus:
		return "READDIRPLUS"
	case ProcFSStat:
		return "FSSTAT"
	case ProcFSInfo:
		return "FSINFO"
	case ProcPathConf:
		return "PATHCONF"
	default:
		return fmt.Sprintf("PROC(%d)", proc)
	}
}

// NFSResponseBase carries the status code shared by every response.
type NFSResponseBase struct {
	Status types.Status
}

// GetStatus returns the NFS status of the response.
func (b NFSResponseBase) GetStatus() types.Status {
	return b.Status
}

// writeStatus writes the status discriminant that opens every reply body.
func writeStatus(buf *bytes.Buffer, status types.Status) error {
	return xdr.WriteUint32(buf, uint32(status))
}

// readStatus reads and validates the status discriminant.
func readStatus(r io.Reader) (types.Status, error) {
	raw, err := xdr.DecodeUint32(r)
	if err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	return types.ParseStatus(raw)
}

// decodeHandleOnlyRequest covers the procedures whose argument is a bare
// file handle (GETATTR, READLINK, FSSTAT, FSINFO, PATHCONF).
func decodeHandleOnlyRequest(data []byte) (types.FileHandle, error) {
	r := bytes.NewReader(data)
	handle, err := nfsxdr.DecodeFileHandle(r)
	if err != nil {
		return nil, fmt.Errorf("decode file handle: %w", err)
	}
	return handle, nil
}

// encodeHandleOnlyRequest is the matching encoder for the client side.
func encodeHandleOnlyRequest(handle types.FileHandle) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := nfsxdr.EncodeFileHandle(buf, handle); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
