// Package mount implements the MOUNT version 3 protocol codecs
// (RFC 1813 Appendix I). MOUNT is the companion program NFS clients use to
// translate an export path into the initial file handle.
package mount

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/rpc"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// Program is the MOUNT program number.
const Program uint32 = 100005

// Version is the MOUNT program version implemented by this package.
const Version uint32 = 3

// MOUNT procedure numbers.
const (
	ProcNull    uint32 = 0
	ProcMount   uint32 = 1
	ProcUnmount uint32 = 3
)

// MaxPathLen is the MNTPATHLEN limit on dirpath strings.
const MaxPathLen = 1024

// ProcedureName returns the protocol name for a procedure number.
func ProcedureName(proc uint32) string {
	switch proc {
	case ProcNull:
		return "NULL"
	case ProcMount:
		return "MNT"
	case ProcUnmount:
		return "UMNT"
	default:
		return fmt.Sprintf("PROC(%d)", proc)
	}
}

// Status is a mountstat3 value. The error values mirror the NFS status
// codes of the same name.
type Status uint32

const (
	MountOK             Status = 0
	MountErrPerm        Status = 1
	MountErrNoEnt       Status = 2
	MountErrIO          Status = 5
	MountErrAcces       Status = 13
	MountErrNotDir      Status = 20
	MountErrInval       Status = 22
	MountErrNameTooLong Status = 63
	MountErrNotSupp     Status = 10004
	MountErrServerFault Status = 10006
)

// ============================================================================
// MOUNT (MNT)
// ============================================================================

// MountRequest is a MNT call: the export path to mount.
type MountRequest struct {
	DirPath string
}

// MountResponse is the MNT result. On MountOK it carries the root file
// handle and the auth flavors the server accepts.
type MountResponse struct {
	Status Status

	Handle      types.FileHandle
	AuthFlavors []uint32
}

// DecodeMountRequest decodes a MNT call body.
func DecodeMountRequest(data []byte) (*MountRequest, error) {
	r := bytes.NewReader(data)

	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, fmt.Errorf("decode dirpath: %w", err)
	}
	if len(path) > MaxPathLen {
		return nil, fmt.Errorf("dirpath too long: %d bytes (max %d)", len(path), MaxPathLen)
	}
	return &MountRequest{DirPath: path}, nil
}

// Encode serialises a MNT call body for the client side.
func (req *MountRequest) Encode() ([]byte, error) {
	if len(req.DirPath) > MaxPathLen {
		return nil, fmt.Errorf("dirpath too long: %d bytes (max %d)", len(req.DirPath), MaxPathLen)
	}
	buf := new(bytes.Buffer)
	if err := xdr.WriteXDRString(buf, req.DirPath); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serialises the MNT result.
//
// The advertised auth flavors are restricted to a single entry, AUTH_UNIX
// or AUTH_NONE; an empty list defaults to AUTH_UNIX.
func (resp *MountResponse) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := xdr.WriteUint32(buf, uint32(resp.Status)); err != nil {
		return nil, err
	}
	if resp.Status != MountOK {
		return buf.Bytes(), nil
	}

	if err := nfsxdr.EncodeFileHandle(buf, resp.Handle); err != nil {
		return nil, fmt.Errorf("encode handle: %w", err)
	}

	flavors := resp.AuthFlavors
	switch {
	case len(flavors) == 0:
		flavors = []uint32{rpc.AuthUnix}
	case len(flavors) == 1 && (flavors[0] == rpc.AuthUnix || flavors[0] == rpc.AuthNone):
	default:
		return nil, fmt.Errorf("unsupported auth flavor list: %v", flavors)
	}
	if err := xdr.WriteUint32List(buf, flavors); err != nil {
		return nil, fmt.Errorf("encode auth flavors: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMountResponse decodes a MNT result for the client side.
func DecodeMountResponse(data []byte) (*MountResponse, error) {
	r := bytes.NewReader(data)

	rawStatus, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	resp := &MountResponse{Status: Status(rawStatus)}
	if resp.Status != MountOK {
		return resp, nil
	}

	if resp.Handle, err = nfsxdr.DecodeFileHandle(r); err != nil {
		return nil, fmt.Errorf("decode handle: %w", err)
	}
	if resp.AuthFlavors, err = xdr.DecodeUint32List(r); err != nil {
		return nil, fmt.Errorf("decode auth flavors: %w", err)
	}
	return resp, nil
}

// ============================================================================
// UNMOUNT (UMNT)
// ============================================================================

// UnmountRequest is a UMNT call: the export path to release.
type UnmountRequest struct {
	DirPath string
}

// UnmountResponse is the empty UMNT result.
type UnmountResponse struct{}

// DecodeUnmountRequest decodes a UMNT call body.
func DecodeUnmountRequest(data []byte) (*UnmountRequest, error) {
	r := bytes.NewReader(data)

	path, err := xdr.DecodeString(r)
	if err != nil {
		return nil, fmt.Errorf("decode dirpath: %w", err)
	}
	return &UnmountRequest{DirPath: path}, nil
}

// Encode serialises a UMNT call body for the client side.
func (req *UnmountRequest) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.WriteXDRString(buf, req.DirPath); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serialises the empty UMNT result.
func (resp *UnmountResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}

// ============================================================================
// NULL
// ============================================================================

// NullRequest is the empty MOUNT NULL argument.
type NullRequest struct{}

// NullResponse is the empty MOUNT NULL result.
type NullResponse struct{}

// DecodeNullRequest accepts an empty body.
func DecodeNullRequest(data []byte) (*NullRequest, error) {
	return &NullRequest{}, nil
}

// Encode serialises the empty NULL result.
func (resp *NullResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
