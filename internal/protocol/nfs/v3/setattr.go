package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
)

// SetAttrRequest is a SETATTR call (RFC 1813 Section 3.3.2): the target
// handle, the attribute updates, and an optional ctime guard.
type SetAttrRequest struct {
	Handle  types.FileHandle
	NewAttr *types.SetAttr
	Guard   *types.SattrGuard
}

// SetAttrResponse is the SETATTR result. Both arms carry wcc_data so
// clients can resynchronise their caches; a read-only server typically
// answers NFS3ErrROFS.
type SetAttrResponse struct {
	NFSResponseBase

	Wcc *types.WccData
}

// DecodeSetAttrRequest decodes a SETATTR call body.
func DecodeSetAttrRequest(data []byte) (*SetAttrRequest, error) {
	r := bytes.NewReader(data)

	handle, err := nfsxdr.DecodeFileHandle(r)
	if err != nil {
		return nil, fmt.Errorf("decode file handle: %w", err)
	}

	newAttr, err := nfsxdr.DecodeSetAttr(r)
	if err != nil {
		return nil, fmt.Errorf("decode sattr3: %w", err)
	}

	guard, err := nfsxdr.DecodeSattrGuard(r)
	if err != nil {
		return nil, fmt.Errorf("decode guard: %w", err)
	}

	return &SetAttrRequest{Handle: handle, NewAttr: newAttr, Guard: guard}, nil
}

// Encode serialises a SETATTR call body for the client side.
func (req *SetAttrRequest) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := nfsxdr.EncodeFileHandle(buf, req.Handle); err != nil {
		return nil, err
	}
	if err := nfsxdr.EncodeSetAttr(buf, req.NewAttr); err != nil {
		return nil, fmt.Errorf("encode sattr3: %w", err)
	}
	if err := nfsxdr.EncodeSattrGuard(buf, req.Guard); err != nil {
		return nil, fmt.Errorf("encode guard: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode serialises the SETATTR result.
//
// Layout: status, then wcc_data on both arms.
func (resp *SetAttrResponse) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := writeStatus(buf, resp.Status); err != nil {
		return nil, err
	}
	if err := nfsxdr.EncodeWccData(buf, resp.Wcc); err != nil {
		return nil, fmt.Errorf("encode wcc_data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSetAttrResponse decodes a SETATTR result for the client side.
func DecodeSetAttrResponse(data []byte) (*SetAttrResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &SetAttrResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.Wcc, err = nfsxdr.DecodeWccData(r); err != nil {
		return nil, fmt.Errorf("decode wcc_data: %w", err)
	}
	return resp, nil
}
