package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
)

// GetAttrRequest is a GETATTR call (RFC 1813 Section 3.3.1): the handle of
// the object whose attributes are wanted.
type GetAttrRequest struct {
	Handle types.FileHandle
}

// GetAttrResponse is the GETATTR result. On NFS3OK the full attribute set
// is present; error responses carry only the status.
type GetAttrResponse struct {
	NFSResponseBase

	Attr *types.FileAttr
}

// DecodeGetAttrRequest decodes a GETATTR call body.
func DecodeGetAttrRequest(data []byte) (*GetAttrRequest, error) {
	handle, err := decodeHandleOnlyRequest(data)
	if err != nil {
		return nil, err
	}
	return &GetAttrRequest{Handle: handle}, nil
}

// Encode serialises a GETATTR call body for the client side.
func (req *GetAttrRequest) Encode() ([]byte, error) {
	return encodeHandleOnlyRequest(req.Handle)
}

// Encode serialises the GETATTR result.
//
// Layout: status, then on NFS3OK the mandatory fattr3.
func (resp *GetAttrResponse) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := writeStatus(buf, resp.Status); err != nil {
		return nil, err
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	if resp.Attr == nil {
		return nil, fmt.Errorf("GETATTR OK response requires attributes")
	}
	if err := nfsxdr.EncodeFileAttr(buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGetAttrResponse decodes a GETATTR result for the client side.
func DecodeGetAttrResponse(data []byte) (*GetAttrResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &GetAttrResponse{NFSResponseBase: NFSResponseBase{Status: status}}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.Attr, err = nfsxdr.DecodeFileAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return resp, nil
}
