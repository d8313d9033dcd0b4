package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// ReadlinkRequest is a READLINK call (RFC 1813 Section 3.3.5): the handle
// of the symbolic link to read.
type ReadlinkRequest struct {
	Handle types.FileHandle
}

// ReadlinkResponse is the READLINK result: the link target on NFS3OK,
// optional post-op attributes on both arms.
type ReadlinkResponse struct {
	NFSResponseBase

	Attr   *types.FileAttr
	Target string
}

// DecodeReadlinkRequest decodes a READLINK call body.
func DecodeReadlinkRequest(data []byte) (*ReadlinkRequest, error) {
	handle, err := decodeHandleOnlyRequest(data)
	if err != nil {
		return nil, err
	}
	return &ReadlinkRequest{Handle: handle}, nil
}

// Encode serialises a READLINK call body for the client side.
func (req *ReadlinkRequest) Encode() ([]byte, error) {
	return encodeHandleOnlyRequest(req.Handle)
}

// Encode serialises the READLINK result.
func (resp *ReadlinkResponse) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := writeStatus(buf, resp.Status); err != nil {
		return nil, err
	}
	if err := nfsxdr.EncodePostOpAttr(buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	if err := xdr.WriteXDRString(buf, resp.Target); err != nil {
		return nil, fmt.Errorf("encode target: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadlinkResponse decodes a READLINK result for the client side.
func DecodeReadlinkResponse(data []byte) (*ReadlinkResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &ReadlinkResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.Target, err = xdr.DecodeString(r); err != nil {
		return nil, fmt.Errorf("decode target: %w", err)
	}
	return resp, nil
}
