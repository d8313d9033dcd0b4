package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// AccessRequest is an ACCESS call (RFC 1813 Section 3.3.4): the object
// handle and the bitmap of permissions the client wants checked.
type AccessRequest struct {
	Handle types.FileHandle
	Access uint32
}

// AccessResponse is the ACCESS result: the granted subset of the requested
// permission bits, plus optional post-op attributes on both arms.
type AccessResponse struct {
	NFSResponseBase

	Attr   *types.FileAttr
	Access uint32
}

// DecodeAccessRequest decodes an ACCESS call body.
func DecodeAccessRequest(data []byte) (*AccessRequest, error) {
	r := bytes.NewReader(data)

	handle, err := nfsxdr.DecodeFileHandle(r)
	if err != nil {
		return nil, fmt.Errorf("decode file handle: %w", err)
	}

	access, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode access mask: %w", err)
	}

	return &AccessRequest{Handle: handle, Access: access}, nil
}

// Encode serialises an ACCESS call body for the client side.
func (req *AccessRequest) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := nfsxdr.EncodeFileHandle(buf, req.Handle); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, req.Access); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serialises the ACCESS result.
//
// Layout: status, post-op attrs, then the granted mask on NFS3OK.
func (resp *AccessResponse) Encode() ([]byte, error) {
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

	if err := xdr.WriteUint32(buf, resp.Access); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAccessResponse decodes an ACCESS result for the client side.
func DecodeAccessResponse(data []byte) (*AccessResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &AccessResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.Access, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("decode access mask: %w", err)
	}
	return resp, nil
}
