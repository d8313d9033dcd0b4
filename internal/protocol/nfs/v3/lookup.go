package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// LookupRequest is a LOOKUP call (RFC 1813 Section 3.3.3): a directory
// handle and the name to resolve within it.
type LookupRequest struct {
	DirHandle types.FileHandle
	Name      string
}

// LookupResponse is the LOOKUP result. On NFS3OK it carries the resolved
// handle plus optional object and directory attributes; on error, optional
// directory attributes only.
type LookupResponse struct {
	NFSResponseBase

	Handle  types.FileHandle
	Attr    *types.FileAttr
	DirAttr *types.FileAttr
}

// DecodeLookupRequest decodes a LOOKUP call body.
func DecodeLookupRequest(data []byte) (*LookupRequest, error) {
	r := bytes.NewReader(data)

	handle, err := nfsxdr.DecodeFileHandle(r)
	if err != nil {
		return nil, fmt.Errorf("decode dir handle: %w", err)
	}

	name, err := xdr.DecodeString(r)
	if err != nil {
		return nil, fmt.Errorf("decode name: %w", err)
	}

	return &LookupRequest{DirHandle: handle, Name: name}, nil
}

// Encode serialises a LOOKUP call body for the client side.
func (req *LookupRequest) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := nfsxdr.EncodeFileHandle(buf, req.DirHandle); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(buf, req.Name); err != nil {
		return nil, fmt.Errorf("encode name: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode serialises the LOOKUP result.
//
// Layout on NFS3OK: object handle, post-op object attrs, post-op dir
// attrs. On error: post-op dir attrs only.
func (resp *LookupResponse) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := writeStatus(buf, resp.Status); err != nil {
		return nil, err
	}

	if resp.Status != types.NFS3OK {
		if err := nfsxdr.EncodePostOpAttr(buf, resp.DirAttr); err != nil {
			return nil, fmt.Errorf("encode dir attributes: %w", err)
		}
		return buf.Bytes(), nil
	}

	if err := nfsxdr.EncodeFileHandle(buf, resp.Handle); err != nil {
		return nil, fmt.Errorf("encode handle: %w", err)
	}
	if err := nfsxdr.EncodePostOpAttr(buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	if err := nfsxdr.EncodePostOpAttr(buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode dir attributes: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeLookupResponse decodes a LOOKUP result for the client side.
func DecodeLookupResponse(data []byte) (*LookupResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &LookupResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if status != types.NFS3OK {
		if resp.DirAttr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
			return nil, fmt.Errorf("decode dir attributes: %w", err)
		}
		return resp, nil
	}

	if resp.Handle, err = nfsxdr.DecodeFileHandle(r); err != nil {
		return nil, fmt.Errorf("decode handle: %w", err)
	}
	if resp.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if resp.DirAttr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode dir attributes: %w", err)
	}
	return resp, nil
}
