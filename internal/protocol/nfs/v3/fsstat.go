package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// FSStatRequest is an FSSTAT call (RFC 1813 Section 3.3.18): any handle
// within the filesystem being queried.
type FSStatRequest struct {
	Handle types.FileHandle
}

// FSStatResponse is the FSSTAT result: volatile filesystem usage counters.
type FSStatResponse struct {
	NFSResponseBase

	Attr *types.FileAttr

	TotalBytes uint64 // tbytes: total size of the filesystem
	FreeBytes  uint64 // fbytes: free space
	AvailBytes uint64 // abytes: free space available to the caller
	TotalFiles uint64 // tfiles: total file slots
	FreeFiles  uint64 // ffiles: free file slots
	AvailFiles uint64 // afiles: file slots available to the caller
	Invarsec   uint32 // seconds the counters are expected to stay valid
}

// DecodeFSStatRequest decodes an FSSTAT call body.
func DecodeFSStatRequest(data []byte) (*FSStatRequest, error) {
	handle, err := decodeHandleOnlyRequest(data)
	if err != nil {
		return nil, err
	}
	return &FSStatRequest{Handle: handle}, nil
}

// Encode serialises an FSSTAT call body for the client side.
func (req *FSStatRequest) Encode() ([]byte, error) {
	return encodeHandleOnlyRequest(req.Handle)
}

// Encode serialises the FSSTAT result.
func (resp *FSStatResponse) Encode() ([]byte, error) {
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

	for _, v := range []uint64{
		resp.TotalBytes, resp.FreeBytes, resp.AvailBytes,
		resp.TotalFiles, resp.FreeFiles, resp.AvailFiles,
	} {
		if err := xdr.WriteUint64(buf, v); err != nil {
			return nil, err
		}
	}
	if err := xdr.WriteUint32(buf, resp.Invarsec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFSStatResponse decodes an FSSTAT result for the client side.
func DecodeFSStatResponse(data []byte) (*FSStatResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &FSStatResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	for _, dst := range []*uint64{
		&resp.TotalBytes, &resp.FreeBytes, &resp.AvailBytes,
		&resp.TotalFiles, &resp.FreeFiles, &resp.AvailFiles,
	} {
		if *dst, err = xdr.DecodeUint64(r); err != nil {
			return nil, err
		}
	}
	if resp.Invarsec, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return resp, nil
}
