package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// FSInfoRequest is an FSINFO call (RFC 1813 Section 3.3.19).
type FSInfoRequest struct {
	Handle types.FileHandle
}

// FSInfoResponse is the FSINFO result: static filesystem capabilities and
// preferred transfer sizes.
type FSInfoResponse struct {
	NFSResponseBase

	Attr *types.FileAttr

	RtMax       uint32 // maximum READ size
	RtPref      uint32 // preferred READ size
	RtMult      uint32 // suggested READ size multiple
	WtMax       uint32 // maximum WRITE size
	WtPref      uint32 // preferred WRITE size
	WtMult      uint32 // suggested WRITE size multiple
	DtPref      uint32 // preferred READDIR size
	MaxFileSize uint64
	TimeDelta   types.TimeVal // server time granularity
	Properties  uint32        // FSF* bitmask
}

// DecodeFSInfoRequest decodes an FSINFO call body.
func DecodeFSInfoRequest(data []byte) (*FSInfoRequest, error) {
	handle, err := decodeHandleOnlyRequest(data)
	if err != nil {
		return nil, err
	}
	return &FSInfoRequest{Handle: handle}, nil
}

// Encode serialises an FSINFO call body for the client side.
func (req *FSInfoRequest) Encode() ([]byte, error) {
	return encodeHandleOnlyRequest(req.Handle)
}

// Encode serialises the FSINFO result in RFC field order.
func (resp *FSInfoResponse) Encode() ([]byte, error) {
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

	for _, v := range []uint32{
		resp.RtMax, resp.RtPref, resp.RtMult,
		resp.WtMax, resp.WtPref, resp.WtMult,
		resp.DtPref,
	} {
		if err := xdr.WriteUint32(buf, v); err != nil {
			return nil, err
		}
	}
	if err := xdr.WriteUint64(buf, resp.MaxFileSize); err != nil {
		return nil, err
	}
	if err := nfsxdr.EncodeTimeVal(buf, resp.TimeDelta); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, resp.Properties); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFSInfoResponse decodes an FSINFO result for the client side.
func DecodeFSInfoResponse(data []byte) (*FSInfoResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &FSInfoResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	for _, dst := range []*uint32{
		&resp.RtMax, &resp.RtPref, &resp.RtMult,
		&resp.WtMax, &resp.WtPref, &resp.WtMult,
		&resp.DtPref,
	} {
		if *dst, err = xdr.DecodeUint32(r); err != nil {
			return nil, err
		}
	}
	if resp.MaxFileSize, err = xdr.DecodeUint64(r); err != nil {
		return nil, err
	}
	if resp.TimeDelta, err = nfsxdr.DecodeTimeVal(r); err != nil {
		return nil, err
	}
	if resp.Properties, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	return resp, nil
}
