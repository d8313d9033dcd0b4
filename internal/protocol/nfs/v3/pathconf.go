package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// PathConfRequest is a PATHCONF call (RFC 1813 Section 3.3.20).
type PathConfRequest struct {
	Handle types.FileHandle
}

// PathConfResponse is the PATHCONF result: POSIX pathconf information for
// the object.
type PathConfResponse struct {
	NFSResponseBase

	Attr *types.FileAttr

	LinkMax         uint32 // maximum hard links
	NameMax         uint32 // maximum filename length
	NoTrunc         bool   // long names are rejected, not truncated
	ChownRestricted bool   // chown is restricted to privileged users
	CaseInsensitive bool
	CasePreserving  bool
}

// DecodePathConfRequest decodes a PATHCONF call body.
func DecodePathConfRequest(data []byte) (*PathConfRequest, error) {
	handle, err := decodeHandleOnlyRequest(data)
	if err != nil {
		return nil, err
	}
	return &PathConfRequest{Handle: handle}, nil
}

// Encode serialises a PATHCONF call body for the client side.
func (req *PathConfRequest) Encode() ([]byte, error) {
	return encodeHandleOnlyRequest(req.Handle)
}

// Encode serialises the PATHCONF result.
func (resp *PathConfResponse) Encode() ([]byte, error) {
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

	if err := xdr.WriteUint32(buf, resp.LinkMax); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, resp.NameMax); err != nil {
		return nil, err
	}
	for _, b := range []bool{resp.NoTrunc, resp.ChownRestricted, resp.CaseInsensitive, resp.CasePreserving} {
		if err := xdr.WriteBool(buf, b); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodePathConfResponse decodes a PATHCONF result for the client side.
func DecodePathConfResponse(data []byte) (*PathConfResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &PathConfResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.LinkMax, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	if resp.NameMax, err = xdr.DecodeUint32(r); err != nil {
		return nil, err
	}
	for _, dst := range []*bool{&resp.NoTrunc, &resp.ChownRestricted, &resp.CaseInsensitive, &resp.CasePreserving} {
		if *dst, err = xdr.DecodeBool(r); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
