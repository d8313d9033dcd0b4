package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// ReadRequest is a READ call (RFC 1813 Section 3.3.6): handle, byte
// offset, and requested count.
type ReadRequest struct {
	Handle types.FileHandle
	Offset uint64
	Count  uint32
}

// ReadResponse is the READ result. On NFS3OK it carries the bytes read,
// the actual count, and the EOF flag; both arms carry optional post-op
// attributes.
type ReadResponse struct {
	NFSResponseBase

	Attr  *types.FileAttr
	Count uint32
	EOF   bool
	Data  []byte
}

// ReadPayload describes the file bytes of a READ reply for zero-copy
// emission: write Data, then FillBytes pad bytes. This lets the transport
// send the payload directly without staging it through the reply buffer.
type ReadPayload struct {
	Data      []byte
	FillBytes uint32
}

// DecodeReadRequest decodes a READ call body.
func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	r := bytes.NewReader(data)

	handle, err := nfsxdr.DecodeFileHandle(r)
	if err != nil {
		return nil, fmt.Errorf("decode file handle: %w", err)
	}

	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return nil, fmt.Errorf("decode offset: %w", err)
	}

	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("decode count: %w", err)
	}

	return &ReadRequest{Handle: handle, Offset: offset, Count: count}, nil
}

// Encode serialises a READ call body for the client side.
func (req *ReadRequest) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := nfsxdr.EncodeFileHandle(buf, req.Handle); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint64(buf, req.Offset); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, req.Count); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeParts serialises the READ result as a metadata prefix plus a
// payload descriptor.
//
// The metadata covers: status, post-op attrs, count, eof, and the opaque
// length of the data. The payload descriptor names the data bytes and the
// 0-3 alignment fill bytes that must follow them. Error responses have an
// empty payload.
func (resp *ReadResponse) EncodeParts() ([]byte, ReadPayload, error) {
	buf := new(bytes.Buffer)

	if err := writeStatus(buf, resp.Status); err != nil {
		return nil, ReadPayload{}, err
	}
	if err := nfsxdr.EncodePostOpAttr(buf, resp.Attr); err != nil {
		return nil, ReadPayload{}, fmt.Errorf("encode attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), ReadPayload{}, nil
	}

	if err := xdr.WriteUint32(buf, resp.Count); err != nil {
		return nil, ReadPayload{}, err
	}
	if err := xdr.WriteBool(buf, resp.EOF); err != nil {
		return nil, ReadPayload{}, err
	}

	dataLen := uint32(len(resp.Data))
	if err := xdr.WriteUint32(buf, dataLen); err != nil {
		return nil, ReadPayload{}, err
	}

	return buf.Bytes(), ReadPayload{
		Data:      resp.Data,
		FillBytes: xdr.Padding(dataLen),
	}, nil
}

// Encode serialises the complete READ result in one buffer.
func (resp *ReadResponse) Encode() ([]byte, error) {
	meta, payload, err := resp.EncodeParts()
	if err != nil {
		return nil, err
	}

	out := bytes.NewBuffer(meta)
	if _, err := out.Write(payload.Data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}
	for i := uint32(0); i < payload.FillBytes; i++ {
		if err := out.WriteByte(xdr.PadByte); err != nil {
			return nil, fmt.Errorf("write padding: %w", err)
		}
	}
	return out.Bytes(), nil
}

// DecodeReadResponse decodes a READ result for the client side.
func DecodeReadResponse(data []byte) (*ReadResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &ReadResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	if resp.Count, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("decode count: %w", err)
	}
	if resp.EOF, err = xdr.DecodeBool(r); err != nil {
		return nil, fmt.Errorf("decode eof: %w", err)
	}
	if resp.Data, err = xdr.DecodeOpaque(r); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return resp, nil
}
