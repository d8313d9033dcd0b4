package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// CookieVerifierLen is the size of the cookieverf3 fixed opaque.
const CookieVerifierLen = 8

// ReadDirRequest is a READDIR call (RFC 1813 Section 3.3.16): directory
// handle, resume cookie, cookie verifier, and the reply size limit.
type ReadDirRequest struct {
	DirHandle      types.FileHandle
	Cookie         uint64
	CookieVerifier [CookieVerifierLen]byte
	MaxCount       uint32
}

// DirEntry is one READDIR entry.
type DirEntry struct {
	FileID uint64
	Name   string
	Cookie uint64
}

// ReadDirResponse is the READDIR result: the entry list and EOF marker on
// NFS3OK, optional directory attributes on both arms.
type ReadDirResponse struct {
	NFSResponseBase

	DirAttr        *types.FileAttr
	CookieVerifier [CookieVerifierLen]byte
	Entries        []DirEntry
	EOF            bool
}

// DecodeReadDirRequest decodes a READDIR call body.
func DecodeReadDirRequest(data []byte) (*ReadDirRequest, error) {
	r := bytes.NewReader(data)
	req := &ReadDirRequest{}
	var err error

	if req.DirHandle, err = nfsxdr.DecodeFileHandle(r); err != nil {
		return nil, fmt.Errorf("decode dir handle: %w", err)
	}
	if req.Cookie, err = xdr.DecodeUint64(r); err != nil {
		return nil, fmt.Errorf("decode cookie: %w", err)
	}
	verifier, err := xdr.DecodeFixedOpaque(r, CookieVerifierLen)
	if err != nil {
		return nil, fmt.Errorf("decode cookie verifier: %w", err)
	}
	copy(req.CookieVerifier[:], verifier)
	if req.MaxCount, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("decode count: %w", err)
	}
	return req, nil
}

// Encode serialises a READDIR call body for the client side.
func (req *ReadDirRequest) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := nfsxdr.EncodeFileHandle(buf, req.DirHandle); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint64(buf, req.Cookie); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRFixedOpaque(buf, req.CookieVerifier[:]); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, req.MaxCount); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serialises the READDIR result.
//
// The entry list uses the XDR linked-list pattern: each entry is preceded
// by a uint32 1, and a single uint32 0 terminates the list. There is no
// count prefix.
func (resp *ReadDirResponse) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := writeStatus(buf, resp.Status); err != nil {
		return nil, err
	}
	if err := nfsxdr.EncodePostOpAttr(buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode dir attributes: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	if err := xdr.WriteXDRFixedOpaque(buf, resp.CookieVerifier[:]); err != nil {
		return nil, fmt.Errorf("encode cookie verifier: %w", err)
	}

	for i := range resp.Entries {
		entry := &resp.Entries[i]
		if err := xdr.WriteBool(buf, true); err != nil {
			return nil, err
		}
		if err := xdr.WriteUint64(buf, entry.FileID); err != nil {
			return nil, fmt.Errorf("encode entry %d fileid: %w", i, err)
		}
		if err := xdr.WriteXDRString(buf, entry.Name); err != nil {
			return nil, fmt.Errorf("encode entry %d name: %w", i, err)
		}
		if err := xdr.WriteUint64(buf, entry.Cookie); err != nil {
			return nil, fmt.Errorf("encode entry %d cookie: %w", i, err)
		}
	}
	if err := xdr.WriteBool(buf, false); err != nil {
		return nil, err
	}

	if err := xdr.WriteBool(buf, resp.EOF); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeReadDirResponse decodes a READDIR result for the client side.
func DecodeReadDirResponse(data []byte) (*ReadDirResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &ReadDirResponse{NFSResponseBase: NFSResponseBase{Status: status}}

	if resp.DirAttr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
		return nil, fmt.Errorf("decode dir attributes: %w", err)
	}
	if status != types.NFS3OK {
		return resp, nil
	}

	verifier, err := xdr.DecodeFixedOpaque(r, CookieVerifierLen)
	if err != nil {
		return nil, fmt.Errorf("decode cookie verifier: %w", err)
	}
	copy(resp.CookieVerifier[:], verifier)

	for {
		more, err := xdr.DecodeBool(r)
		if err != nil {
			return nil, fmt.Errorf("decode entry marker: %w", err)
		}
		if !more {
			break
		}

		var entry DirEntry
		if entry.FileID, err = xdr.DecodeUint64(r); err != nil {
			return nil, fmt.Errorf("decode entry fileid: %w", err)
		}
		if entry.Name, err = xdr.DecodeString(r); err != nil {
			return nil, fmt.Errorf("decode entry name: %w", err)
		}
		if entry.Cookie, err = xdr.DecodeUint64(r); err != nil {
			return nil, fmt.Errorf("decode entry cookie: %w", err)
		}
		resp.Entries = append(resp.Entries, entry)
	}

	if resp.EOF, err = xdr.DecodeBool(r); err != nil {
		return nil, fmt.Errorf("decode eof: %w", err)
	}
	return resp, nil
}
