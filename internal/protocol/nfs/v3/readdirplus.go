package v3

import (
	"bytes"
	"fmt"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	nfsxdr "github.com/marmos91/nfswire/internal/protocol/nfs/xdr"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// ReadDirPlusRequest is a READDIRPLUS call (RFC 1813 Section 3.3.17).
// DirCount limits the directory-information bytes, MaxCount the whole
// reply.
type ReadDirPlusRequest struct {
	DirHandle      types.FileHandle
	Cookie         uint64
	CookieVerifier [CookieVerifierLen]byte
	DirCount       uint32
	MaxCount       uint32
}

// DirEntryPlus is one READDIRPLUS entry: the plain entry plus optional
// attributes and handle.
type DirEntryPlus struct {
	FileID uint64
	Name   string
	Cookie uint64
	Attr   *types.FileAttr
	Handle types.FileHandle
}

// ReadDirPlusResponse is the READDIRPLUS result.
type ReadDirPlusResponse struct {
	NFSResponseBase

	DirAttr        *types.FileAttr
	CookieVerifier [CookieVerifierLen]byte
	Entries        []DirEntryPlus
	EOF            bool
}

// DecodeReadDirPlusRequest decodes a READDIRPLUS call body.
func DecodeReadDirPlusRequest(data []byte) (*ReadDirPlusRequest, error) {
	r := bytes.NewReader(data)
	req := &ReadDirPlusRequest{}
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
	if req.DirCount, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("decode dircount: %w", err)
	}
	if req.MaxCount, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("decode maxcount: %w", err)
	}
	return req, nil
}

// Encode serialises a READDIRPLUS call body for the client side.
func (req *ReadDirPlusRequest) Encode() ([]byte, error) {
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
	if err := xdr.WriteUint32(buf, req.DirCount); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, req.MaxCount); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serialises the READDIRPLUS result using the same linked-list
// entry pattern as READDIR, with per-entry post-op attributes and handle.
func (resp *ReadDirPlusResponse) Encode() ([]byte, error) {
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
		if err := nfsxdr.EncodePostOpAttr(buf, entry.Attr); err != nil {
			return nil, fmt.Errorf("encode entry %d attributes: %w", i, err)
		}
		if err := nfsxdr.EncodePostOpFileHandle(buf, entry.Handle); err != nil {
			return nil, fmt.Errorf("encode entry %d handle: %w", i, err)
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

// DecodeReadDirPlusResponse decodes a READDIRPLUS result for the client
// side.
func DecodeReadDirPlusResponse(data []byte) (*ReadDirPlusResponse, error) {
	r := bytes.NewReader(data)

	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}
	resp := &ReadDirPlusResponse{NFSResponseBase: NFSResponseBase{Status: status}}

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

		var entry DirEntryPlus
		if entry.FileID, err = xdr.DecodeUint64(r); err != nil {
			return nil, fmt.Errorf("decode entry fileid: %w", err)
		}
		if entry.Name, err = xdr.DecodeString(r); err != nil {
			return nil, fmt.Errorf("decode entry name: %w", err)
		}
		if entry.Cookie, err = xdr.DecodeUint64(r); err != nil {
			return nil, fmt.Errorf("decode entry cookie: %w", err)
		}
		if entry.Attr, err = nfsxdr.DecodePostOpAttr(r); err != nil {
			return nil, fmt.Errorf("decode entry attributes: %w", err)
		}
		if entry.Handle, err = nfsxdr.DecodePostOpFileHandle(r); err != nil {
			return nil, fmt.Errorf("decode entry handle: %w", err)
		}
		resp.Entries = append(resp.Entries, entry)
	}

	if resp.EOF, err = xdr.DecodeBool(r); err != nil {
		return nil, fmt.Errorf("decode eof: %w", err)
	}
	return resp, nil
}
