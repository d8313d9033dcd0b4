// Package xdr encodes and decodes the shared NFSv3 wire structures:
// file attributes, weak-cache-consistency data, timestamps, and file
// handles. Per-procedure bodies build on these helpers.
package xdr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// ============================================================================
// Timestamps
// ============================================================================

// EncodeTimeVal writes an nfstime3 as two uint32s (seconds, nanoseconds).
func EncodeTimeVal(buf *bytes.Buffer, t types.TimeVal) error {
	if err := xdr.WriteUint32(buf, t.Seconds); err != nil {
		return fmt.Errorf("write seconds: %w", err)
	}
	if err := xdr.WriteUint32(buf, t.Nseconds); err != nil {
		return fmt.Errorf("write nseconds: %w", err)
	}
	return nil
}

// DecodeTimeVal reads an nfstime3.
func DecodeTimeVal(r io.Reader) (types.TimeVal, error) {
	var t types.TimeVal
	var err error
	if t.Seconds, err = xdr.DecodeUint32(r); err != nil {
		return t, fmt.Errorf("read seconds: %w", err)
	}
	if t.Nseconds, err = xdr.DecodeUint32(r); err != nil {
		return t, fmt.Errorf("read nseconds: %w", err)
	}
	return t, nil
}

// ============================================================================
// File Attributes
// ============================================================================

// EncodeFileAttr writes a full fattr3 in RFC 1813 field order.
//
// The rdev field is written as its two specdata3 words, which is identical
// on the wire to one big-endian uint64.
func EncodeFileAttr(buf *bytes.Buffer, attr *types.FileAttr) error {
	if err := xdr.WriteUint32(buf, uint32(attr.Type)); err != nil {
		return fmt.Errorf("write type: %w", err)
	}
	if err := xdr.WriteUint32(buf, attr.Mode); err != nil {
		return fmt.Errorf("write mode: %w", err)
	}
	if err := xdr.WriteUint32(buf, attr.Nlink); err != nil {
		return fmt.Errorf("write nlink: %w", err)
	}
	if err := xdr.WriteUint32(buf, attr.UID); err != nil {
		return fmt.Errorf("write uid: %w", err)
	}
	if err := xdr.WriteUint32(buf, attr.GID); err != nil {
		return fmt.Errorf("write gid: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.Size); err != nil {
		return fmt.Errorf("write size: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.Used); err != nil {
		return fmt.Errorf("write used: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.Rdev); err != nil {
		return fmt.Errorf("write rdev: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.Fsid); err != nil {
		return fmt.Errorf("write fsid: %w", err)
	}
	if err := xdr.WriteUint64(buf, attr.Fileid); err != nil {
		return fmt.Errorf("write fileid: %w", err)
	}
	if err := EncodeTimeVal(buf, attr.Atime); err != nil {
		return fmt.Errorf("write atime: %w", err)
	}
	if err := EncodeTimeVal(buf, attr.Mtime); err != nil {
		return fmt.Errorf("write mtime: %w", err)
	}
	if err := EncodeTimeVal(buf, attr.Ctime); err != nil {
		return fmt.Errorf("write ctime: %w", err)
	}
	return nil
}

// DecodeFileAttr reads a full fattr3, validating the file type.
func DecodeFileAttr(r io.Reader) (*types.FileAttr, error) {
	rawType, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read type: %w", err)
	}
	fileType, err := types.ParseFileType(rawType)
	if err != nil {
		return nil, err
	}

	attr := &types.FileAttr{Type: fileType}
	if attr.Mode, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read mode: %w", err)
	}
	if attr.Nlink, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read nlink: %w", err)
	}
	if attr.UID, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	if attr.GID, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}
	if attr.Size, err = xdr.DecodeUint64(r); err != nil {
		return nil, fmt.Errorf("read size: %w", err)
	}
	if attr.Used, err = xdr.DecodeUint64(r); err != nil {
		return nil, fmt.Errorf("read used: %w", err)
	}
	if attr.Rdev, err = xdr.DecodeUint64(r); err != nil {
		return nil, fmt.Errorf("read rdev: %w", err)
	}
	if attr.Fsid, err = xdr.DecodeUint64(r); err != nil {
		return nil, fmt.Errorf("read fsid: %w", err)
	}
	if attr.Fileid, err = xdr.DecodeUint64(r); err != nil {
		return nil, fmt.Errorf("read fileid: %w", err)
	}
	if attr.Atime, err = DecodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read atime: %w", err)
	}
	if attr.Mtime, err = DecodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read mtime: %w", err)
	}
	if attr.Ctime, err = DecodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read ctime: %w", err)
	}
	return attr, nil
}

// EncodePostOpAttr writes a post_op_attr: a presence flag followed by the
// attributes when non-nil.
func EncodePostOpAttr(buf *bytes.Buffer, attr *types.FileAttr) error {
	if attr == nil {
		return xdr.WriteBool(buf, false)
	}
	if err := xdr.WriteBool(buf, true); err != nil {
		return err
	}
	return EncodeFileAttr(buf, attr)
}

// DecodePostOpAttr reads a post_op_attr, returning nil when absent.
func DecodePostOpAttr(r io.Reader) (*types.FileAttr, error) {
	present, err := xdr.DecodeOptional(r)
	if err != nil {
		return nil, fmt.Errorf("read attr flag: %w", err)
	}
	if !present {
		return nil, nil
	}
	return DecodeFileAttr(r)
}

// ============================================================================
// Weak Cache Consistency
// ============================================================================

// EncodeWccAttr writes a wcc_attr (size, mtime, ctime).
func EncodeWccAttr(buf *bytes.Buffer, attr *types.WccAttr) error {
	if err := xdr.WriteUint64(buf, attr.Size); err != nil {
		return fmt.Errorf("write size: %w", err)
	}
	if err := EncodeTimeVal(buf, attr.Mtime); err != nil {
		return fmt.Errorf("write mtime: %w", err)
	}
	if err := EncodeTimeVal(buf, attr.Ctime); err != nil {
		return fmt.Errorf("write ctime: %w", err)
	}
	return nil
}

// DecodeWccAttr reads a wcc_attr.
func DecodeWccAttr(r io.Reader) (*types.WccAttr, error) {
	attr := &types.WccAttr{}
	var err error
	if attr.Size, err = xdr.DecodeUint64(r); err != nil {
		return nil, fmt.Errorf("read size: %w", err)
	}
	if attr.Mtime, err = DecodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read mtime: %w", err)
	}
	if attr.Ctime, err = DecodeTimeVal(r); err != nil {
		return nil, fmt.Errorf("read ctime: %w", err)
	}
	return attr, nil
}

// EncodeWccData writes a wcc_data: optional pre-op attrs then optional
// post-op attrs.
func EncodeWccData(buf *bytes.Buffer, wcc *types.WccData) error {
	if wcc == nil {
		wcc = &types.WccData{}
	}
	if wcc.Before == nil {
		if err := xdr.WriteBool(buf, false); err != nil {
			return err
		}
	} else {
		if err := xdr.WriteBool(buf, true); err != nil {
			return err
		}
		if err := EncodeWccAttr(buf, wcc.Before); err != nil {
			return fmt.Errorf("write pre-op attr: %w", err)
		}
	}
	return EncodePostOpAttr(buf, wcc.After)
}

// DecodeWccData reads a wcc_data.
func DecodeWccData(r io.Reader) (*types.WccData, error) {
	wcc := &types.WccData{}

	present, err := xdr.DecodeOptional(r)
	if err != nil {
		return nil, fmt.Errorf("read pre-op flag: %w", err)
	}
	if present {
		if wcc.Before, err = DecodeWccAttr(r); err != nil {
			return nil, err
		}
	}

	if wcc.After, err = DecodePostOpAttr(r); err != nil {
		return nil, err
	}
	return wcc, nil
}

// ============================================================================
// File Handles
// ============================================================================

// EncodeFileHandle writes an nfs_fh3 as a length-prefixed opaque.
func EncodeFileHandle(buf *bytes.Buffer, handle types.FileHandle) error {
	return xdr.WriteXDROpaque(buf, handle)
}

// DecodeFileHandle reads an nfs_fh3 and validates it against the
// implementation's handle contract (exactly 8 bytes).
func DecodeFileHandle(r io.Reader) (types.FileHandle, error) {
	raw, err := xdr.DecodeOpaqueBounded(r, types.FileHandleMaxLen)
	if err != nil {
		return nil, fmt.Errorf("read handle: %w", err)
	}
	return types.ParseFileHandle(raw)
}

// EncodePostOpFileHandle writes a post_op_fh3: a presence flag followed by
// the handle when non-nil.
func EncodePostOpFileHandle(buf *bytes.Buffer, handle types.FileHandle) error {
	if handle == nil {
		return xdr.WriteBool(buf, false)
	}
	if err := xdr.WriteBool(buf, true); err != nil {
		return err
	}
	return EncodeFileHandle(buf, handle)
}

// DecodePostOpFileHandle reads a post_op_fh3, returning nil when absent.
func DecodePostOpFileHandle(r io.Reader) (types.FileHandle, error) {
	present, err := xdr.DecodeOptional(r)
	if err != nil {
		return nil, fmt.Errorf("read handle flag: %w", err)
	}
	if !present {
		return nil, nil
	}
	return DecodeFileHandle(r)
}

// ============================================================================
// SETATTR Arguments
// ============================================================================

// EncodeSetAttr writes a sattr3: each field is an optional.
func EncodeSetAttr(buf *bytes.Buffer, sa *types.SetAttr) error {
	writeOptU32 := func(v *uint32) error {
		if v == nil {
			return xdr.WriteBool(buf, false)
		}
		if err := xdr.WriteBool(buf, true); err != nil {
			return err
		}
		return xdr.WriteUint32(buf, *v)
	}

	if err := writeOptU32(sa.Mode); err != nil {
		return fmt.Errorf("write mode: %w", err)
	}
	if err := writeOptU32(sa.UID); err != nil {
		return fmt.Errorf("write uid: %w", err)
	}
	if err := writeOptU32(sa.GID); err != nil {
		return fmt.Errorf("write gid: %w", err)
	}

	if sa.Size == nil {
		if err := xdr.WriteBool(buf, false); err != nil {
			return err
		}
	} else {
		if err := xdr.WriteBool(buf, true); err != nil {
			return err
		}
		if err := xdr.WriteUint64(buf, *sa.Size); err != nil {
			return fmt.Errorf("write size: %w", err)
		}
	}

	if err := encodeSetTime(buf, sa.Atime); err != nil {
		return fmt.Errorf("write atime: %w", err)
	}
	if err := encodeSetTime(buf, sa.Mtime); err != nil {
		return fmt.Errorf("write mtime: %w", err)
	}
	return nil
}

// DecodeSetAttr reads a sattr3.
func DecodeSetAttr(r io.Reader) (*types.SetAttr, error) {
	sa := &types.SetAttr{}

	readOptU32 := func(what string) (*uint32, error) {
		present, err := xdr.DecodeOptional(r)
		if err != nil {
			return nil, fmt.Errorf("read %s flag: %w", what, err)
		}
		if !present {
			return nil, nil
		}
		v, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", what, err)
		}
		return &v, nil
	}

	var err error
	if sa.Mode, err = readOptU32("mode"); err != nil {
		return nil, err
	}
	if sa.UID, err = readOptU32("uid"); err != nil {
		return nil, err
	}
	if sa.GID, err = readOptU32("gid"); err != nil {
		return nil, err
	}

	present, err := xdr.DecodeOptional(r)
	if err != nil {
		return nil, fmt.Errorf("read size flag: %w", err)
	}
	if present {
		v, err := xdr.DecodeUint64(r)
		if err != nil {
			return nil, fmt.Errorf("read size: %w", err)
		}
		sa.Size = &v
	}

	if sa.Atime, err = decodeSetTime(r); err != nil {
		return nil, fmt.Errorf("read atime: %w", err)
	}
	if sa.Mtime, err = decodeSetTime(r); err != nil {
		return nil, fmt.Errorf("read mtime: %w", err)
	}
	return sa, nil
}

// encodeSetTime writes a set_atime/set_mtime union: the how discriminant,
// then the timestamp only for SET_TO_CLIENT_TIME.
func encodeSetTime(buf *bytes.Buffer, st types.SetTime) error {
	if err := xdr.WriteUint32(buf, uint32(st.How)); err != nil {
		return err
	}
	if st.How == types.SetToClientTime {
		return EncodeTimeVal(buf, st.Time)
	}
	return nil
}

func decodeSetTime(r io.Reader) (types.SetTime, error) {
	var st types.SetTime
	how, err := xdr.DecodeUint32(r)
	if err != nil {
		return st, err
	}
	if how > uint32(types.SetToClientTime) {
		return st, fmt.Errorf("invalid time_how: %d", how)
	}
	st.How = types.SetTimeHow(how)
	if st.How == types.SetToClientTime {
		if st.Time, err = DecodeTimeVal(r); err != nil {
			return st, err
		}
	}
	return st, nil
}

// EncodeSattrGuard writes a sattrguard3: optional ctime.
func EncodeSattrGuard(buf *bytes.Buffer, guard *types.SattrGuard) error {
	if guard == nil || guard.Ctime == nil {
		return xdr.WriteBool(buf, false)
	}
	if err := xdr.WriteBool(buf, true); err != nil {
		return err
	}
	return EncodeTimeVal(buf, *guard.Ctime)
}

// DecodeSattrGuard reads a sattrguard3.
func DecodeSattrGuard(r io.Reader) (*types.SattrGuard, error) {
	present, err := xdr.DecodeOptional(r)
	if err != nil {
		return nil, fmt.Errorf("read guard flag: %w", err)
	}
	if !present {
		return &types.SattrGuard{}, nil
	}
	t, err := DecodeTimeVal(r)
	if err != nil {
		return nil, err
	}
	return &types.SattrGuard{Ctime: &t}, nil
}
