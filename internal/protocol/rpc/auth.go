package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// AUTH_UNIX limits (RFC 5531 Appendix A).
const (
	// MaxMachineNameLen bounds the machine name in AUTH_UNIX credentials.
	MaxMachineNameLen = 255

	// MaxGIDs bounds the supplementary group list in AUTH_UNIX credentials.
	MaxGIDs = 16
)

// UnixAuth is a parsed AUTH_UNIX (AUTH_SYS) credential body.
//
// The server does not enforce permissions from these values; they are
// decoded for logging and handed to the backend as the caller's claimed
// identity, per classic NFSv3 practice.
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// ParseUnixAuth decodes an AUTH_UNIX credential body.
//
// Layout: stamp | machinename (string ≤255) | uid | gid | gids (≤16).
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty AUTH_UNIX body")
	}

	r := bytes.NewReader(body)
	auth := &UnixAuth{}
	var err error

	if auth.Stamp, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read stamp: %w", err)
	}

	nameLen, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read machine name length: %w", err)
	}
	if nameLen > MaxMachineNameLen {
		return nil, fmt.Errorf("machine name too long: %d bytes (max %d)", nameLen, MaxMachineNameLen)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("read machine name: %w", err)
	}
	auth.MachineName = string(name)
	if err := xdr.SkipPadding(r, nameLen); err != nil {
		return nil, err
	}

	if auth.UID, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	if auth.GID, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}

	gidCount, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read gid count: %w", err)
	}
	if gidCount > MaxGIDs {
		return nil, fmt.Errorf("too many gids: %d (max %d)", gidCount, MaxGIDs)
	}
	auth.GIDs = make([]uint32, 0, gidCount)
	for i := uint32(0); i < gidCount; i++ {
		gid, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read gid %d: %w", i, err)
		}
		auth.GIDs = append(auth.GIDs, gid)
	}

	return auth, nil
}

// EncodeUnixAuth serialises an AUTH_UNIX credential body.
func EncodeUnixAuth(auth *UnixAuth) ([]byte, error) {
	if len(auth.MachineName) > MaxMachineNameLen {
		return nil, fmt.Errorf("machine name too long: %d bytes (max %d)", len(auth.MachineName), MaxMachineNameLen)
	}
	if len(auth.GIDs) > MaxGIDs {
		return nil, fmt.Errorf("too many gids: %d (max %d)", len(auth.GIDs), MaxGIDs)
	}

	buf := new(bytes.Buffer)
	if err := xdr.WriteUint32(buf, auth.Stamp); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(buf, auth.MachineName); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, auth.UID); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, auth.GID); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32List(buf, auth.GIDs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
