package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// RPCCallMessage is a parsed RPC CALL header plus the procedure body that
// follows it.
type RPCCallMessage struct {
	XID         uint32
	RPCVersion  uint32
	Program     uint32
	Version     uint32
	Procedure   uint32
	Credentials OpaqueAuth
	Verifier    OpaqueAuth

	// Body holds the XDR-encoded procedure arguments following the header.
	Body []byte
}

// ParseRPCCall parses a complete RPC record as a CALL message.
//
// The header layout (RFC 5531 Section 9) is:
//
//	xid | msg_type=0 | rpc_version | program | version | procedure |
//	cred{flavor, opaque} | verf{flavor, opaque} | procedure body
//
// Only rpc_version 2 is accepted; anything else fails with
// ErrUnknownVersion. A REPLY message fails with ErrWrongMessageType.
func ParseRPCCall(data []byte) (*RPCCallMessage, error) {
	r := bytes.NewReader(data)

	xid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: missing xid", ErrMessageTooShort)
	}

	msgType, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: missing msg_type", ErrMessageTooShort)
	}
	switch msgType {
	case RPCCall:
	case RPCReply:
		return nil, fmt.Errorf("%w: got REPLY, want CALL (xid 0x%x)", ErrWrongMessageType, xid)
	default:
		return nil, fmt.Errorf("%w: %d (xid 0x%x)", ErrUnknownMessageType, msgType, xid)
	}

	call := &RPCCallMessage{XID: xid}

	if call.RPCVersion, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read rpc_version: %w", err)
	}
	if call.RPCVersion != RPCVersion {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrUnknownVersion, call.RPCVersion, RPCVersion)
	}

	if call.Program, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	if call.Version, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if call.Procedure, err = xdr.DecodeUint32(r); err != nil {
		return nil, fmt.Errorf("read procedure: %w", err)
	}

	if call.Credentials, err = decodeOpaqueAuth(r); err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if call.Verifier, err = decodeOpaqueAuth(r); err != nil {
		return nil, fmt.Errorf("read verifier: %w", err)
	}

	// Everything after the header is the procedure body
	body := make([]byte, r.Len())
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	call.Body = body

	return call, nil
}

// EncodeRPCCall serialises a CALL message (header + body) without the
// record-marking header. Used by the client side.
func EncodeRPCCall(call *RPCCallMessage) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := xdr.WriteUint32(buf, call.XID); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, RPCCall); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, RPCVersion); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, call.Program); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, call.Version); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, call.Procedure); err != nil {
		return nil, err
	}
	if err := encodeOpaqueAuth(buf, call.Credentials); err != nil {
		return nil, fmt.Errorf("write credentials: %w", err)
	}
	if err := encodeOpaqueAuth(buf, call.Verifier); err != nil {
		return nil, fmt.Errorf("write verifier: %w", err)
	}
	if _, err := buf.Write(call.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}

	return buf.Bytes(), nil
}

// decodeOpaqueAuth reads an opaque_auth structure, enforcing the 400-byte
// body limit.
func decodeOpaqueAuth(r io.Reader) (OpaqueAuth, error) {
	var auth OpaqueAuth
	var err error

	if auth.Flavor, err = xdr.DecodeUint32(r); err != nil {
		return auth, fmt.Errorf("read flavor: %w", err)
	}

	auth.Body, err = xdr.DecodeOpaqueBounded(r, MaxAuthBodyLen)
	if err != nil {
		return auth, fmt.Errorf("%w: %v", ErrInvalidAuthFlavor, err)
	}
	return auth, nil
}

// encodeOpaqueAuth writes an opaque_auth structure.
func encodeOpaqueAuth(buf *bytes.Buffer, auth OpaqueAuth) error {
	if len(auth.Body) > MaxAuthBodyLen {
		return fmt.Errorf("%w: body %d bytes (max %d)", ErrInvalidAuthFlavor, len(auth.Body), MaxAuthBodyLen)
	}
	if err := xdr.WriteUint32(buf, auth.Flavor); err != nil {
		return err
	}
	return xdr.WriteXDROpaque(buf, auth.Body)
}
