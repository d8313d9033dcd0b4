// Package rpc implements the ONC RPC message layer (RFC 5531) used by the
// NFS and MOUNT programs: record marking over TCP, call and reply headers,
// and AUTH_UNIX credential parsing.
//
// The record-marking framing splits each RPC message into fragments, each
// preceded by a 4-byte header whose high bit marks the last fragment and
// whose low 31 bits give the fragment body length.
package rpc

import (
	"errors"
	"fmt"
)

// RPC message types (msg_type, RFC 5531 Section 9).
const (
	RPCCall  uint32 = 0
	RPCReply uint32 = 1
)

// RPCVersion is the only supported RPC protocol version.
const RPCVersion uint32 = 2

// Auth flavors (RFC 5531 Section 8.2).
const (
	AuthNone  uint32 = 0
	AuthUnix  uint32 = 1
	AuthShort uint32 = 2
	AuthDES   uint32 = 3
)

// MaxAuthBodyLen is the RFC 5531 limit on opaque auth bodies.
const MaxAuthBodyLen = 400

// Reply status (reply_stat).
const (
	MsgAccepted uint32 = 0
	MsgDenied   uint32 = 1
)

// AcceptStatus is the disposition of an accepted call (accept_stat).
type AcceptStatus uint32

const (
	AcceptSuccess      AcceptStatus = 0
	AcceptProgUnavail  AcceptStatus = 1
	AcceptProgMismatch AcceptStatus = 2
	AcceptProcUnavail  AcceptStatus = 3
	AcceptGarbageArgs  AcceptStatus = 4
	AcceptSystemErr    AcceptStatus = 5
)

// String returns the RFC 5531 name of the accept status.
func (s AcceptStatus) String() string {
	switch s {
	case AcceptSuccess:
		return "SUCCESS"
	case AcceptProgUnavail:
		return "PROG_UNAVAIL"
	case AcceptProgMismatch:
		return "PROG_MISMATCH"
	case AcceptProcUnavail:
		return "PROC_UNAVAIL"
	case AcceptGarbageArgs:
		return "GARBAGE_ARGS"
	case AcceptSystemErr:
		return "SYSTEM_ERR"
	default:
		return fmt.Sprintf("ACCEPT_STAT(%d)", uint32(s))
	}
}

// RejectStatus is the disposition of a denied call (reject_stat).
type RejectStatus uint32

const (
	RejectRPCMismatch RejectStatus = 0
	RejectAuthError   RejectStatus = 1
)

// OpaqueAuth is an RPC auth structure: a flavor plus an opaque body of at
// most 400 bytes (RFC 5531 Section 8.2).
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

// NoAuth is the AUTH_NONE value used for all verifiers this server emits.
var NoAuth = OpaqueAuth{Flavor: AuthNone}

// Protocol-level errors.
var (
	// ErrUnknownVersion is returned for calls whose rpc_version is not 2.
	ErrUnknownVersion = errors.New("rpc: unknown RPC version")

	// ErrUnknownMessageType is returned when msg_type is neither CALL nor REPLY.
	ErrUnknownMessageType = errors.New("rpc: unknown message type")

	// ErrWrongMessageType is returned when a CALL arrives where a REPLY was
	// expected, or vice versa.
	ErrWrongMessageType = errors.New("rpc: wrong message type")

	// ErrFragmentTooLong is returned when a fragment header announces a body
	// larger than the configured maximum.
	ErrFragmentTooLong = errors.New("rpc: fragment too long")

	// ErrMessageTooShort is returned when a message ends before its RPC
	// header is complete.
	ErrMessageTooShort = errors.New("rpc: message too short")

	// ErrInvalidAuthFlavor is returned when an auth body exceeds the RFC
	// limit of 400 bytes.
	ErrInvalidAuthFlavor = errors.New("rpc: invalid auth")

	// ErrIllegalReplyStatus is returned when reply_stat, accept_stat, or
	// reject_stat carries an undefined value.
	ErrIllegalReplyStatus = errors.New("rpc: illegal reply status")
)
