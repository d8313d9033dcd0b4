package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/nfswire/internal/protocol/xdr"
)

// RPCReplyMessage is a parsed RPC REPLY header plus the procedure results
// that follow it.
type RPCReplyMessage struct {
	XID      uint32
	Accepted bool

	// Accepted arm
	Verifier     OpaqueAuth
	AcceptStatus AcceptStatus
	MismatchLow  uint32 // PROG_MISMATCH only
	MismatchHigh uint32 // PROG_MISMATCH only

	// Denied arm
	RejectStatus RejectStatus
	RPCLow       uint32 // RPC_MISMATCH only
	RPCHigh      uint32 // RPC_MISMATCH only
	AuthStatus   uint32 // AUTH_ERROR only

	// Body holds the XDR-encoded procedure results for SUCCESS replies.
	Body []byte
}

// ParseRPCReply parses a complete RPC record as a REPLY message.
//
// Layout (RFC 5531 Section 9): xid | msg_type=1 | reply_stat, then either
// the accepted structure {verf, accept_stat [, mismatch_info]} or the
// denied structure {reject_stat, ...}.
func ParseRPCReply(data []byte) (*RPCReplyMessage, error) {
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
	case RPCReply:
	case RPCCall:
		return nil, fmt.Errorf("%w: got CALL, want REPLY (xid 0x%x)", ErrWrongMessageType, xid)
	default:
		return nil, fmt.Errorf("%w: %d (xid 0x%x)", ErrUnknownMessageType, msgType, xid)
	}

	reply := &RPCReplyMessage{XID: xid}

	replyStat, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read reply_stat: %w", err)
	}

	switch replyStat {
	case MsgAccepted:
		reply.Accepted = true
		if reply.Verifier, err = decodeOpaqueAuth(r); err != nil {
			return nil, fmt.Errorf("read verifier: %w", err)
		}

		acceptStat, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read accept_stat: %w", err)
		}
		if acceptStat > uint32(AcceptSystemErr) {
			return nil, fmt.Errorf("%w: accept_stat %d", ErrIllegalReplyStatus, acceptStat)
		}
		reply.AcceptStatus = AcceptStatus(acceptStat)

		if reply.AcceptStatus == AcceptProgMismatch {
			if reply.MismatchLow, err = xdr.DecodeUint32(r); err != nil {
				return nil, fmt.Errorf("read mismatch low: %w", err)
			}
			if reply.MismatchHigh, err = xdr.DecodeUint32(r); err != nil {
				return nil, fmt.Errorf("read mismatch high: %w", err)
			}
		}

	case MsgDenied:
		rejectStat, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read reject_stat: %w", err)
		}
		switch RejectStatus(rejectStat) {
		case RejectRPCMismatch:
			reply.RejectStatus = RejectRPCMismatch
			if reply.RPCLow, err = xdr.DecodeUint32(r); err != nil {
				return nil, fmt.Errorf("read rpc mismatch low: %w", err)
			}
			if reply.RPCHigh, err = xdr.DecodeUint32(r); err != nil {
				return nil, fmt.Errorf("read rpc mismatch high: %w", err)
			}
		case RejectAuthError:
			reply.RejectStatus = RejectAuthError
			if reply.AuthStatus, err = xdr.DecodeUint32(r); err != nil {
				return nil, fmt.Errorf("read auth status: %w", err)
			}
		default:
			return nil, fmt.Errorf("%w: reject_stat %d", ErrIllegalReplyStatus, rejectStat)
		}

	default:
		return nil, fmt.Errorf("%w: reply_stat %d", ErrIllegalReplyStatus, replyStat)
	}

	body := make([]byte, r.Len())
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	reply.Body = body

	return reply, nil
}

// ============================================================================
// Reply Construction
// ============================================================================

// MakeSuccessReply builds an accepted SUCCESS reply carrying data as the
// procedure results. The verifier is always AUTH_NONE.
func MakeSuccessReply(xid uint32, data []byte) ([]byte, error) {
	buf, err := replyHeader(xid, AcceptSuccess)
	if err != nil {
		return nil, err
	}
	if _, err := buf.Write(data); err != nil {
		return nil, fmt.Errorf("write results: %w", err)
	}
	return buf.Bytes(), nil
}

// MakeAcceptErrorReply builds an accepted reply with a non-SUCCESS accept
// status and an empty body. Used for PROG_UNAVAIL, PROC_UNAVAIL,
// GARBAGE_ARGS, and SYSTEM_ERR.
func MakeAcceptErrorReply(xid uint32, status AcceptStatus) ([]byte, error) {
	if status == AcceptSuccess || status == AcceptProgMismatch {
		return nil, fmt.Errorf("accept status %v needs a dedicated constructor", status)
	}
	buf, err := replyHeader(xid, status)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MakeProgMismatchReply builds an accepted PROG_MISMATCH reply advertising
// the supported version range.
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	buf, err := replyHeader(xid, AcceptProgMismatch)
	if err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, low); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, high); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// replyHeader writes the common accepted-reply prefix:
// xid | REPLY | MSG_ACCEPTED | AUTH_NONE verifier | accept_stat.
func replyHeader(xid uint32, status AcceptStatus) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)

	if err := xdr.WriteUint32(buf, xid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, RPCReply); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(buf, MsgAccepted); err != nil {
		return nil, err
	}
	if err := encodeOpaqueAuth(buf, NoAuth); err != nil {
		return nil, fmt.Errorf("write verifier: %w", err)
	}
	if err := xdr.WriteUint32(buf, uint32(status)); err != nil {
		return nil, err
	}
	return buf, nil
}
