package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/marmos91/nfswire/internal/logger"
	"github.com/marmos91/nfswire/internal/protocol/mount"
	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	v3 "github.com/marmos91/nfswire/internal/protocol/nfs/v3"
	"github.com/marmos91/nfswire/internal/protocol/rpc"
	"github.com/marmos91/nfswire/pkg/reqresp"
)

// Client is a minimal NFS3/MOUNT client over one TCP connection.
//
// Calls may be pipelined from multiple goroutines. Outstanding calls are
// buffered in a keyed request/response handler under their XID, so
// out-of-order server replies resolve the right caller; the correlator
// additionally records which procedure each XID was for and fails the
// connection on a reply whose XID matches no outstanding call. The recorded
// procedure is not used for decoding: each typed helper decodes the reply
// body with its own procedure's codec.
type Client struct {
	conn       net.Conn
	correlator *Correlator
	pending    *reqresp.KeyedHandler[uint32, []byte, *rpc.RPCReplyMessage]

	nextXID atomic.Uint32
	writeMu sync.Mutex
}

// Dial connects to an NFS server address ("host:port").
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection and starts its reply reader.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:       conn,
		correlator: NewCorrelator(),
	}
	c.pending = reqresp.NewKeyedHandler[uint32, []byte, *rpc.RPCReplyMessage](
		c.writeRecord,
		func() { _ = conn.Close() },
	)
	c.nextXID.Store(1)
	go c.readLoop()
	return c
}

// Close tears down the connection; outstanding calls fail.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.pending.Inactive()
	return err
}

// writeRecord frames and writes one encoded call. Used as the handler's
// downstream send; a failure here fails every outstanding call, which is
// correct for a shared TCP stream.
func (c *Client) writeRecord(xid uint32, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := rpc.WriteRecord(c.conn, msg); err != nil {
		return fmt.Errorf("write call 0x%x: %w", xid, err)
	}
	return nil
}

// readLoop reads reply records and resolves their promises.
//
// A reply with an unknown XID is a protocol violation and fails the whole
// connection, as does any framing or parse error.
func (c *Client) readLoop() {
	for {
		record, err := rpc.ReadRecord(c.conn, rpc.DefaultMaxFragmentSize)
		if err != nil {
			c.pending.ErrorCaught(err)
			return
		}

		reply, err := rpc.ParseRPCReply(record)
		if err != nil {
			c.pending.ErrorCaught(err)
			return
		}

		if _, err := c.correlator.Match(reply.XID); err != nil {
			logger.Warn("Reply for unknown transaction", "xid", fmt.Sprintf("0x%x", reply.XID))
			c.pending.ErrorCaught(err)
			return
		}

		if err := c.pending.HandleResponse(reply.XID, reply); err != nil {
			c.pending.ErrorCaught(err)
			return
		}
	}
}

// Call performs one RPC exchange and returns the reply body of an
// accepted SUCCESS reply.
func (c *Client) Call(ctx context.Context, program, version, procedure uint32, body []byte) ([]byte, error) {
	xid := c.nextXID.Add(1)

	if err := c.correlator.Register(xid, Expectation{Program: program, Version: version, Procedure: procedure}); err != nil {
		return nil, err
	}

	call := &rpc.RPCCallMessage{
		XID:         xid,
		Program:     program,
		Version:     version,
		Procedure:   procedure,
		Credentials: rpc.NoAuth,
		Verifier:    rpc.NoAuth,
		Body:        body,
	}
	msg, err := rpc.EncodeRPCCall(call)
	if err != nil {
		c.correlator.Forget(xid)
		return nil, err
	}

	promise := c.pending.Write(xid, msg)

	reply, err := promise.Wait(ctx)
	if err != nil {
		c.correlator.Forget(xid)
		return nil, err
	}
	return acceptedBody(reply)
}

// acceptedBody unwraps an accepted SUCCESS reply.
func acceptedBody(reply *rpc.RPCReplyMessage) ([]byte, error) {
	if !reply.Accepted {
		return nil, fmt.Errorf("call denied: reject status %d", reply.RejectStatus)
	}
	if reply.AcceptStatus != rpc.AcceptSuccess {
		return nil, fmt.Errorf("call not successful: %v", reply.AcceptStatus)
	}
	return reply.Body, nil
}

// ============================================================================
// Typed Helpers
// ============================================================================

// Mount resolves an export path to its root file handle.
func (c *Client) Mount(ctx context.Context, dirPath string) (*mount.MountResponse, error) {
	body, err := (&mount.MountRequest{DirPath: dirPath}).Encode()
	if err != nil {
		return nil, err
	}
	replyBody, err := c.Call(ctx, mount.Program, mount.Version, mount.ProcMount, body)
	if err != nil {
		return nil, err
	}
	return mount.DecodeMountResponse(replyBody)
}

// Null pings the NFS program.
func (c *Client) Null(ctx context.Context) error {
	_, err := c.Call(ctx, v3.Program, v3.Version, v3.ProcNull, nil)
	return err
}

// GetAttr fetches the attributes of a handle.
func (c *Client) GetAttr(ctx context.Context, handle types.FileHandle) (*v3.GetAttrResponse, error) {
	body, err := (&v3.GetAttrRequest{Handle: handle}).Encode()
	if err != nil {
		return nil, err
	}
	replyBody, err := c.Call(ctx, v3.Program, v3.Version, v3.ProcGetAttr, body)
	if err != nil {
		return nil, err
	}
	return v3.DecodeGetAttrResponse(replyBody)
}

// Lookup resolves a name within a directory.
func (c *Client) Lookup(ctx context.Context, dir types.FileHandle, name string) (*v3.LookupResponse, error) {
	body, err := (&v3.LookupRequest{DirHandle: dir, Name: name}).Encode()
	if err != nil {
		return nil, err
	}
	replyBody, err := c.Call(ctx, v3.Program, v3.Version, v3.ProcLookup, body)
	if err != nil {
		return nil, err
	}
	return v3.DecodeLookupResponse(replyBody)
}

// Read fetches count bytes at offset.
func (c *Client) Read(ctx context.Context, handle types.FileHandle, offset uint64, count uint32) (*v3.ReadResponse, error) {
	body, err := (&v3.ReadRequest{Handle: handle, Offset: offset, Count: count}).Encode()
	if err != nil {
		return nil, err
	}
	replyBody, err := c.Call(ctx, v3.Program, v3.Version, v3.ProcRead, body)
	if err != nil {
		return nil, err
	}
	return v3.DecodeReadResponse(replyBody)
}

// ReadDirPlus lists a directory with attributes and handles.
func (c *Client) ReadDirPlus(ctx context.Context, dir types.FileHandle, cookie uint64, maxCount uint32) (*v3.ReadDirPlusResponse, error) {
	body, err := (&v3.ReadDirPlusRequest{DirHandle: dir, Cookie: cookie, DirCount: maxCount, MaxCount: maxCount}).Encode()
	if err != nil {
		return nil, err
	}
	replyBody, err := c.Call(ctx, v3.Program, v3.Version, v3.ProcReadDirPlus, body)
	if err != nil {
		return nil, err
	}
	return v3.DecodeReadDirPlusResponse(replyBody)
}
