package nfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/nfswire/internal/logger"
	"github.com/marmos91/nfswire/internal/protocol/rpc"
	"github.com/marmos91/nfswire/pkg/bufpool"
)

// Connection serves all RPC requests of one accepted TCP connection.
//
// Requests are read sequentially to preserve wire order; each request is
// processed on its own goroutine bounded by a semaphore, and replies are
// written in backend-completion order under a write mutex. Pipelining
// correctness is the client's responsibility via XIDs.
type Connection struct {
	adapter *Adapter
	conn    net.Conn
	id      uuid.UUID

	requestSem chan struct{}
	wg         sync.WaitGroup
	writeMu    sync.Mutex

	quiesceOnce sync.Once
	quiesceCh   chan struct{}
}

// NewConnection wraps an accepted connection.
func NewConnection(adapter *Adapter, conn net.Conn) *Connection {
	return &Connection{
		adapter:    adapter,
		conn:       conn,
		id:         uuid.New(),
		requestSem: make(chan struct{}, adapter.config.MaxRequestsPerConnection),
		quiesceCh:  make(chan struct{}),
	}
}

// ShouldQuiesce asks the connection to stop reading new requests, drain
// in-flight ones, and close. Safe to call from any goroutine.
func (c *Connection) ShouldQuiesce() {
	c.quiesceOnce.Do(func() {
		close(c.quiesceCh)
		// Unblock a pending read
		_ = c.conn.SetReadDeadline(time.Now())
	})
}

// Close tears the connection down immediately.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Serve handles all RPC requests for this connection until the client
// disconnects, the context is cancelled, or quiescing is requested.
//
// A panic in one request is recovered so a single misbehaving call cannot
// take down the server.
func (c *Connection) Serve(ctx context.Context, handle uint64) {
	clientAddr := c.conn.RemoteAddr().String()

	lc := logger.NewLogContext(clientAddr)
	ctx = logger.WithContext(ctx, lc)

	logger.Debug("New connection", "address", clientAddr, "conn_id", c.id)
	if m := c.adapter.metrics; m != nil {
		m.ConnectionOpened()
	}

	defer func() {
		// Drain in-flight requests before reporting the close
		c.wg.Wait()
		_ = c.conn.Close()
		c.adapter.controller.ChildClosed(handle)
		if m := c.adapter.metrics; m != nil {
			m.ConnectionClosed()
		}
		logger.Debug("Connection closed", "address", clientAddr, "conn_id", c.id)
	}()

	for {
		// The deadline goes first: a quiesce signal arriving after the
		// select below still shortens it to "now" and unblocks the read.
		if idle := c.adapter.config.Timeouts.Idle; idle > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
				logger.Warn("Failed to set read deadline", "address", clientAddr, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-c.quiesceCh:
			return
		default:
		}

		call, err := c.readRequest()
		if err != nil {
			c.logReadError(clientAddr, err)
			return
		}

		caller := extractCaller(clientAddr, call)

		// Bound concurrent requests, then process off the read loop so a
		// slow backend does not stall pipelined calls.
		c.requestSem <- struct{}{}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer func() { <-c.requestSem }()
			defer c.handleRequestPanic(clientAddr, call.XID)

			c.processRequest(ctx, caller, call)
		}()
	}
}

// readRequest reads one complete RPC record and parses it as a CALL.
//
// Single-fragment records (the common case) are read into a pooled buffer
// that is returned before this function exits; ParseRPCCall copies what it
// keeps.
func (c *Connection) readRequest() (*rpc.RPCCallMessage, error) {
	maxSize := c.adapter.config.MaxFragmentSize

	header, err := rpc.ReadFragmentHeader(c.conn)
	if err != nil {
		return nil, err
	}
	if err := rpc.ValidateFragmentSize(header.Length, maxSize); err != nil {
		return nil, err
	}

	message := bufpool.GetUint32(header.Length)
	defer bufpool.Put(message)

	if _, err := io.ReadFull(c.conn, message); err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	if !header.IsLast {
		// Rare multi-fragment record: fall back to accumulating the rest
		rest, err := c.readRemainingFragments(message, maxSize)
		if err != nil {
			return nil, err
		}
		return rpc.ParseRPCCall(rest)
	}

	return rpc.ParseRPCCall(message)
}

// readRemainingFragments collects the fragments after the first until the
// last-fragment bit shows up.
func (c *Connection) readRemainingFragments(first []byte, maxSize uint32) ([]byte, error) {
	record := append([]byte{}, first...)

	for {
		header, err := rpc.ReadFragmentHeader(c.conn)
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if err := rpc.ValidateFragmentSize(uint32(len(record))+header.Length, maxSize); err != nil {
			return nil, err
		}

		body := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return nil, fmt.Errorf("read fragment body: %w", err)
		}
		record = append(record, body...)

		if header.IsLast {
			return record, nil
		}
	}
}

// processRequest dispatches one call and writes its reply.
func (c *Connection) processRequest(ctx context.Context, caller *Caller, call *rpc.RPCCallMessage) {
	start := time.Now()

	result, err := Dispatch(ctx, c.adapter.backend, caller, call)
	if err != nil {
		// Undecodable call bodies are fatal to the connection
		logger.WarnCtx(ctx, "Closing connection on parse failure",
			"address", caller.Addr, "xid", fmt.Sprintf("0x%x", call.XID), "error", err)
		c.ShouldQuiesce()
		_ = c.conn.Close()
		return
	}

	select {
	case <-ctx.Done():
		// The connection is gone; completing the write would race a
		// closed socket, so the reply is dropped.
		logger.DebugCtx(ctx, "Dropping reply for closed connection", "xid", fmt.Sprintf("0x%x", call.XID))
		return
	default:
	}

	if err := c.writeReply(result); err != nil {
		logger.DebugCtx(ctx, "Error writing reply",
			"address", caller.Addr, "xid", fmt.Sprintf("0x%x", call.XID), "error", err)
		return
	}

	if m := c.adapter.metrics; m != nil {
		m.RecordRequest(result.ProgramName, result.ProcedureName, result.NFSStatus.String(), time.Since(start))
		if result.BytesRead > 0 {
			m.RecordBytesRead(result.BytesRead)
		}
	}
}

// writeReply writes one complete RPC reply record.
//
// Writes are serialized under writeMu to keep concurrent replies from
// interleaving on the TCP stream. READ payloads are written directly after
// the metadata prefix, never copied into the reply buffer.
func (c *Connection) writeReply(result *DispatchResult) error {
	total := len(result.Data)
	if result.Payload != nil {
		total += len(result.Payload.Data) + int(result.Payload.FillBytes)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if wt := c.adapter.config.Timeouts.Write; wt > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(wt)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	header := [4]byte{
		byte(uint32(total)>>24) | 0x80,
		byte(uint32(total) >> 16),
		byte(uint32(total) >> 8),
		byte(uint32(total)),
	}
	if _, err := c.conn.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := c.conn.Write(result.Data); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}

	if result.Payload != nil {
		if len(result.Payload.Data) > 0 {
			if _, err := c.conn.Write(result.Payload.Data); err != nil {
				return fmt.Errorf("write payload: %w", err)
			}
		}
		if result.Payload.FillBytes > 0 {
			var fill [3]byte
			if _, err := c.conn.Write(fill[:result.Payload.FillBytes]); err != nil {
				return fmt.Errorf("write payload padding: %w", err)
			}
		}
	}
	return nil
}

// handleRequestPanic recovers a panicking request handler.
func (c *Connection) handleRequestPanic(clientAddr string, xid uint32) {
	if r := recover(); r != nil {
		logger.Error("Panic while processing request",
			"address", clientAddr,
			"xid", fmt.Sprintf("0x%x", xid),
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

// logReadError classifies read-loop termination causes for logging.
func (c *Connection) logReadError(clientAddr string, err error) {
	var netErr net.Error
	switch {
	case err == io.EOF:
		logger.Debug("Connection closed by client", "address", clientAddr)
	case errors.As(err, &netErr) && netErr.Timeout():
		select {
		case <-c.quiesceCh:
			logger.Debug("Connection read interrupted for quiesce", "address", clientAddr)
		default:
			logger.Debug("Connection timed out", "address", clientAddr, "error", err)
		}
	default:
		logger.Debug("Error reading request", "address", clientAddr, "error", err)
	}
}

// extractCaller builds the Caller from the call's credentials. AUTH_UNIX
// bodies are decoded; any other flavor is passed through untouched.
func extractCaller(clientAddr string, call *rpc.RPCCallMessage) *Caller {
	caller := &Caller{
		Addr:       clientAddr,
		AuthFlavor: call.Credentials.Flavor,
	}

	if call.Credentials.Flavor == rpc.AuthUnix {
		auth, err := rpc.ParseUnixAuth(call.Credentials.Body)
		if err != nil {
			logger.Debug("Ignoring malformed AUTH_UNIX credentials",
				"address", clientAddr, "xid", fmt.Sprintf("0x%x", call.XID), "error", err)
			return caller
		}
		caller.MachineName = auth.MachineName
		caller.UID = auth.UID
		caller.GID = auth.GID
		caller.GIDs = auth.GIDs
	}
	return caller
}
