package pcap

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// EmissionMode selects when write-side records are produced relative to
// the underlying transport write.
type EmissionMode int

const (
	// WhenIssued records outbound data before it is handed to the
	// transport, capturing what the application intended to send.
	WhenIssued EmissionMode = iota

	// WhenCompleted records outbound data only after the transport write
	// succeeded, capturing what actually left the process.
	WhenCompleted
)

// CapturingConn wraps a net.Conn and synthesises pcap records for its
// lifecycle and traffic: the handshake on creation, DATA segments for
// every Read and Write, and the teardown on close. The FIN is attributed
// to whichever side closed first.
type CapturingConn struct {
	net.Conn

	writer  *Writer
	mode    EmissionMode
	writeMu sync.Mutex
	readMu  sync.Mutex

	peerClosed atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// NewCapturingConn wraps conn and immediately emits the synthetic
// three-way handshake into sink.
func NewCapturingConn(conn net.Conn, sink func([]byte), mode EmissionMode) (*CapturingConn, error) {
	writer := NewWriter(sink, conn.LocalAddr(), conn.RemoteAddr())
	if err := writer.ConnectionEstablished(); err != nil {
		return nil, err
	}
	return &CapturingConn{Conn: conn, writer: writer, mode: mode}, nil
}

// Read records inbound bytes as remote-to-local DATA segments.
func (c *CapturingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.readMu.Lock()
		_ = c.writer.InboundData(p[:n])
		c.readMu.Unlock()
	}
	if err == io.EOF {
		c.peerClosed.Store(true)
	}
	return n, err
}

// Write records outbound bytes as local-to-remote DATA segments, before
// or after the transport write depending on the emission mode.
func (c *CapturingConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.mode == WhenIssued {
		_ = c.writer.OutboundData(p)
	}

	n, err := c.Conn.Write(p)

	if c.mode == WhenCompleted && n > 0 {
		_ = c.writer.OutboundData(p[:n])
	}
	return n, err
}

// Close emits the teardown once and closes the transport. The FIN belongs
// to the peer when the peer was seen closing first (EOF on Read),
// otherwise to the local side.
func (c *CapturingConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.writer.ConnectionClosed(!c.peerClosed.Load())
		c.writeMu.Unlock()
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

// RingCapture owns a pcap writer whose sink is a bounded ring buffer, for
// the record-on-demand capture style: traffic accumulates in memory and is
// only written out when RecordPreviousPackets fires.
type RingCapture struct {
	ring *RingBuffer
}

// NewRingCapture creates the ring-buffered capture sink.
func NewRingCapture(maxFragments, maxBytes int) *RingCapture {
	return &RingCapture{ring: NewRingBuffer(maxFragments, maxBytes)}
}

// AddFragment is the sink function to hand to NewCapturingConn or
// NewWriter.
func (r *RingCapture) AddFragment(fragment []byte) {
	r.ring.AddFragment(fragment)
}

// RecordPreviousPackets drains the buffered records into the sink,
// typically in response to an interesting event on the connection.
func (r *RingCapture) RecordPreviousPackets(sink *FileSink) {
	if data := r.ring.Emit(); len(data) > 0 {
		sink.Write(data)
	}
}

// Buffered reports the current ring occupancy for tests and introspection.
func (r *RingCapture) Buffered() (fragments, bytes int) {
	return r.ring.Count(), r.ring.TotalBytes()
}
