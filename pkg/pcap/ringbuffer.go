// Package pcap synthesises legitimate libpcap capture files from
// application-level I/O observations: a TCP handshake when a connection
// opens, DATA segments for bytes read and written, and a FIN/ACK/ACK
// teardown on close. No NIC-level capture is involved; the records are
// fabricated from what the connection wrapper sees.
package pcap

import "sync"

// RingBuffer is a bounded FIFO of captured pcap fragments. It backs the
// record-on-demand mode where traffic is only written out when something
// interesting happens.
//
// Eviction: adding beyond maxFragments drops the oldest fragment first;
// afterwards, oldest fragments are dropped until the byte budget holds
// again. A single fragment larger than maxBytes therefore still resides in
// the buffer alone until the next add.
type RingBuffer struct {
	maxFragments int
	maxBytes     int

	mu         sync.Mutex
	fragments  [][]byte
	totalBytes int
}

// NewRingBuffer creates a ring bounded by fragment count and byte budget.
func NewRingBuffer(maxFragments, maxBytes int) *RingBuffer {
	return &RingBuffer{maxFragments: maxFragments, maxBytes: maxBytes}
}

// AddFragment appends a captured fragment, evicting the oldest entries to
// honour both bounds.
func (r *RingBuffer) AddFragment(fragment []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.fragments) >= r.maxFragments {
		r.dropOldest()
	}

	r.fragments = append(r.fragments, fragment)
	r.totalBytes += len(fragment)

	for r.totalBytes > r.maxBytes && len(r.fragments) > 1 {
		r.dropOldest()
	}
}

// dropOldest removes the head fragment. Caller holds r.mu.
func (r *RingBuffer) dropOldest() {
	if len(r.fragments) == 0 {
		return
	}
	r.totalBytes -= len(r.fragments[0])
	r.fragments[0] = nil
	r.fragments = r.fragments[1:]
}

// Emit drains the buffer into one contiguous byte slice in insertion
// order.
func (r *RingBuffer) Emit() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, 0, r.totalBytes)
	for _, fragment := range r.fragments {
		out = append(out, fragment...)
	}
	r.fragments = nil
	r.totalBytes = 0
	return out
}

// Count reports the number of buffered fragments.
func (r *RingBuffer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fragments)
}

// TotalBytes reports the buffered byte total.
func (r *RingBuffer) TotalBytes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalBytes
}
