// Package client provides the client half of the RPC exchange: a
// correlator matching replies to calls by transaction id, and a small NFS3
// / MOUNT client built on it.
package client

import (
	"fmt"
	"sync"
)

// Expectation records what a registered call was for, so the reply body
// can be decoded with the right procedure codec.
type Expectation struct {
	Program   uint32
	Version   uint32
	Procedure uint32
}

// UnknownXIDError reports a reply whose transaction id matches no
// outstanding call.
type UnknownXIDError struct {
	XID uint32
}

func (e *UnknownXIDError) Error() string {
	return fmt.Sprintf("client: reply for unknown xid 0x%x", e.XID)
}

// Correlator tracks outstanding calls by XID.
//
// The default mode is one-shot: a reply consumes its registration, and an
// unmatched XID is an error. The allow-duplicates mode looks up without
// removing, which tolerates retransmitted replies during testing and
// recovery.
type Correlator struct {
	mu              sync.Mutex
	pending         map[uint32]Expectation
	allowDuplicates bool
}

// NewCorrelator creates a one-shot correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[uint32]Expectation)}
}

// NewCorrelatorAllowingDuplicates creates a correlator that keeps
// registrations across matches.
func NewCorrelatorAllowingDuplicates() *Correlator {
	return &Correlator{pending: make(map[uint32]Expectation), allowDuplicates: true}
}

// Register records an outstanding call. Registering an XID that is already
// pending fails: the caller would otherwise never be able to tell the two
// replies apart.
func (c *Correlator) Register(xid uint32, exp Expectation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pending[xid]; exists {
		return fmt.Errorf("client: xid 0x%x already registered", xid)
	}
	c.pending[xid] = exp
	return nil
}

// Match resolves a reply's XID to the expectation registered for it.
// In one-shot mode the registration is consumed.
func (c *Correlator) Match(xid uint32) (Expectation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp, ok := c.pending[xid]
	if !ok {
		return Expectation{}, &UnknownXIDError{XID: xid}
	}
	if !c.allowDuplicates {
		delete(c.pending, xid)
	}
	return exp, nil
}

// Forget drops a registration, e.g. when the call's write failed.
func (c *Correlator) Forget(xid uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, xid)
}

// PendingCount reports the number of outstanding calls.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
