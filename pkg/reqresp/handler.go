package reqresp

import "sync"

// handlerState is the three-state machine shared by both handler kinds.
type handlerState int

const (
	operational handlerState = iota
	inactive
	failed
)

// ============================================================================
// Ordered Handler
// ============================================================================

// Handler pairs requests with responses arriving in request order (FIFO
// pipelining).
//
// send forwards a request downstream; closeTransport tears the transport
// down after an error. Both may be nil when the owner drives those effects
// itself.
type Handler[Req, Resp any] struct {
	send           func(Req) error
	closeTransport func()

	mu      sync.Mutex
	st      handlerState
	failure error
	pending []*Promise[Resp]
}

// NewHandler creates an operational ordered handler.
func NewHandler[Req, Resp any](send func(Req) error, closeTransport func()) *Handler[Req, Resp] {
	return &Handler[Req, Resp]{send: send, closeTransport: closeTransport}
}

// Write buffers a promise for the request and forwards the request
// downstream. After an error the promise fails with that error; after the
// transport went inactive it fails with ErrChannelClosed.
func (h *Handler[Req, Resp]) Write(req Req) *Promise[Resp] {
	promise := newPromise[Resp]()

	h.mu.Lock()
	switch h.st {
	case failed:
		err := h.failure
		h.mu.Unlock()
		promise.fail(err)
		return promise
	case inactive:
		h.mu.Unlock()
		promise.fail(ErrChannelClosed)
		return promise
	}
	h.pending = append(h.pending, promise)
	h.mu.Unlock()

	if h.send != nil {
		if err := h.send(req); err != nil {
			h.ErrorCaught(err)
		}
	}
	return promise
}

// HandleResponse resolves the oldest pending promise with the response.
//
// A response with no outstanding request is an error the caller should
// treat as fatal to the transport. Responses arriving while not
// operational are dropped silently: the promises were already failed.
func (h *Handler[Req, Resp]) HandleResponse(resp Resp) error {
	h.mu.Lock()
	if h.st != operational {
		h.mu.Unlock()
		return nil
	}
	if len(h.pending) == 0 {
		h.mu.Unlock()
		return ErrResponseOnEmptyBuffer
	}
	promise := h.pending[0]
	h.pending = h.pending[1:]
	h.mu.Unlock()

	promise.complete(resp)
	return nil
}

// ErrorCaught moves the handler to the failed state: every pending promise
// fails with err, the buffer empties, and the transport is closed.
func (h *Handler[Req, Resp]) ErrorCaught(err error) {
	h.mu.Lock()
	if h.st != operational {
		h.mu.Unlock()
		return
	}
	h.st = failed
	h.failure = err
	drained := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, promise := range drained {
		promise.fail(err)
	}
	if h.closeTransport != nil {
		h.closeTransport()
	}
}

// Inactive moves the handler to the inactive state on clean transport
// close: every pending promise fails with ErrClosedBeforeResponse.
func (h *Handler[Req, Resp]) Inactive() {
	h.mu.Lock()
	if h.st != operational {
		h.mu.Unlock()
		return
	}
	h.st = inactive
	drained := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, promise := range drained {
		promise.fail(ErrClosedBeforeResponse)
	}
}

// PendingCount reports the number of buffered promises.
func (h *Handler[Req, Resp]) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// ============================================================================
// Keyed Handler
// ============================================================================

// KeyedHandler pairs requests with out-of-order responses through a shared
// request-id type.
type KeyedHandler[K comparable, Req, Resp any] struct {
	send           func(K, Req) error
	closeTransport func()

	mu      sync.Mutex
	st      handlerState
	failure error
	pending map[K]*Promise[Resp]
	order   []K
}

// NewKeyedHandler creates an operational keyed handler.
func NewKeyedHandler[K comparable, Req, Resp any](send func(K, Req) error, closeTransport func()) *KeyedHandler[K, Req, Resp] {
	return &KeyedHandler[K, Req, Resp]{
		send:           send,
		closeTransport: closeTransport,
		pending:        make(map[K]*Promise[Resp]),
	}
}

// Write buffers a promise under the request's id and forwards the request.
func (h *KeyedHandler[K, Req, Resp]) Write(id K, req Req) *Promise[Resp] {
	promise := newPromise[Resp]()

	h.mu.Lock()
	switch h.st {
	case failed:
		err := h.failure
		h.mu.Unlock()
		promise.fail(err)
		return promise
	case inactive:
		h.mu.Unlock()
		promise.fail(ErrChannelClosed)
		return promise
	}
	h.pending[id] = promise
	h.order = append(h.order, id)
	h.mu.Unlock()

	if h.send != nil {
		if err := h.send(id, req); err != nil {
			h.ErrorCaught(err)
		}
	}
	return promise
}

// HandleResponse resolves the promise registered under the response's id.
//
// An empty buffer or an unmatched id is an error the caller should treat
// as fatal to the transport; responses while not operational are dropped.
func (h *KeyedHandler[K, Req, Resp]) HandleResponse(id K, resp Resp) error {
	h.mu.Lock()
	if h.st != operational {
		h.mu.Unlock()
		return nil
	}
	if len(h.pending) == 0 {
		h.mu.Unlock()
		return ErrResponseOnEmptyBuffer
	}
	promise, ok := h.pending[id]
	if !ok {
		h.mu.Unlock()
		return &InvalidRequestError[K]{ID: id}
	}
	delete(h.pending, id)
	h.mu.Unlock()

	promise.complete(resp)
	return nil
}

// ErrorCaught moves the handler to the failed state: every pending promise
// fails with err in insertion order, and the transport is closed.
func (h *KeyedHandler[K, Req, Resp]) ErrorCaught(err error) {
	h.mu.Lock()
	if h.st != operational {
		h.mu.Unlock()
		return
	}
	h.st = failed
	h.failure = err
	drained := h.drainLocked()
	h.mu.Unlock()

	for _, promise := range drained {
		promise.fail(err)
	}
	if h.closeTransport != nil {
		h.closeTransport()
	}
}

// Inactive moves the handler to the inactive state on clean transport
// close.
func (h *KeyedHandler[K, Req, Resp]) Inactive() {
	h.mu.Lock()
	if h.st != operational {
		h.mu.Unlock()
		return
	}
	h.st = inactive
	drained := h.drainLocked()
	h.mu.Unlock()

	for _, promise := range drained {
		promise.fail(ErrClosedBeforeResponse)
	}
}

// drainLocked empties the buffer in insertion order. Caller holds h.mu.
func (h *KeyedHandler[K, Req, Resp]) drainLocked() []*Promise[Resp] {
	drained := make([]*Promise[Resp], 0, len(h.pending))
	for _, id := range h.order {
		if promise, ok := h.pending[id]; ok {
			drained = append(drained, promise)
			delete(h.pending, id)
		}
	}
	h.order = nil
	return drained
}

// PendingCount reports the number of buffered promises.
func (h *KeyedHandler[K, Req, Resp]) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
