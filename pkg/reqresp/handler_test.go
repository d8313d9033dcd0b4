package reqresp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func await[T any](t *testing.T, p *Promise[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return p.Wait(ctx)
}

// ============================================================================
// Ordered Handler
// ============================================================================

func TestOrderedHandlerPairsInFIFOOrder(t *testing.T) {
	var sent []string
	h := NewHandler[string, int](func(req string) error {
		sent = append(sent, req)
		return nil
	}, nil)

	p1 := h.Write("first")
	p2 := h.Write("second")
	assert.Equal(t, []string{"first", "second"}, sent)
	assert.Equal(t, 2, h.PendingCount())

	require.NoError(t, h.HandleResponse(11))
	require.NoError(t, h.HandleResponse(22))

	v1, err := await(t, p1)
	require.NoError(t, err)
	assert.Equal(t, 11, v1)

	v2, err := await(t, p2)
	require.NoError(t, err)
	assert.Equal(t, 22, v2)
	assert.Equal(t, 0, h.PendingCount())
}

func TestOrderedHandlerResponseOnEmptyBuffer(t *testing.T) {
	h := NewHandler[string, int](nil, nil)
	err := h.HandleResponse(1)
	require.ErrorIs(t, err, ErrResponseOnEmptyBuffer)
}

// TestOrderedHandlerErrorCaught pins the FSM contract: after an error,
// pending promises fail with it, the buffer empties, the transport closes,
// and subsequent writes fail with the same error.
func TestOrderedHandlerErrorCaught(t *testing.T) {
	closed := false
	h := NewHandler[string, int](func(string) error { return nil }, func() { closed = true })

	p1 := h.Write("inflight")
	boom := errors.New("boom")
	h.ErrorCaught(boom)

	_, err := await(t, p1)
	require.ErrorIs(t, err, boom)
	assert.True(t, closed)
	assert.Equal(t, 0, h.PendingCount())

	// Subsequent write fails with the captured error
	p2 := h.Write("late")
	_, err = await(t, p2)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, h.PendingCount())

	// Responses after the error are dropped silently
	require.NoError(t, h.HandleResponse(1))
}

func TestOrderedHandlerInactive(t *testing.T) {
	h := NewHandler[string, int](func(string) error { return nil }, nil)

	p1 := h.Write("inflight")
	h.Inactive()

	_, err := await(t, p1)
	require.ErrorIs(t, err, ErrClosedBeforeResponse)

	p2 := h.Write("late")
	_, err = await(t, p2)
	require.ErrorIs(t, err, ErrChannelClosed)
}

func TestOrderedHandlerSendFailureFailsHandler(t *testing.T) {
	boom := errors.New("write failed")
	h := NewHandler[string, int](func(string) error { return boom }, nil)

	p := h.Write("req")
	_, err := await(t, p)
	require.ErrorIs(t, err, boom)
}

func TestOrderedHandlerErrorAfterInactiveIsIgnored(t *testing.T) {
	h := NewHandler[string, int](nil, nil)
	h.Inactive()
	h.ErrorCaught(errors.New("too late"))

	p := h.Write("req")
	_, err := await(t, p)
	// The first transition wins
	require.ErrorIs(t, err, ErrChannelClosed)
}

// ============================================================================
// Keyed Handler
// ============================================================================

func TestKeyedHandlerOutOfOrderResponses(t *testing.T) {
	h := NewKeyedHandler[uint32, string, string](nil, nil)

	p1 := h.Write(1, "a")
	p2 := h.Write(2, "b")
	p3 := h.Write(3, "c")

	// Responses arrive in reverse order
	require.NoError(t, h.HandleResponse(3, "C"))
	require.NoError(t, h.HandleResponse(1, "A"))
	require.NoError(t, h.HandleResponse(2, "B"))

	v1, err := await(t, p1)
	require.NoError(t, err)
	assert.Equal(t, "A", v1)
	v2, err := await(t, p2)
	require.NoError(t, err)
	assert.Equal(t, "B", v2)
	v3, err := await(t, p3)
	require.NoError(t, err)
	assert.Equal(t, "C", v3)
}

func TestKeyedHandlerUnknownID(t *testing.T) {
	h := NewKeyedHandler[uint32, string, string](nil, nil)
	h.Write(1, "a")

	err := h.HandleResponse(99, "X")
	require.Error(t, err)

	var invalid *InvalidRequestError[uint32]
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, uint32(99), invalid.ID)
}

func TestKeyedHandlerEmptyBuffer(t *testing.T) {
	h := NewKeyedHandler[uint32, string, string](nil, nil)
	require.ErrorIs(t, h.HandleResponse(1, "X"), ErrResponseOnEmptyBuffer)
}

func TestKeyedHandlerErrorDrainsAll(t *testing.T) {
	closed := false
	h := NewKeyedHandler[uint32, string, string](nil, func() { closed = true })

	promises := []*Promise[string]{h.Write(1, "a"), h.Write(2, "b"), h.Write(3, "c")}

	boom := errors.New("boom")
	h.ErrorCaught(boom)
	assert.True(t, closed)
	assert.Equal(t, 0, h.PendingCount())

	for _, p := range promises {
		_, err := await(t, p)
		require.ErrorIs(t, err, boom)
	}
}

func TestKeyedHandlerInactiveFailsPending(t *testing.T) {
	h := NewKeyedHandler[uint32, string, string](nil, nil)
	p := h.Write(7, "a")

	h.Inactive()
	_, err := await(t, p)
	require.ErrorIs(t, err, ErrClosedBeforeResponse)

	// Dropped silently after the transition
	require.NoError(t, h.HandleResponse(7, "late"))
}
