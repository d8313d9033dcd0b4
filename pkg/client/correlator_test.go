package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelatorOneShot(t *testing.T) {
	c := NewCorrelator()
	exp := Expectation{Program: 100003, Version: 3, Procedure: 6}

	require.NoError(t, c.Register(0x42, exp))
	assert.Equal(t, 1, c.PendingCount())

	got, err := c.Match(0x42)
	require.NoError(t, err)
	assert.Equal(t, exp, got)
	assert.Equal(t, 0, c.PendingCount())

	// Second match fails: the registration was consumed
	_, err = c.Match(0x42)
	require.Error(t, err)

	var unknown *UnknownXIDError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, uint32(0x42), unknown.XID)
}

func TestCorrelatorDistinctXIDs(t *testing.T) {
	c := NewCorrelator()

	for xid := uint32(1); xid <= 10; xid++ {
		require.NoError(t, c.Register(xid, Expectation{Procedure: xid * 2}))
	}

	// Replies arrive out of order; each matches its own call
	for xid := uint32(10); xid >= 1; xid-- {
		exp, err := c.Match(xid)
		require.NoError(t, err)
		assert.Equal(t, xid*2, exp.Procedure)
	}
}

func TestCorrelatorRejectsDuplicateRegistration(t *testing.T) {
	c := NewCorrelator()
	require.NoError(t, c.Register(7, Expectation{}))
	require.Error(t, c.Register(7, Expectation{}))
}

func TestCorrelatorAllowDuplicates(t *testing.T) {
	c := NewCorrelatorAllowingDuplicates()
	require.NoError(t, c.Register(7, Expectation{Procedure: 1}))

	for i := 0; i < 3; i++ {
		exp, err := c.Match(7)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), exp.Procedure)
	}
	assert.Equal(t, 1, c.PendingCount())
}

func TestCorrelatorForget(t *testing.T) {
	c := NewCorrelator()
	require.NoError(t, c.Register(9, Expectation{}))
	c.Forget(9)
	assert.Equal(t, 0, c.PendingCount())

	_, err := c.Match(9)
	require.Error(t, err)
}
