package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHandleRoundTrip(t *testing.T) {
	h := NewFileHandle(0x1122334455667788)
	require.NoError(t, h.Validate())
	assert.Equal(t, uint64(0x1122334455667788), h.FileID())
	assert.Equal(t, "1122334455667788", h.String())

	parsed, err := ParseFileHandle(h)
	require.NoError(t, err)
	assert.Equal(t, h.FileID(), parsed.FileID())
}

func TestFileHandleRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 1, 7, 9, 64, 65} {
		_, err := ParseFileHandle(make([]byte, n))
		require.Error(t, err, "length %d", n)

		var invalid *InvalidFileHandleError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, n, invalid.Length)
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(0)
	require.NoError(t, err)
	assert.Equal(t, NFS3OK, s)
	assert.Equal(t, "NFS3_OK", s.String())

	s, err = ParseStatus(10008)
	require.NoError(t, err)
	assert.Equal(t, NFS3ErrJukebox, s)

	_, err = ParseStatus(12345)
	require.Error(t, err)
	var invalid *InvalidStatusError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, uint32(12345), invalid.Raw)
}

func TestParseFileType(t *testing.T) {
	for raw := uint32(1); raw <= 7; raw++ {
		ft, err := ParseFileType(raw)
		require.NoError(t, err)
		assert.Equal(t, FileType(raw), ft)
	}

	for _, raw := range []uint32{0, 8, 100} {
		_, err := ParseFileType(raw)
		require.Error(t, err, "raw %d", raw)
	}
}

func TestAccessMasks(t *testing.T) {
	assert.Equal(t, uint32(0x23), AccessAllReadOnly)
	assert.Equal(t, uint32(0x3F), AccessAll)
	assert.Equal(t, uint32(0x1B), FSFDefault)
}
