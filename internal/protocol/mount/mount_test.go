package mount

import (
	"testing"

	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	"github.com/marmos91/nfswire/internal/protocol/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountRoundTrip(t *testing.T) {
	req := &MountRequest{DirPath: "/"}
	raw, err := req.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMountRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "/", decoded.DirPath)

	resp := &MountResponse{
		Status:      MountOK,
		Handle:      types.NewFileHandle(7),
		AuthFlavors: []uint32{rpc.AuthUnix},
	}
	rawResp, err := resp.Encode()
	require.NoError(t, err)

	decodedResp, err := DecodeMountResponse(rawResp)
	require.NoError(t, err)
	assert.Equal(t, MountOK, decodedResp.Status)
	assert.Equal(t, resp.Handle, decodedResp.Handle)
	assert.Equal(t, []uint32{rpc.AuthUnix}, decodedResp.AuthFlavors)
}

func TestMountResponseDefaultsToAuthUnix(t *testing.T) {
	resp := &MountResponse{Status: MountOK, Handle: types.NewFileHandle(1)}
	raw, err := resp.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMountResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, []uint32{rpc.AuthUnix}, decoded.AuthFlavors)
}

func TestMountResponseRejectsMixedFlavors(t *testing.T) {
	resp := &MountResponse{
		Status:      MountOK,
		Handle:      types.NewFileHandle(1),
		AuthFlavors: []uint32{rpc.AuthUnix, rpc.AuthNone},
	}
	_, err := resp.Encode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported auth flavor")
}

func TestMountErrorResponseCarriesOnlyStatus(t *testing.T) {
	resp := &MountResponse{Status: MountErrNoEnt}
	raw, err := resp.Encode()
	require.NoError(t, err)
	assert.Len(t, raw, 4)

	decoded, err := DecodeMountResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, MountErrNoEnt, decoded.Status)
	assert.Nil(t, decoded.Handle)
}

func TestMountRequestRejectsLongPath(t *testing.T) {
	long := make([]byte, MaxPathLen+1)
	for i := range long {
		long[i] = 'a'
	}
	req := &MountRequest{DirPath: string(long)}
	_, err := req.Encode()
	require.Error(t, err)
}

func TestUnmountRoundTrip(t *testing.T) {
	req := &UnmountRequest{DirPath: "/export"}
	raw, err := req.Encode()
	require.NoError(t, err)

	decoded, err := DecodeUnmountRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "/export", decoded.DirPath)

	resp := &UnmountResponse{}
	rawResp, err := resp.Encode()
	require.NoError(t, err)
	assert.Empty(t, rawResp)
}
