package nfs

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/nfswire/internal/protocol/mount"
	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	v3 "github.com/marmos91/nfswire/internal/protocol/nfs/v3"
	"github.com/marmos91/nfswire/internal/protocol/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend answers canned responses and records what it was asked.
type stubBackend struct {
	mountResp   *mount.MountResponse
	readResp    *v3.ReadResponse
	getAttrErr  error
	lastReadReq *v3.ReadRequest
}

func (b *stubBackend) Mount(ctx context.Context, caller *Caller, req *mount.MountRequest) (*mount.MountResponse, error) {
	if b.mountResp != nil {
		return b.mountResp, nil
	}
	return &mount.MountResponse{Status: mount.MountErrNoEnt}, nil
}

func (b *stubBackend) Unmount(ctx context.Context, caller *Caller, req *mount.UnmountRequest) (*mount.UnmountResponse, error) {
	return &mount.UnmountResponse{}, nil
}

func (b *stubBackend) GetAttr(ctx context.Context, caller *Caller, req *v3.GetAttrRequest) (*v3.GetAttrResponse, error) {
	if b.getAttrErr != nil {
		return nil, b.getAttrErr
	}
	return &v3.GetAttrResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            &types.FileAttr{Type: types.FileTypeRegular, Fileid: req.Handle.FileID(), Nlink: 1},
	}, nil
}

func (b *stubBackend) SetAttr(ctx context.Context, caller *Caller, req *v3.SetAttrRequest) (*v3.SetAttrResponse, error) {
	return &v3.SetAttrResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrROFS}}, nil
}

func (b *stubBackend) Lookup(ctx context.Context, caller *Caller, req *v3.LookupRequest) (*v3.LookupResponse, error) {
	return &v3.LookupResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrNoEnt}}, nil
}

func (b *stubBackend) Access(ctx context.Context, caller *Caller, req *v3.AccessRequest) (*v3.AccessResponse, error) {
	return &v3.AccessResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Access:          req.Access & types.AccessAllReadOnly,
	}, nil
}

func (b *stubBackend) Readlink(ctx context.Context, caller *Caller, req *v3.ReadlinkRequest) (*v3.ReadlinkResponse, error) {
	return &v3.ReadlinkResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrInval}}, nil
}

func (b *stubBackend) Read(ctx context.Context, caller *Caller, req *v3.ReadRequest) (*v3.ReadResponse, error) {
	b.lastReadReq = req
	if b.readResp != nil {
		return b.readResp, nil
	}
	return &v3.ReadResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
}

func (b *stubBackend) ReadDirPlus(ctx context.Context, caller *Caller, req *v3.ReadDirPlusRequest) (*v3.ReadDirPlusResponse, error) {
	return &v3.ReadDirPlusResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Entries: []v3.DirEntryPlus{
			{FileID: 1, Name: ".", Cookie: 1, Attr: &types.FileAttr{Type: types.FileTypeDirectory, Fileid: 1}, Handle: types.NewFileHandle(1)},
			{FileID: 7, Name: "file", Cookie: 2, Attr: &types.FileAttr{Type: types.FileTypeRegular, Fileid: 7}, Handle: types.NewFileHandle(7)},
		},
		EOF: true,
	}, nil
}

func (b *stubBackend) FSStat(ctx context.Context, caller *Caller, req *v3.FSStatRequest) (*v3.FSStatResponse, error) {
	return &v3.FSStatResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK}}, nil
}

func (b *stubBackend) FSInfo(ctx context.Context, caller *Caller, req *v3.FSInfoRequest) (*v3.FSInfoResponse, error) {
	return &v3.FSInfoResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK}, RtMax: 65536}, nil
}

func (b *stubBackend) PathConf(ctx context.Context, caller *Caller, req *v3.PathConfRequest) (*v3.PathConfResponse, error) {
	return &v3.PathConfResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK}, NameMax: 255}, nil
}

func testCaller() *Caller {
	return &Caller{Addr: "127.0.0.1:1023", AuthFlavor: rpc.AuthUnix, UID: 1000, GID: 1000}
}

func makeCall(t *testing.T, xid, program, procedure uint32, body []byte) *rpc.RPCCallMessage {
	t.Helper()
	call := &rpc.RPCCallMessage{
		XID:       xid,
		Program:   program,
		Version:   3,
		Procedure: procedure,
		Body:      body,
	}
	// Round-trip through the wire codec so the test exercises parsing too
	raw, err := rpc.EncodeRPCCall(call)
	require.NoError(t, err)
	parsed, err := rpc.ParseRPCCall(raw)
	require.NoError(t, err)
	return parsed
}

// TestDispatchMountRoundTrip drives a full MOUNT exchange: encode the call,
// parse it, dispatch to a backend returning handle 7, and decode the reply.
func TestDispatchMountRoundTrip(t *testing.T) {
	backend := &stubBackend{
		mountResp: &mount.MountResponse{
			Status:      mount.MountOK,
			Handle:      types.NewFileHandle(7),
			AuthFlavors: []uint32{rpc.AuthUnix},
		},
	}

	reqBody, err := (&mount.MountRequest{DirPath: "/"}).Encode()
	require.NoError(t, err)

	call := makeCall(t, 0x11223344, mount.Program, mount.ProcMount, reqBody)

	result, err := Dispatch(context.Background(), backend, testCaller(), call)
	require.NoError(t, err)
	assert.Equal(t, "Mount", result.ProgramName)
	assert.Equal(t, "MNT", result.ProcedureName)

	reply, err := rpc.ParseRPCReply(result.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11223344), reply.XID)
	assert.Equal(t, rpc.AcceptSuccess, reply.AcceptStatus)

	decoded, err := mount.DecodeMountResponse(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, mount.MountOK, decoded.Status)
	assert.Equal(t, types.NewFileHandle(7), decoded.Handle)
	assert.Equal(t, []uint32{rpc.AuthUnix}, decoded.AuthFlavors)
}

// TestDispatchUnknownProcedure pins the catch-all behaviour: an accepted
// PROC_UNAVAIL reply with an AUTH_NONE verifier, no connection close.
func TestDispatchUnknownProcedure(t *testing.T) {
	call := makeCall(t, 0xAB, v3.Program, 255, nil)

	result, err := Dispatch(context.Background(), &stubBackend{}, testCaller(), call)
	require.NoError(t, err)

	reply, err := rpc.ParseRPCReply(result.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xAB), reply.XID)
	assert.True(t, reply.Accepted)
	assert.Equal(t, rpc.AcceptProcUnavail, reply.AcceptStatus)
	assert.Equal(t, rpc.AuthNone, reply.Verifier.Flavor)
	assert.Empty(t, reply.Body)
}

func TestDispatchUnknownProgram(t *testing.T) {
	call := makeCall(t, 1, 100099, 0, nil)

	result, err := Dispatch(context.Background(), &stubBackend{}, testCaller(), call)
	require.NoError(t, err)

	reply, err := rpc.ParseRPCReply(result.Data)
	require.NoError(t, err)
	assert.Equal(t, rpc.AcceptProgUnavail, reply.AcceptStatus)
}

func TestDispatchVersionMismatch(t *testing.T) {
	call := makeCall(t, 2, v3.Program, v3.ProcNull, nil)
	call.Version = 4

	result, err := Dispatch(context.Background(), &stubBackend{}, testCaller(), call)
	require.NoError(t, err)

	reply, err := rpc.ParseRPCReply(result.Data)
	require.NoError(t, err)
	assert.Equal(t, rpc.AcceptProgMismatch, reply.AcceptStatus)
	assert.Equal(t, uint32(3), reply.MismatchLow)
	assert.Equal(t, uint32(3), reply.MismatchHigh)
}

// TestDispatchReadHappyPath pins the zero-copy READ contract through the
// dispatcher: the reply carries the metadata prefix and the payload
// descriptor names the file bytes separately.
func TestDispatchReadHappyPath(t *testing.T) {
	data := []byte("ABCDEFGHIJKLMNOP")
	backend := &stubBackend{
		readResp: &v3.ReadResponse{
			NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
			Count:           16,
			EOF:             true,
			Data:            data,
		},
	}

	reqBody, err := (&v3.ReadRequest{Handle: types.NewFileHandle(7), Offset: 0, Count: 16}).Encode()
	require.NoError(t, err)
	call := makeCall(t, 3, v3.Program, v3.ProcRead, reqBody)

	result, err := Dispatch(context.Background(), backend, testCaller(), call)
	require.NoError(t, err)

	require.NotNil(t, result.Payload)
	assert.Equal(t, data, result.Payload.Data)
	assert.Equal(t, uint32(0), result.Payload.FillBytes)
	assert.Equal(t, uint64(16), result.BytesRead)
	assert.Equal(t, types.NFS3OK, result.NFSStatus)

	// Reassemble the full record the way the connection writes it and
	// decode it as a client would
	reply, err := rpc.ParseRPCReply(append(append([]byte{}, result.Data...), result.Payload.Data...))
	require.NoError(t, err)

	decoded, err := v3.DecodeReadResponse(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), decoded.Count)
	assert.True(t, decoded.EOF)
	assert.Equal(t, data, decoded.Data)

	require.NotNil(t, backend.lastReadReq)
	assert.Equal(t, uint64(0), backend.lastReadReq.Offset)
}

// TestDispatchBackendFailure pins the SERVERFAULT policy: backend errors
// become protocol-level replies, never connection teardown.
func TestDispatchBackendFailure(t *testing.T) {
	backend := &stubBackend{getAttrErr: errors.New("disk on fire")}

	reqBody, err := (&v3.GetAttrRequest{Handle: types.NewFileHandle(1)}).Encode()
	require.NoError(t, err)
	call := makeCall(t, 4, v3.Program, v3.ProcGetAttr, reqBody)

	result, err := Dispatch(context.Background(), backend, testCaller(), call)
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrServerFault, result.NFSStatus)

	reply, err := rpc.ParseRPCReply(result.Data)
	require.NoError(t, err)
	assert.Equal(t, rpc.AcceptSuccess, reply.AcceptStatus)

	decoded, err := v3.DecodeGetAttrResponse(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrServerFault, decoded.Status)
}

// TestDispatchReadDirDerivedFromPlus pins the default READDIR projection.
func TestDispatchReadDirDerivedFromPlus(t *testing.T) {
	reqBody, err := (&v3.ReadDirRequest{DirHandle: types.NewFileHandle(1), MaxCount: 4096}).Encode()
	require.NoError(t, err)
	call := makeCall(t, 5, v3.Program, v3.ProcReadDir, reqBody)

	result, err := Dispatch(context.Background(), &stubBackend{}, testCaller(), call)
	require.NoError(t, err)

	reply, err := rpc.ParseRPCReply(result.Data)
	require.NoError(t, err)

	decoded, err := v3.DecodeReadDirResponse(reply.Body)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 2)
	assert.Equal(t, "file", decoded.Entries[1].Name)
	assert.True(t, decoded.EOF)
}

// TestDispatchGarbageBodyIsFatal pins the propagation policy: undecodable
// bodies surface an error so the connection tears down.
func TestDispatchGarbageBodyIsFatal(t *testing.T) {
	call := makeCall(t, 6, v3.Program, v3.ProcRead, []byte{0x01})

	_, err := Dispatch(context.Background(), &stubBackend{}, testCaller(), call)
	require.Error(t, err)
}
