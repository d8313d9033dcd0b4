package nfs

import (
	"context"
	"fmt"

	"github.com/marmos91/nfswire/internal/logger"
	"github.com/marmos91/nfswire/internal/protocol/mount"
	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	v3 "github.com/marmos91/nfswire/internal/protocol/nfs/v3"
	"github.com/marmos91/nfswire/internal/protocol/rpc"
)

// DispatchResult is the outcome of routing one RPC call.
type DispatchResult struct {
	// Data is the complete RPC reply (header plus NFS body). For READ it
	// ends with the metadata prefix and Payload carries the file bytes.
	Data []byte

	// Payload is the zero-copy READ payload descriptor, nil for every
	// other procedure.
	Payload *v3.ReadPayload

	// ProgramName and ProcedureName label the call for logging/metrics.
	ProgramName   string
	ProcedureName string

	// NFSStatus is the protocol status embedded in Data, for metrics.
	NFSStatus types.Status

	// BytesRead is the READ payload size, for metrics.
	BytesRead uint64
}

// procEntry pairs a procedure name with its decode-and-handle function.
type procEntry struct {
	name   string
	handle func(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error)
}

// progKey identifies a dispatch table slot.
func progKey(program, procedure uint32) uint64 {
	return uint64(program)<<32 | uint64(procedure)
}

// dispatchTable is the single source of truth for the (program, procedure)
// pairs this server implements.
var dispatchTable = map[uint64]procEntry{
	progKey(mount.Program, mount.ProcNull):    {"NULL", handleMountNull},
	progKey(mount.Program, mount.ProcMount):   {"MNT", handleMount},
	progKey(mount.Program, mount.ProcUnmount): {"UMNT", handleUnmount},

	progKey(v3.Program, v3.ProcNull):        {"NULL", handleNull},
	progKey(v3.Program, v3.ProcGetAttr):     {"GETATTR", handleGetAttr},
	progKey(v3.Program, v3.ProcSetAttr):     {"SETATTR", handleSetAttr},
	progKey(v3.Program, v3.ProcLookup):      {"LOOKUP", handleLookup},
	progKey(v3.Program, v3.ProcAccess):      {"ACCESS", handleAccess},
	progKey(v3.Program, v3.ProcReadlink):    {"READLINK", handleReadlink},
	progKey(v3.Program, v3.ProcRead):        {"READ", handleRead},
	progKey(v3.Program, v3.ProcReadDir):     {"READDIR", handleReadDir},
	progKey(v3.Program, v3.ProcReadDirPlus): {"READDIRPLUS", handleReadDirPlus},
	progKey(v3.Program, v3.ProcFSStat):      {"FSSTAT", handleFSStat},
	progKey(v3.Program, v3.ProcFSInfo):      {"FSINFO", handleFSInfo},
	progKey(v3.Program, v3.ProcPathConf):    {"PATHCONF", handlePathConf},
}

// Dispatch routes a parsed RPC call to the backend and produces the
// complete RPC reply.
//
// Unknown programs, unsupported versions, and unknown procedures produce
// the corresponding accepted error replies; none of them are fatal to the
// connection. A nil result with an error means the call body could not be
// decoded and the connection should be torn down.
func Dispatch(ctx context.Context, backend Backend, caller *Caller, call *rpc.RPCCallMessage) (*DispatchResult, error) {
	program, ok := programName(call.Program)
	if !ok {
		logger.DebugCtx(ctx, "Unknown program", "program", call.Program, "xid", fmt.Sprintf("0x%x", call.XID))
		reply, err := rpc.MakeAcceptErrorReply(call.XID, rpc.AcceptProgUnavail)
		if err != nil {
			return nil, err
		}
		return &DispatchResult{
			Data:          reply,
			ProgramName:   "UNKNOWN",
			ProcedureName: fmt.Sprintf("PROC(%d)", call.Procedure),
		}, nil
	}

	// Both implemented programs are version 3
	if call.Version != v3.Version {
		logger.DebugCtx(ctx, "Unsupported program version",
			"program", program, "version", call.Version, "xid", fmt.Sprintf("0x%x", call.XID))
		reply, err := rpc.MakeProgMismatchReply(call.XID, v3.Version, v3.Version)
		if err != nil {
			return nil, err
		}
		return &DispatchResult{
			Data:          reply,
			ProgramName:   program,
			ProcedureName: fmt.Sprintf("PROC(%d)", call.Procedure),
		}, nil
	}

	entry, ok := dispatchTable[progKey(call.Program, call.Procedure)]
	if !ok {
		// Known program, unknown procedure: reply PROC_UNAVAIL and keep
		// the connection open.
		logger.DebugCtx(ctx, "Unknown procedure",
			"program", program, "procedure", call.Procedure, "xid", fmt.Sprintf("0x%x", call.XID))
		reply, err := rpc.MakeAcceptErrorReply(call.XID, rpc.AcceptProcUnavail)
		if err != nil {
			return nil, err
		}
		return &DispatchResult{
			Data:          reply,
			ProgramName:   program,
			ProcedureName: fmt.Sprintf("PROC(%d)", call.Procedure),
		}, nil
	}

	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithProcedure(program, entry.name).WithXID(call.XID))
	}

	result, err := entry.handle(ctx, backend, caller, call.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", program, entry.name, err)
	}

	result.ProgramName = program
	result.ProcedureName = entry.name

	// Wrap the NFS body into the RPC success envelope
	reply, err := rpc.MakeSuccessReply(call.XID, result.Data)
	if err != nil {
		return nil, fmt.Errorf("make reply: %w", err)
	}
	result.Data = reply

	return result, nil
}

func programName(program uint32) (string, bool) {
	switch program {
	case mount.Program:
		return "Mount", true
	case v3.Program:
		return "NFS", true
	default:
		return "", false
	}
}

// ============================================================================
// Per-procedure Handlers
// ============================================================================

// encodable is any response that serialises itself to an NFS body.
type encodable interface {
	Encode() ([]byte, error)
}

// finish encodes a response into a DispatchResult.
func finish(resp encodable, status types.Status) (*DispatchResult, error) {
	data, err := resp.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return &DispatchResult{Data: data, NFSStatus: status}, nil
}

func handleMountNull(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	return finish(&mount.NullResponse{}, types.NFS3OK)
}

func handleMount(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := mount.DecodeMountRequest(body)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "MNT", "path", req.DirPath, "client", caller.Addr)

	resp, err := backend.Mount(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "MNT backend failure", "path", req.DirPath, "error", err)
		resp = &mount.MountResponse{Status: mount.MountErrServerFault}
	}
	return finish(resp, types.Status(resp.Status))
}

func handleUnmount(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := mount.DecodeUnmountRequest(body)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "UMNT", "path", req.DirPath, "client", caller.Addr)

	resp, err := backend.Unmount(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "UMNT backend failure", "path", req.DirPath, "error", err)
		resp = &mount.UnmountResponse{}
	}
	return finish(resp, types.NFS3OK)
}

func handleNull(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	return finish(&v3.NullResponse{}, types.NFS3OK)
}

func handleGetAttr(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeGetAttrRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.GetAttr(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "GETATTR backend failure", "handle", req.Handle, "error", err)
		resp = &v3.GetAttrResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleSetAttr(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeSetAttrRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.SetAttr(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "SETATTR backend failure", "handle", req.Handle, "error", err)
		resp = &v3.SetAttrResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleLookup(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeLookupRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.Lookup(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "LOOKUP backend failure", "handle", req.DirHandle, "name", req.Name, "error", err)
		resp = &v3.LookupResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleAccess(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeAccessRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.Access(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "ACCESS backend failure", "handle", req.Handle, "error", err)
		resp = &v3.AccessResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleReadlink(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeReadlinkRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.Readlink(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "READLINK backend failure", "handle", req.Handle, "error", err)
		resp = &v3.ReadlinkResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleRead(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeReadRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.Read(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "READ backend failure",
			"handle", req.Handle, "offset", req.Offset, "count", req.Count, "error", err)
		resp = &v3.ReadResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}

	// READ uses the two-part encoding so the connection can emit the file
	// bytes without copying them through the reply buffer.
	meta, payload, err := resp.EncodeParts()
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	result := &DispatchResult{
		Data:      meta,
		NFSStatus: resp.Status,
		BytesRead: uint64(len(payload.Data)),
	}
	if resp.Status == types.NFS3OK {
		result.Payload = &payload
	}
	return result, nil
}

func handleReadDir(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeReadDirRequest(body)
	if err != nil {
		return nil, err
	}

	var resp *v3.ReadDirResponse
	if dr, ok := backend.(DirReader); ok {
		resp, err = dr.ReadDir(ctx, caller, req)
	} else {
		resp, err = readDirViaPlus(ctx, backend, caller, req)
	}
	if err != nil {
		logger.ErrorCtx(ctx, "READDIR backend failure", "handle", req.DirHandle, "error", err)
		resp = &v3.ReadDirResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleReadDirPlus(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeReadDirPlusRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.ReadDirPlus(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "READDIRPLUS backend failure", "handle", req.DirHandle, "error", err)
		resp = &v3.ReadDirPlusResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleFSStat(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeFSStatRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.FSStat(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "FSSTAT backend failure", "handle", req.Handle, "error", err)
		resp = &v3.FSStatResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handleFSInfo(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodeFSInfoRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.FSInfo(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "FSINFO backend failure", "handle", req.Handle, "error", err)
		resp = &v3.FSInfoResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}

func handlePathConf(ctx context.Context, backend Backend, caller *Caller, body []byte) (*DispatchResult, error) {
	req, err := v3.DecodePathConfRequest(body)
	if err != nil {
		return nil, err
	}

	resp, err := backend.PathConf(ctx, caller, req)
	if err != nil {
		logger.ErrorCtx(ctx, "PATHCONF backend failure", "handle", req.Handle, "error", err)
		resp = &v3.PathConfResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrServerFault}}
	}
	return finish(resp, resp.Status)
}
