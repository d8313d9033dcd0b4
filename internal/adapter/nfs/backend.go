// Package nfs implements the server side of the NFSv3 and MOUNT programs:
// the procedure dispatch table, the pluggable filesystem backend contract,
// and the per-connection serve loop over RPC record marking.
package nfs

import (
	"context"

	"github.com/marmos91/nfswire/internal/protocol/mount"
	v3 "github.com/marmos91/nfswire/internal/protocol/nfs/v3"
)

// Caller describes the client behind one RPC call: its network address and
// the identity claimed in its AUTH_UNIX credentials. The server does not
// enforce permissions from these values; they are passed through for the
// backend and for logging, per classic NFSv3 practice.
type Caller struct {
	Addr       string
	AuthFlavor uint32

	// Unix identity, present when the call carried AUTH_UNIX credentials.
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// Backend is the narrow contract between the protocol server and a
// filesystem implementation: one method per supported procedure.
//
// Methods must not touch the wire; their only side effects are against the
// backend's own state. They are called from per-request goroutines and
// must be safe for concurrent use. A returned error maps to a SERVERFAULT
// reply; expected conditions (missing entries, stale handles) are reported
// through the response status instead.
type Backend interface {
	// Mount resolves an export path to its root file handle.
	Mount(ctx context.Context, caller *Caller, req *mount.MountRequest) (*mount.MountResponse, error)

	// Unmount releases a mount. Classic servers treat this as advisory.
	Unmount(ctx context.Context, caller *Caller, req *mount.UnmountRequest) (*mount.UnmountResponse, error)

	GetAttr(ctx context.Context, caller *Caller, req *v3.GetAttrRequest) (*v3.GetAttrResponse, error)
	SetAttr(ctx context.Context, caller *Caller, req *v3.SetAttrRequest) (*v3.SetAttrResponse, error)
	Lookup(ctx context.Context, caller *Caller, req *v3.LookupRequest) (*v3.LookupResponse, error)
	Access(ctx context.Context, caller *Caller, req *v3.AccessRequest) (*v3.AccessResponse, error)
	Readlink(ctx context.Context, caller *Caller, req *v3.ReadlinkRequest) (*v3.ReadlinkResponse, error)
	Read(ctx context.Context, caller *Caller, req *v3.ReadRequest) (*v3.ReadResponse, error)
	ReadDirPlus(ctx context.Context, caller *Caller, req *v3.ReadDirPlusRequest) (*v3.ReadDirPlusResponse, error)
	FSStat(ctx context.Context, caller *Caller, req *v3.FSStatRequest) (*v3.FSStatResponse, error)
	FSInfo(ctx context.Context, caller *Caller, req *v3.FSInfoRequest) (*v3.FSInfoResponse, error)
	PathConf(ctx context.Context, caller *Caller, req *v3.PathConfRequest) (*v3.PathConfResponse, error)
}

// DirReader is the optional READDIR extension of Backend. Backends that do
// not implement it get the default READDIR, derived from ReadDirPlus with
// dircount set to the reply limit and the per-entry attributes and handles
// projected away.
type DirReader interface {
	ReadDir(ctx context.Context, caller *Caller, req *v3.ReadDirRequest) (*v3.ReadDirResponse, error)
}

// readDirViaPlus is the default READDIR implementation in terms of
// ReadDirPlus.
func readDirViaPlus(ctx context.Context, backend Backend, caller *Caller, req *v3.ReadDirRequest) (*v3.ReadDirResponse, error) {
	plusReq := &v3.ReadDirPlusRequest{
		DirHandle:      req.DirHandle,
		Cookie:         req.Cookie,
		CookieVerifier: req.CookieVerifier,
		DirCount:       req.MaxCount,
		MaxCount:       req.MaxCount,
	}

	plus, err := backend.ReadDirPlus(ctx, caller, plusReq)
	if err != nil {
		return nil, err
	}

	resp := &v3.ReadDirResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: plus.Status},
		DirAttr:         plus.DirAttr,
		CookieVerifier:  plus.CookieVerifier,
		EOF:             plus.EOF,
	}
	if len(plus.Entries) > 0 {
		resp.Entries = make([]v3.DirEntry, 0, len(plus.Entries))
		for _, entry := range plus.Entries {
			resp.Entries = append(resp.Entries, v3.DirEntry{
				FileID: entry.FileID,
				Name:   entry.Name,
				Cookie: entry.Cookie,
			})
		}
	}
	return resp, nil
}
