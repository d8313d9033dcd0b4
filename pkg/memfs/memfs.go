// Package memfs provides an in-memory filesystem backend for the NFS
// server: a volatile tree of directories, files, and symlinks with stable
// 64-bit file ids. It is the reference backend used by the daemon and the
// test suites; everything lives in process memory and is lost on exit.
package memfs

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/nfswire/internal/adapter/nfs"
	"github.com/marmos91/nfswire/internal/protocol/mount"
	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	v3 "github.com/marmos91/nfswire/internal/protocol/nfs/v3"
)

const (
	// fsid identifies this filesystem in attributes.
	fsid uint64 = 1

	// maxReadSize caps one READ transfer.
	maxReadSize uint32 = 1 << 20

	// blockSize is the advertised allocation unit.
	blockSize uint64 = 4096
)

// node is one filesystem object.
type node struct {
	id       uint64
	kind     types.FileType
	mode     uint32
	uid, gid uint32
	data     []byte            // regular files
	target   string            // symlinks
	children map[string]uint64 // directories: name → id
	nlink    uint32
	mtime    types.TimeVal
	ctime    types.TimeVal
}

// FS is an in-memory filesystem serving one export.
type FS struct {
	exportPath string

	mu     sync.RWMutex
	nodes  map[uint64]*node
	nextID uint64
	rootID uint64
}

// New creates an empty filesystem exported under exportPath (e.g.
// "/export").
func New(exportPath string) *FS {
	fs := &FS{
		exportPath: path.Clean(exportPath),
		nodes:      make(map[uint64]*node),
	}
	now := nowTime()
	fs.rootID = fs.addNode(&node{
		kind:     types.FileTypeDirectory,
		mode:     0755,
		children: make(map[string]uint64),
		nlink:    2,
		mtime:    now,
		ctime:    now,
	})
	return fs
}

func nowTime() types.TimeVal {
	now := time.Now()
	return types.TimeVal{Seconds: uint32(now.Unix()), Nseconds: uint32(now.Nanosecond())}
}

// addNode registers a node and assigns its id. Caller holds no lock during
// construction; ids start at 1 for the root.
func (f *FS) addNode(n *node) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n.id = f.nextID
	f.nodes[n.id] = n
	return n.id
}

// ============================================================================
// Tree Construction
// ============================================================================

// MkdirAll creates a directory path (and parents) below the root.
func (f *FS) MkdirAll(p string) error {
	_, err := f.ensureDir(p)
	return err
}

// WriteFile creates or replaces a regular file at p.
func (f *FS) WriteFile(p string, data []byte, mode uint32) error {
	dirID, name, err := f.splitForCreate(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.nodes[dirID]
	if existing, ok := dir.children[name]; ok {
		n := f.nodes[existing]
		if n.kind != types.FileTypeRegular {
			return &PathError{Path: p, Reason: "exists and is not a regular file"}
		}
		n.data = append([]byte{}, data...)
		n.mtime = nowTime()
		return nil
	}

	now := nowTime()
	f.nextID++
	n := &node{
		id:    f.nextID,
		kind:  types.FileTypeRegular,
		mode:  mode,
		data:  append([]byte{}, data...),
		nlink: 1,
		mtime: now,
		ctime: now,
	}
	f.nodes[n.id] = n
	dir.children[name] = n.id
	dir.mtime = now
	return nil
}

// Symlink creates a symbolic link at p pointing at target.
func (f *FS) Symlink(p, target string) error {
	dirID, name, err := f.splitForCreate(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.nodes[dirID]
	if _, ok := dir.children[name]; ok {
		return &PathError{Path: p, Reason: "already exists"}
	}

	now := nowTime()
	f.nextID++
	n := &node{
		id:     f.nextID,
		kind:   types.FileTypeLink,
		mode:   0777,
		target: target,
		nlink:  1,
		mtime:  now,
		ctime:  now,
	}
	f.nodes[n.id] = n
	dir.children[name] = n.id
	dir.mtime = now
	return nil
}

// PathError reports a tree-construction failure.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return "memfs: " + e.Path + ": " + e.Reason
}

// splitForCreate resolves the parent directory of p, creating it as
// needed, and returns its id plus the leaf name.
func (f *FS) splitForCreate(p string) (uint64, string, error) {
	p = path.Clean(p)
	dir, name := path.Split(p)
	if name == "" {
		return 0, "", &PathError{Path: p, Reason: "empty name"}
	}
	dirID, err := f.ensureDir(dir)
	if err != nil {
		return 0, "", err
	}
	return dirID, name, nil
}

// ensureDir walks p below the root, creating missing directories.
func (f *FS) ensureDir(p string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.rootID
	for _, part := range strings.Split(path.Clean(p), "/") {
		if part == "" || part == "." {
			continue
		}
		dir := f.nodes[current]
		if childID, ok := dir.children[part]; ok {
			child := f.nodes[childID]
			if child.kind != types.FileTypeDirectory {
				return 0, &PathError{Path: p, Reason: part + " is not a directory"}
			}
			current = childID
			continue
		}

		now := nowTime()
		f.nextID++
		child := &node{
			id:       f.nextID,
			kind:     types.FileTypeDirectory,
			mode:     0755,
			children: make(map[string]uint64),
			nlink:    2,
			mtime:    now,
			ctime:    now,
		}
		f.nodes[child.id] = child
		dir.children[part] = child.id
		dir.nlink++
		current = child.id
	}
	return current, nil
}

// ============================================================================
// Attribute Helpers
// ============================================================================

// attr builds the full NFS attribute set for a node. Caller holds f.mu.
func (f *FS) attr(n *node) *types.FileAttr {
	size := uint64(len(n.data))
	if n.kind == types.FileTypeLink {
		size = uint64(len(n.target))
	}
	used := (size + blockSize - 1) / blockSize * blockSize

	return &types.FileAttr{
		Type:   n.kind,
		Mode:   n.mode,
		Nlink:  n.nlink,
		UID:    n.uid,
		GID:    n.gid,
		Size:   size,
		Used:   used,
		Fsid:   fsid,
		Fileid: n.id,
		Atime:  n.mtime,
		Mtime:  n.mtime,
		Ctime:  n.ctime,
	}
}

// lookupHandle resolves a handle to its node. Caller holds f.mu (read).
func (f *FS) lookupHandle(handle types.FileHandle) *node {
	if handle.Validate() != nil {
		return nil
	}
	return f.nodes[handle.FileID()]
}

// ============================================================================
// Backend Implementation
// ============================================================================

// Mount resolves the export path to the root handle. Only the configured
// export (or "/") is accepted.
func (f *FS) Mount(ctx context.Context, caller *nfs.Caller, req *mount.MountRequest) (*mount.MountResponse, error) {
	requested := path.Clean(req.DirPath)
	if requested != f.exportPath && requested != "/" {
		return &mount.MountResponse{Status: mount.MountErrNoEnt}, nil
	}
	return &mount.MountResponse{
		Status: mount.MountOK,
		Handle: types.NewFileHandle(f.rootID),
	}, nil
}

// Unmount is advisory; nothing is tracked per mount.
func (f *FS) Unmount(ctx context.Context, caller *nfs.Caller, req *mount.UnmountRequest) (*mount.UnmountResponse, error) {
	return &mount.UnmountResponse{}, nil
}

func (f *FS) GetAttr(ctx context.Context, caller *nfs.Caller, req *v3.GetAttrRequest) (*v3.GetAttrResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.GetAttrResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}
	return &v3.GetAttrResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            f.attr(n),
	}, nil
}

// SetAttr is denied: the tree is read-only through the protocol.
func (f *FS) SetAttr(ctx context.Context, caller *nfs.Caller, req *v3.SetAttrRequest) (*v3.SetAttrResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.SetAttrResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}
	attr := f.attr(n)
	return &v3.SetAttrResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrROFS},
		Wcc: &types.WccData{
			Before: &types.WccAttr{Size: attr.Size, Mtime: attr.Mtime, Ctime: attr.Ctime},
			After:  attr,
		},
	}, nil
}

func (f *FS) Lookup(ctx context.Context, caller *nfs.Caller, req *v3.LookupRequest) (*v3.LookupResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir := f.lookupHandle(req.DirHandle)
	if dir == nil {
		return &v3.LookupResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}
	if dir.kind != types.FileTypeDirectory {
		return &v3.LookupResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrNotDir}}, nil
	}

	var target *node
	switch req.Name {
	case ".":
		target = dir
	case "..":
		target = f.nodes[f.parentID(dir.id)]
	default:
		if childID, ok := dir.children[req.Name]; ok {
			target = f.nodes[childID]
		}
	}

	if target == nil {
		return &v3.LookupResponse{
			NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrNoEnt},
			DirAttr:         f.attr(dir),
		}, nil
	}

	return &v3.LookupResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Handle:          types.NewFileHandle(target.id),
		Attr:            f.attr(target),
		DirAttr:         f.attr(dir),
	}, nil
}

// Access grants the read-only subset of whatever was requested; identity
// is not enforced.
func (f *FS) Access(ctx context.Context, caller *nfs.Caller, req *v3.AccessRequest) (*v3.AccessResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.AccessResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}
	return &v3.AccessResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            f.attr(n),
		Access:          req.Access & types.AccessAllReadOnly,
	}, nil
}

func (f *FS) Readlink(ctx context.Context, caller *nfs.Caller, req *v3.ReadlinkRequest) (*v3.ReadlinkResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.ReadlinkResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}
	if n.kind != types.FileTypeLink {
		return &v3.ReadlinkResponse{
			NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrInval},
			Attr:            f.attr(n),
		}, nil
	}
	return &v3.ReadlinkResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            f.attr(n),
		Target:          n.target,
	}, nil
}

func (f *FS) Read(ctx context.Context, caller *nfs.Caller, req *v3.ReadRequest) (*v3.ReadResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.ReadResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}
	if n.kind == types.FileTypeDirectory {
		return &v3.ReadResponse{
			NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrIsDir},
			Attr:            f.attr(n),
		}, nil
	}
	if n.kind != types.FileTypeRegular {
		return &v3.ReadResponse{
			NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrInval},
			Attr:            f.attr(n),
		}, nil
	}

	count := req.Count
	if count > maxReadSize {
		count = maxReadSize
	}

	size := uint64(len(n.data))
	if req.Offset >= size {
		return &v3.ReadResponse{
			NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
			Attr:            f.attr(n),
			Count:           0,
			EOF:             true,
			Data:            []byte{},
		}, nil
	}

	end := req.Offset + uint64(count)
	if end > size {
		end = size
	}
	data := append([]byte{}, n.data[req.Offset:end]...)

	return &v3.ReadResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            f.attr(n),
		Count:           uint32(len(data)),
		EOF:             end == size,
		Data:            data,
	}, nil
}

func (f *FS) ReadDirPlus(ctx context.Context, caller *nfs.Caller, req *v3.ReadDirPlusRequest) (*v3.ReadDirPlusResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir := f.lookupHandle(req.DirHandle)
	if dir == nil {
		return &v3.ReadDirPlusResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}
	if dir.kind != types.FileTypeDirectory {
		return &v3.ReadDirPlusResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrNotDir}}, nil
	}

	// Stable listing: ".", "..", then children sorted by name. The cookie
	// is the 1-based position in this listing.
	names := make([]string, 0, len(dir.children)+2)
	names = append(names, ".", "..")
	for name := range dir.children {
		names = append(names, name)
	}
	sort.Strings(names[2:])

	entries := make([]v3.DirEntryPlus, 0, len(names))
	for i, name := range names {
		cookie := uint64(i + 1)
		if cookie <= req.Cookie {
			continue
		}

		var n *node
		switch name {
		case ".":
			n = dir
		case "..":
			n = f.nodes[f.parentID(dir.id)]
		default:
			n = f.nodes[dir.children[name]]
		}
		if n == nil {
			continue
		}

		entries = append(entries, v3.DirEntryPlus{
			FileID: n.id,
			Name:   name,
			Cookie: cookie,
			Attr:   f.attr(n),
			Handle: types.NewFileHandle(n.id),
		})
	}

	return &v3.ReadDirPlusResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		DirAttr:         f.attr(dir),
		Entries:         entries,
		EOF:             true,
	}, nil
}

func (f *FS) FSStat(ctx context.Context, caller *nfs.Caller, req *v3.FSStatRequest) (*v3.FSStatResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.FSStatResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}

	var used uint64
	for _, node := range f.nodes {
		used += uint64(len(node.data))
	}

	const capacity = 1 << 40
	return &v3.FSStatResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            f.attr(n),
		TotalBytes:      capacity,
		FreeBytes:       capacity - used,
		AvailBytes:      capacity - used,
		TotalFiles:      1 << 20,
		FreeFiles:       1<<20 - uint64(len(f.nodes)),
		AvailFiles:      1<<20 - uint64(len(f.nodes)),
		Invarsec:        0,
	}, nil
}

func (f *FS) FSInfo(ctx context.Context, caller *nfs.Caller, req *v3.FSInfoRequest) (*v3.FSInfoResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.FSInfoResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}

	return &v3.FSInfoResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            f.attr(n),
		RtMax:           maxReadSize,
		RtPref:          maxReadSize / 2,
		RtMult:          uint32(blockSize),
		WtMax:           0,
		WtPref:          0,
		WtMult:          uint32(blockSize),
		DtPref:          1 << 16,
		MaxFileSize:     1<<63 - 1,
		TimeDelta:       types.TimeVal{Seconds: 0, Nseconds: 1},
		Properties:      types.FSFDefault,
	}, nil
}

func (f *FS) PathConf(ctx context.Context, caller *nfs.Caller, req *v3.PathConfRequest) (*v3.PathConfResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.lookupHandle(req.Handle)
	if n == nil {
		return &v3.PathConfResponse{NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3ErrStale}}, nil
	}

	return &v3.PathConfResponse{
		NFSResponseBase: v3.NFSResponseBase{Status: types.NFS3OK},
		Attr:            f.attr(n),
		LinkMax:         1,
		NameMax:         255,
		NoTrunc:         true,
		ChownRestricted: true,
		CaseInsensitive: false,
		CasePreserving:  true,
	}, nil
}

// parentID finds the directory containing id; the root is its own parent.
// Caller holds f.mu.
func (f *FS) parentID(id uint64) uint64 {
	if id == f.rootID {
		return f.rootID
	}
	for candidateID, candidate := range f.nodes {
		if candidate.kind != types.FileTypeDirectory {
			continue
		}
		for _, childID := range candidate.children {
			if childID == id {
				return candidateID
			}
		}
	}
	return f.rootID
}
