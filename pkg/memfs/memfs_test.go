package memfs

import (
	"context"
	"testing"

	"github.com/marmos91/nfswire/internal/adapter/nfs"
	"github.com/marmos91/nfswire/internal/protocol/mount"
	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	v3 "github.com/marmos91/nfswire/internal/protocol/nfs/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS(t *testing.T) *FS {
	t.Helper()
	fs := New("/export")
	require.NoError(t, fs.MkdirAll("/docs"))
	require.NoError(t, fs.WriteFile("/docs/readme.txt", []byte("hello world"), 0644))
	require.NoError(t, fs.WriteFile("/data.bin", []byte("ABCDEFGHIJKLMNOP"), 0600))
	require.NoError(t, fs.Symlink("/link", "docs/readme.txt"))
	return fs
}

func caller() *nfs.Caller {
	return &nfs.Caller{Addr: "127.0.0.1:999", UID: 1000, GID: 1000}
}

func mountRoot(t *testing.T, fs *FS) types.FileHandle {
	t.Helper()
	resp, err := fs.Mount(context.Background(), caller(), &mount.MountRequest{DirPath: "/export"})
	require.NoError(t, err)
	require.Equal(t, mount.MountOK, resp.Status)
	return resp.Handle
}

func lookup(t *testing.T, fs *FS, dir types.FileHandle, name string) *v3.LookupResponse {
	t.Helper()
	resp, err := fs.Lookup(context.Background(), caller(), &v3.LookupRequest{DirHandle: dir, Name: name})
	require.NoError(t, err)
	return resp
}

func TestMountUnknownExport(t *testing.T) {
	fs := testFS(t)
	resp, err := fs.Mount(context.Background(), caller(), &mount.MountRequest{DirPath: "/other"})
	require.NoError(t, err)
	assert.Equal(t, mount.MountErrNoEnt, resp.Status)
}

func TestLookupWalk(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)

	docs := lookup(t, fs, root, "docs")
	require.Equal(t, types.NFS3OK, docs.Status)
	assert.Equal(t, types.FileTypeDirectory, docs.Attr.Type)

	readme := lookup(t, fs, docs.Handle, "readme.txt")
	require.Equal(t, types.NFS3OK, readme.Status)
	assert.Equal(t, types.FileTypeRegular, readme.Attr.Type)
	assert.Equal(t, uint64(11), readme.Attr.Size)

	missing := lookup(t, fs, root, "nope")
	assert.Equal(t, types.NFS3ErrNoEnt, missing.Status)
	assert.NotNil(t, missing.DirAttr)

	dotdot := lookup(t, fs, docs.Handle, "..")
	require.Equal(t, types.NFS3OK, dotdot.Status)
	assert.Equal(t, root.FileID(), dotdot.Handle.FileID())
}

func TestLookupOnFileIsNotDir(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)
	file := lookup(t, fs, root, "data.bin")

	resp := lookup(t, fs, file.Handle, "x")
	assert.Equal(t, types.NFS3ErrNotDir, resp.Status)
}

func TestGetAttrStaleHandle(t *testing.T) {
	fs := testFS(t)
	resp, err := fs.GetAttr(context.Background(), caller(), &v3.GetAttrRequest{Handle: types.NewFileHandle(9999)})
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrStale, resp.Status)
}

func TestRead(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)
	file := lookup(t, fs, root, "data.bin")

	t.Run("FullRead", func(t *testing.T) {
		resp, err := fs.Read(context.Background(), caller(), &v3.ReadRequest{Handle: file.Handle, Offset: 0, Count: 16})
		require.NoError(t, err)
		require.Equal(t, types.NFS3OK, resp.Status)
		assert.Equal(t, uint32(16), resp.Count)
		assert.True(t, resp.EOF)
		assert.Equal(t, []byte("ABCDEFGHIJKLMNOP"), resp.Data)
	})

	t.Run("PartialRead", func(t *testing.T) {
		resp, err := fs.Read(context.Background(), caller(), &v3.ReadRequest{Handle: file.Handle, Offset: 4, Count: 4})
		require.NoError(t, err)
		assert.Equal(t, []byte("EFGH"), resp.Data)
		assert.False(t, resp.EOF)
	})

	t.Run("ReadPastEOF", func(t *testing.T) {
		resp, err := fs.Read(context.Background(), caller(), &v3.ReadRequest{Handle: file.Handle, Offset: 100, Count: 4})
		require.NoError(t, err)
		require.Equal(t, types.NFS3OK, resp.Status)
		assert.Equal(t, uint32(0), resp.Count)
		assert.True(t, resp.EOF)
	})

	t.Run("ReadDirectory", func(t *testing.T) {
		resp, err := fs.Read(context.Background(), caller(), &v3.ReadRequest{Handle: root, Offset: 0, Count: 4})
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrIsDir, resp.Status)
	})
}

func TestReadlink(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)
	link := lookup(t, fs, root, "link")

	resp, err := fs.Readlink(context.Background(), caller(), &v3.ReadlinkRequest{Handle: link.Handle})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Equal(t, "docs/readme.txt", resp.Target)

	file := lookup(t, fs, root, "data.bin")
	notLink, err := fs.Readlink(context.Background(), caller(), &v3.ReadlinkRequest{Handle: file.Handle})
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrInval, notLink.Status)
}

func TestReadDirPlusListing(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)

	resp, err := fs.ReadDirPlus(context.Background(), caller(), &v3.ReadDirPlusRequest{
		DirHandle: root, MaxCount: 1 << 16,
	})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	require.True(t, resp.EOF)

	names := make([]string, len(resp.Entries))
	for i, e := range resp.Entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{".", "..", "data.bin", "docs", "link"}, names)

	// Every entry carries attributes and a resolvable handle
	for _, e := range resp.Entries {
		require.NotNil(t, e.Attr, "entry %s", e.Name)
		require.NotNil(t, e.Handle, "entry %s", e.Name)
	}
}

func TestReadDirPlusCookieResume(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)

	first, err := fs.ReadDirPlus(context.Background(), caller(), &v3.ReadDirPlusRequest{DirHandle: root})
	require.NoError(t, err)
	require.True(t, len(first.Entries) > 2)

	// Resume after the second entry
	resumed, err := fs.ReadDirPlus(context.Background(), caller(), &v3.ReadDirPlusRequest{
		DirHandle: root,
		Cookie:    first.Entries[1].Cookie,
	})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resumed.Status)
	assert.Equal(t, first.Entries[2].Name, resumed.Entries[0].Name)
}

func TestSetAttrIsReadOnly(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)
	file := lookup(t, fs, root, "data.bin")

	resp, err := fs.SetAttr(context.Background(), caller(), &v3.SetAttrRequest{
		Handle:  file.Handle,
		NewAttr: &types.SetAttr{},
	})
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrROFS, resp.Status)
	require.NotNil(t, resp.Wcc)
	assert.NotNil(t, resp.Wcc.Before)
	assert.NotNil(t, resp.Wcc.After)
}

func TestAccessGrantsReadOnlySubset(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)

	resp, err := fs.Access(context.Background(), caller(), &v3.AccessRequest{Handle: root, Access: types.AccessAll})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Equal(t, types.AccessAllReadOnly, resp.Access)
}

func TestFSInfoAndPathConf(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)

	info, err := fs.FSInfo(context.Background(), caller(), &v3.FSInfoRequest{Handle: root})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, info.Status)
	assert.Equal(t, uint32(0), info.WtMax) // read-only: no write transfers
	assert.Equal(t, types.FSFDefault, info.Properties)

	pc, err := fs.PathConf(context.Background(), caller(), &v3.PathConfRequest{Handle: root})
	require.NoError(t, err)
	assert.Equal(t, uint32(255), pc.NameMax)
	assert.True(t, pc.CasePreserving)
}

func TestFSStatCounters(t *testing.T) {
	fs := testFS(t)
	root := mountRoot(t, fs)

	resp, err := fs.FSStat(context.Background(), caller(), &v3.FSStatRequest{Handle: root})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)
	assert.Greater(t, resp.TotalBytes, resp.FreeBytes)
}
