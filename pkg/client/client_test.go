package client

import (
	"context"
	"sync"
	"testing"
	"time"

	adapter "github.com/marmos91/nfswire/internal/adapter/nfs"
	"github.com/marmos91/nfswire/internal/protocol/mount"
	"github.com/marmos91/nfswire/internal/protocol/nfs/types"
	v3 "github.com/marmos91/nfswire/internal/protocol/nfs/v3"
	"github.com/marmos91/nfswire/pkg/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a full adapter over a loopback listener and returns a
// connected client.
func startServer(t *testing.T) *Client {
	t.Helper()

	fs := memfs.New("/export")
	require.NoError(t, fs.MkdirAll("/docs"))
	require.NoError(t, fs.WriteFile("/docs/readme.txt", []byte("hello world"), 0644))
	require.NoError(t, fs.WriteFile("/data.bin", []byte("ABCDEFGHIJKLMNOP"), 0600))

	srv := adapter.New(adapter.Config{ListenAddr: "127.0.0.1:0"}, fs, nil)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
		wg.Wait()
	})

	c, err := Dial(srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEndToEndMountAndRead(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	mnt, err := c.Mount(ctx, "/export")
	require.NoError(t, err)
	require.Equal(t, mount.MountOK, mnt.Status)
	require.NoError(t, mnt.Handle.Validate())

	resolved, err := c.Lookup(ctx, mnt.Handle, "data.bin")
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resolved.Status)

	read, err := c.Read(ctx, resolved.Handle, 0, 16)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, read.Status)
	assert.Equal(t, []byte("ABCDEFGHIJKLMNOP"), read.Data)
	assert.True(t, read.EOF)
}

func TestEndToEndPipelinedCalls(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	mnt, err := c.Mount(ctx, "/export")
	require.NoError(t, err)
	root := mnt.Handle

	// Fire concurrent calls; the correlator must hand every reply to its
	// own caller regardless of server-side completion order.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.GetAttr(ctx, root)
			assert.NoError(t, err)
			if err == nil {
				assert.Equal(t, types.NFS3OK, resp.Status)
				assert.Equal(t, types.FileTypeDirectory, resp.Attr.Type)
			}
		}()
	}
	wg.Wait()
}

func TestEndToEndReadDirPlus(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	mnt, err := c.Mount(ctx, "/export")
	require.NoError(t, err)

	listing, err := c.ReadDirPlus(ctx, mnt.Handle, 0, 1<<16)
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, listing.Status)

	names := map[string]bool{}
	for _, e := range listing.Entries {
		names[e.Name] = true
	}
	assert.True(t, names["data.bin"])
	assert.True(t, names["docs"])
}

// TestEndToEndUnknownProcedureKeepsConnection drives an unimplemented
// procedure number and verifies the connection survives it.
func TestEndToEndUnknownProcedureKeepsConnection(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	_, err := c.Call(ctx, v3.Program, v3.Version, 255, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROC_UNAVAIL")

	// The same connection still answers real calls
	require.NoError(t, c.Null(ctx))
}

func TestEndToEndStaleHandle(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	resp, err := c.GetAttr(ctx, types.NewFileHandle(0xDEAD))
	require.NoError(t, err)
	assert.Equal(t, types.NFS3ErrStale, resp.Status)
}
