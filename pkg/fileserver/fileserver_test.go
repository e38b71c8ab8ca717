package fileserver

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/relaysuite/pkg/blobstore"
	"github.com/relayforge/relaysuite/pkg/fileclient"
	"github.com/relayforge/relaysuite/pkg/logging"
)

func newPipe(t *testing.T, store blobstore.BlobStore) *fileclient.Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	handler := New(store, logging.Default())
	go handler.Handle(context.Background(), serverConn)

	t.Cleanup(func() { clientConn.Close() })
	return fileclient.New(clientConn)
}

func TestPutThenGetFileRoundTrip(t *testing.T) {
	store := blobstore.NewFSStore(t.TempDir())
	client := newPipe(t, store)

	require.NoError(t, client.PutFile("hello.txt", []byte("Hello"), 0o644))

	data, perm, err := client.GetFile("hello.txt")
	require.NoError(t, err)
	require.Equal(t, "Hello", string(data))
	require.Equal(t, uint16(0o644), perm)
}

func TestGetMissingFileReturnsError(t *testing.T) {
	store := blobstore.NewFSStore(t.TempDir())
	client := newPipe(t, store)

	_, _, err := client.GetFile("nope.txt")
	require.Error(t, err)
}

func TestIdentifySendsNoReply(t *testing.T) {
	store := blobstore.NewFSStore(t.TempDir())
	client := newPipe(t, store)

	require.NoError(t, client.Identify("alice"))
	// A subsequent command on the same connection must still work, proving
	// the server didn't block waiting to reply to IDENTIFY.
	require.NoError(t, client.PutFile("a.txt", []byte("x"), 0o644))
}
