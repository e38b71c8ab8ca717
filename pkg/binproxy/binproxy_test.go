package binproxy

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/relaysuite/pkg/logging"
)

func TestHandleTunnelsToDestination(t *testing.T) {
	upstream, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstream.Close()

	go func() {
		conn, err := upstream.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		io.ReadFull(conn, buf)
		conn.Write([]byte("reply"))
	}()

	proxyListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer proxyListener.Close()

	handler := New(logging.Default())
	go func() {
		conn, err := proxyListener.Accept()
		if err != nil {
			return
		}
		handler.Handle(context.Background(), conn)
	}()

	client, err := net.Dial("tcp", proxyListener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, port, err := net.SplitHostPort(upstream.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	hdr, err := EncodeHeader(net.ParseIP("127.0.0.1"), uint16(portNum))
	require.NoError(t, err)
	_, err = client.Write(hdr)
	require.NoError(t, err)

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 5)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "reply", string(buf))
}

func TestEncodeHeaderRejectsIPv6(t *testing.T) {
	_, err := EncodeHeader(net.ParseIP("::1"), 80)
	require.Error(t, err)
}
