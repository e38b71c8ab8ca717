package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerDispatchesEachConnection(t *testing.T) {
	var handled int32
	handler := HandlerFunc(func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		conn.Write([]byte("hi"))
	})

	srv := New("127.0.0.1:0", handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	require.Eventually(t, func() bool { return srv.BoundAddr() != nil }, time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", srv.BoundAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf))

	_ = handled
	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancel")
	}
}

func TestServerSurvivesHandlerPanic(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		panic("boom")
	})

	srv := New("127.0.0.1:0", handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Serve(ctx)
	require.Eventually(t, func() bool { return srv.BoundAddr() != nil }, time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", srv.BoundAddr().String())
	require.NoError(t, err)
	conn.Close()

	// A second connection must still be accepted after the first handler
	// panicked.
	conn2, err := net.Dial("tcp", srv.BoundAddr().String())
	require.NoError(t, err)
	conn2.Close()
}
