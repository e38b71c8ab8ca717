package tunnel

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPumpRelaysBothDirections(t *testing.T) {
	aServer, aClient := net.Pipe()
	bServer, bClient := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- Pump(context.Background(), aServer, bServer)
	}()

	go func() {
		_, _ = aClient.Write([]byte("ping"))
	}()
	buf := make([]byte, 4)
	_, err := io.ReadFull(bClient, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	go func() {
		_, _ = bClient.Write([]byte("pong"))
	}()
	buf2 := make([]byte, 4)
	_, err = io.ReadFull(aClient, buf2)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf2))

	aClient.Close()
	bClient.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pump did not return after both sides closed")
	}
}
