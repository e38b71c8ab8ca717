package wireio

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/relayforge/relaysuite/pkg/errors"
)

func TestConnectByLiteralIP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port failed: %v", err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse port failed: %v", err)
	}

	conn, err := Connect(context.Background(), "127.0.0.1", portNum, time.Second)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	conn.Close()
}

func TestSendAllAndRecvExact(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go SendAll(client, []byte("hello"))

	got, err := RecvExact(server, 5)
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestRecvSomeReportsIOClosedOnEOF(t *testing.T) {
	server, client := net.Pipe()
	client.Close()

	_, err := RecvSome(server, 16)
	if !errors.IsIOClosed(err) {
		t.Fatalf("expected IOClosed, got %v", err)
	}
}

