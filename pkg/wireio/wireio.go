// Package wireio provides the blocking socket primitives spec.md §4.B calls
// for: a DNS-resolving connect that walks every address family the resolver
// returns, a retrying full-send, an exact-N-byte read, and a single-shot
// recv. The file server, file client and both proxies use these for their
// protocol sends and reads, the same way go-rawhttp's pkg/client centralizes
// send/recv handling in sendRequest/readResponse; the tunnel byte pump and
// the CONNECT reply write to net.Conn directly.
package wireio

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	rerrors "github.com/relayforge/relaysuite/pkg/errors"
)

// Connect resolves host and dials the first address the resolver returns,
// trying each candidate in order (spec.md §4.B: "walks the resolver list and
// uses the first family the resolver supplies"). Both IPv4 and IPv6 are
// attempted.
func Connect(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}

	if ip := net.ParseIP(host); ip != nil {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, rerrors.NewUpstreamUnreachableError(addr, err)
		}
		return conn, nil
	}

	resolver := net.DefaultResolver
	resolveCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ips, err := resolver.LookupIPAddr(resolveCtx, host)
	if err != nil {
		return nil, rerrors.NewUpstreamUnreachableError(addr, err)
	}
	if len(ips) == 0 {
		return nil, rerrors.NewUpstreamUnreachableError(addr, net.ErrClosed)
	}

	var lastErr error
	for _, ipAddr := range ips {
		candidate := net.JoinHostPort(ipAddr.IP.String(), strconv.Itoa(port))
		conn, err := dialer.DialContext(ctx, "tcp", candidate)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, rerrors.NewUpstreamUnreachableError(addr, lastErr)
}

// SendAll writes every byte of p to conn, looping over partial writes.
// Mirrors go-rawhttp's pkg/client.sendRequest write-retry loop.
func SendAll(conn net.Conn, p []byte) error {
	written := 0
	for written < len(p) {
		n, err := conn.Write(p[written:])
		if err != nil {
			return rerrors.NewIOError("send", remoteAddr(conn), err)
		}
		if n == 0 {
			return rerrors.NewIOError("send", remoteAddr(conn), nil)
		}
		written += n
	}
	return nil
}

// RecvSome performs a single read of up to max bytes. A peer close (EOF) is
// reported as an error satisfying errors.IsIOClosed; a zero-length, nil-err
// result only comes from a read that returned no bytes and no error.
func RecvSome(conn net.Conn, max int) ([]byte, error) {
	buf := make([]byte, max)
	n, err := conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, classifyReadErr(conn, err)
	}
	return nil, nil
}

// RecvExact reads exactly n bytes from conn, looping until satisfied or the
// peer closes early.
func RecvExact(conn net.Conn, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := conn.Read(buf[read:])
		read += m
		if err != nil {
			if read == n {
				break
			}
			return nil, classifyReadErr(conn, err)
		}
		if m == 0 && err == nil {
			return nil, rerrors.NewIOClosedError("recv_exact", remoteAddr(conn))
		}
	}
	return buf, nil
}

// SetTimeout applies a combined read/write deadline to conn. A zero d clears
// any existing deadline.
func SetTimeout(conn net.Conn, d time.Duration) error {
	if d <= 0 {
		return conn.SetDeadline(time.Time{})
	}
	return conn.SetDeadline(time.Now().Add(d))
}

func classifyReadErr(conn net.Conn, err error) error {
	if errors.Is(err, io.EOF) {
		return rerrors.NewIOClosedError("recv", remoteAddr(conn))
	}
	return rerrors.NewIOError("recv", remoteAddr(conn), err)
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
