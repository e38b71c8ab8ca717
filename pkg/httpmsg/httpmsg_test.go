package httpmsg

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadRequestFixedLengthBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"
	req, err := ReadRequest(bufio.NewReader(strings.NewReader(raw)), 1024*1024)
	require.NoError(t, err)

	require.Equal(t, "POST", req.Method)
	require.Equal(t, "/submit", req.Target)
	require.Equal(t, "example.com", req.Headers.Get("Host"))
	require.Equal(t, "hello", string(req.Body.Bytes()))
}

func TestReadResponseChunkedBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	resp, err := ReadResponse(bufio.NewReader(strings.NewReader(raw)), "GET", 1024*1024)
	require.NoError(t, err)

	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "hello", string(resp.Body.Bytes()))
}

func TestReadResponseNoBodyFor204(t *testing.T) {
	raw := "HTTP/1.1 204 No Content\r\n\r\nHTTP/1.1 200 OK\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	resp, err := ReadResponse(r, "GET", 1024*1024)
	require.NoError(t, err)
	require.Equal(t, 204, resp.StatusCode)
	require.Empty(t, resp.Body.Bytes())

	// The second response pipelined behind the 204 must still be readable.
	second, err := ReadResponse(r, "GET", 1024*1024)
	require.NoError(t, err)
	require.Equal(t, 200, second.StatusCode)
}

func TestKeepAliveDefaultsByVersion(t *testing.T) {
	h11 := Header{}
	require.True(t, KeepAlive("HTTP/1.1", h11))

	h10 := Header{}
	require.False(t, KeepAlive("HTTP/1.0", h10))

	h10keepalive := Header{"Connection": {"keep-alive"}}
	require.True(t, KeepAlive("HTTP/1.0", h10keepalive))

	h11close := Header{"Connection": {"close"}}
	require.False(t, KeepAlive("HTTP/1.1", h11close))
}

func TestHeaderGetSetDel(t *testing.T) {
	h := Header{}
	h.Set("content-type", "text/plain")
	require.Equal(t, "text/plain", h.Get("Content-Type"))

	h.Del("Content-Type")
	require.Equal(t, "", h.Get("content-type"))
}
