// Package httpproxy implements the HTTP/HTTPS content-filtering proxy
// (spec.md §4.I/§4.J): parse a client request, extract its destination,
// either tunnel raw bytes after a CONNECT or forward the request and scan
// both legs against a forbidden-word list. Grounded on
// original_source/src/HTTPProxyServer.cpp's handleRequest/
// parseHttpDestination/connectToHost flow, reworked onto pkg/httpmsg's
// reader instead of hand-rolled line scanning, and onto pkg/tunnel instead
// of a select()-based relay loop.
package httpproxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/relayforge/relaysuite/pkg/buffer"
	"github.com/relayforge/relaysuite/pkg/constants"
	"github.com/relayforge/relaysuite/pkg/contentfilter"
	"github.com/relayforge/relaysuite/pkg/errorpage"
	"github.com/relayforge/relaysuite/pkg/httpmsg"
	"github.com/relayforge/relaysuite/pkg/logging"
	"github.com/relayforge/relaysuite/pkg/tunnel"
	"github.com/relayforge/relaysuite/pkg/wireio"
)

var (
	errHostRequired = errors.New("httpproxy: no destination host in request")
	errInvalidPort  = errors.New("httpproxy: invalid port in destination")
)

// Handler implements server.RequestHandler for the HTTP/HTTPS proxy.
type Handler struct {
	Filter *contentfilter.Filter
	Logger logging.Logger

	// LogDir, if non-empty, receives one append-only per-client log file
	// per connection (logs/client_<id>.log), in addition to Logger.
	LogDir string
}

// New returns a Handler filtering bodies against filter.
func New(filter *contentfilter.Filter, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if filter == nil {
		filter = contentfilter.New(nil)
	}
	return &Handler{Filter: filter, Logger: logger}
}

// Handle serves one client connection, forwarding requests (and, after
// CONNECT, raw bytes) until the client disconnects or a non-recoverable
// error occurs.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log, closeLog := h.clientLogger(conn)
	if closeLog != nil {
		defer closeLog.Close()
	}
	reader := bufio.NewReader(conn)

	for {
		req, err := httpmsg.ReadRequest(reader, constants.DefaultBodyMemLimit)
		if err != nil {
			log.Debugf("request read ended: %v", err)
			return
		}
		log.Infof("%s %s", req.Method, req.Target)

		if req.Method == "CONNECT" {
			h.handleConnect(ctx, conn, log, req)
			return
		}

		if !h.forwardRequest(ctx, conn, reader, log, req) {
			return
		}
	}
}

// handleConnect dials the tunnel target and, on success, replies "200
// Connection Established" and hands the connection off to the raw byte
// pump — the proxy no longer parses bytes on this connection afterward.
func (h *Handler) handleConnect(ctx context.Context, conn net.Conn, log logging.Logger, req *httpmsg.Request) {
	host, port, err := splitHostPort(req.Target, 443)
	if err != nil {
		log.Warnf("bad CONNECT target %q: %v", req.Target, err)
		writeString(conn, errorpage.Build400BadRequest("malformed CONNECT target"))
		return
	}

	upstream, err := wireio.Connect(ctx, host, port, constants.DefaultConnTimeout)
	if err != nil {
		log.Warnf("failed connecting to %s:%d: %v", host, port, err)
		writeString(conn, errorpage.Build502BadGateway("could not reach destination"))
		return
	}
	defer upstream.Close()

	if _, err := conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		log.Warnf("failed writing CONNECT reply: %v", err)
		return
	}

	if err := tunnel.Pump(ctx, conn, upstream); err != nil {
		log.Debugf("tunnel ended: %v", err)
	}
}

// forwardRequest scans the raw request text, forwards it (if clean), scans
// the decoded response body, and relays it (if clean). It returns false if
// the connection should be closed afterward.
func (h *Handler) forwardRequest(ctx context.Context, conn net.Conn, reader *bufio.Reader, log logging.Logger, req *httpmsg.Request) bool {
	// Scan the raw request text (header block + body, spec.md §3), not just
	// the decoded body — a forbidden term in the request line or headers
	// (spec.md §8 scenario 4) would otherwise never be seen by a
	// body-only Check on a bodiless GET.
	term, blocked, err := scanBuffer(h.Filter, req.Raw)
	if err != nil {
		log.Warnf("failed reading buffered request for filtering: %v", err)
		writeString(conn, errorpage.Build400BadRequest("could not read request body"))
		return false
	}
	if blocked {
		log.Infof("request blocked: forbidden term %q", term)
		writeString(conn, errorpage.Build403Forbidden([]string{term}))
		return false
	}

	host, port, err := destinationFromRequest(req)
	if err != nil {
		log.Warnf("could not determine destination: %v", err)
		writeString(conn, errorpage.Build400BadRequest(err.Error()))
		return false
	}

	upstream, err := wireio.Connect(ctx, host, port, constants.DefaultConnTimeout)
	if err != nil {
		log.Warnf("failed connecting to %s:%d: %v", host, port, err)
		writeString(conn, errorpage.Build502BadGateway("could not reach destination"))
		return false
	}
	defer upstream.Close()

	sanitizeHopByHop(req.Headers)
	if err := sendRequest(upstream, req); err != nil {
		log.Warnf("failed forwarding request: %v", err)
		writeString(conn, errorpage.Build502BadGateway("upstream write failed"))
		return false
	}

	upstreamReader := bufio.NewReader(upstream)
	resp, err := httpmsg.ReadResponse(upstreamReader, req.Method, constants.DefaultBodyMemLimit)
	if err != nil {
		log.Warnf("failed reading upstream response: %v", err)
		writeString(conn, errorpage.Build502BadGateway("upstream response malformed"))
		return false
	}

	term, blocked, err = scanBuffer(h.Filter, resp.Body)
	if err != nil {
		log.Warnf("failed reading buffered response for filtering: %v", err)
		writeString(conn, errorpage.Build502BadGateway("could not read upstream response body"))
		return false
	}
	if blocked {
		log.Infof("response blocked: forbidden term %q", term)
		writeString(conn, errorpage.Build503ServiceUnavailable([]string{term}))
		return false
	}

	if err := sendResponse(conn, resp); err != nil {
		log.Warnf("failed relaying response: %v", err)
		return false
	}

	return httpmsg.KeepAlive(req.Version, req.Headers) && httpmsg.KeepAlive(resp.Version, resp.Headers)
}

func sendRequest(conn net.Conn, req *httpmsg.Request) error {
	var out strings.Builder
	httpmsg.WriteRequestLine(&out, req.Method, req.Target, req.Version)
	httpmsg.WriteHeaders(&out, req.Headers)
	if err := wireio.SendAll(conn, []byte(out.String())); err != nil {
		return err
	}
	if req.Body.Size() > 0 {
		return streamBuffer(conn, req.Body)
	}
	return nil
}

func sendResponse(conn net.Conn, resp *httpmsg.Response) error {
	var out strings.Builder
	httpmsg.WriteStatusLine(&out, resp.Version, resp.StatusCode, resp.Reason)
	httpmsg.WriteHeaders(&out, resp.Headers)
	if err := wireio.SendAll(conn, []byte(out.String())); err != nil {
		return err
	}
	if resp.Body.Size() > 0 {
		return streamBuffer(conn, resp.Body)
	}
	return nil
}

// scanBuffer reads buf's full contents — from memory, or from its spilled
// temp file via Reader() once past buffer.DefaultMemoryLimit — and runs it
// through filter. Bytes() alone would silently return empty once a body
// has spilled to disk (buffer.go), which would both bypass the filter and
// truncate the body being forwarded, so every read of a buffer's contents
// in this package goes through here or streamBuffer instead of Bytes().
func scanBuffer(filter *contentfilter.Filter, buf *buffer.Buffer) (term string, blocked bool, err error) {
	r, err := buf.Reader()
	if err != nil {
		return "", false, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", false, err
	}
	term, blocked = filter.Check(data)
	return term, blocked, nil
}

// streamBuffer copies buf's full contents to dst without materializing a
// spilled body in memory, so a body past buffer.DefaultMemoryLimit is
// forwarded in full instead of truncated to whatever Bytes() would return.
func streamBuffer(dst io.Writer, buf *buffer.Buffer) error {
	r, err := buf.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(dst, r)
	return err
}

// sanitizeHopByHop strips the Accept-Encoding header before forwarding, so
// upstream responses arrive uncompressed and are inspectable by the
// content filter (spec.md scenario 3: "Accept-Encoding must not appear in
// the bytes the upstream received").
func sanitizeHopByHop(h httpmsg.Header) {
	h.Del("Accept-Encoding")
	h.Del("Proxy-Connection")
}

// destinationFromRequest extracts host/port from an absolute-form request
// target, falling back to the Host header for origin-form requests.
func destinationFromRequest(req *httpmsg.Request) (string, int, error) {
	if strings.HasPrefix(req.Target, "http://") || strings.HasPrefix(req.Target, "https://") {
		rest := req.Target[strings.Index(req.Target, "://")+3:]
		if idx := strings.IndexAny(rest, "/?"); idx != -1 {
			rest = rest[:idx]
		}
		return splitHostPort(rest, 80)
	}
	return splitHostPort(req.Headers.Get("Host"), 80)
}

func splitHostPort(hostport string, defaultPort int) (string, int, error) {
	if hostport == "" {
		return "", 0, errHostRequired
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errInvalidPort
	}
	return host, port, nil
}

func writeString(conn net.Conn, s string) {
	_ = wireio.SendAll(conn, []byte(s))
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
