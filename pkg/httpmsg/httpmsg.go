// Package httpmsg implements the HTTP/1.1 message reader relaysuite's HTTP
// proxy uses on both sides of a connection (spec.md §4.I/§4.J): a request
// line or status line, a header block, and a body delimited by
// Content-Length, chunked Transfer-Encoding, or connection-close — the same
// three modes go-rawhttp's pkg/client.readBody distinguishes, generalized
// here to also read a request's start line instead of only a response's.
package httpmsg

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/relayforge/relaysuite/pkg/buffer"
	"github.com/relayforge/relaysuite/pkg/constants"
	rerrors "github.com/relayforge/relaysuite/pkg/errors"
)

// Header is a case-insensitive multimap, keyed by canonical MIME header
// form. Values under one key keep their order; the order of distinct keys
// is not kept.
type Header map[string][]string

// Get returns the first value for key, or "" if absent.
func (h Header) Get(key string) string {
	v := h[textproto.CanonicalMIMEHeaderKey(key)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Set replaces all values for key with a single value.
func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

// Del removes key entirely.
func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// HasToken reports whether key's comma-joined values contain token,
// case-insensitively — used for Connection/Transfer-Encoding checks.
func (h Header) HasToken(key, token string) bool {
	return httpguts.HeaderValuesContainsToken(h[textproto.CanonicalMIMEHeaderKey(key)], token)
}

// Request is a parsed HTTP/1.1 request line, header block, and body.
type Request struct {
	Method  string
	Target  string
	Version string
	Headers Header
	Body    *buffer.Buffer
	Raw     *buffer.Buffer // verbatim bytes read, header block + body
}

// Response is a parsed HTTP/1.1 status line, header block, and body.
type Response struct {
	Version    string
	StatusCode int
	Reason     string
	Headers    Header
	Body       *buffer.Buffer
	Raw        *buffer.Buffer
}

const maxHeaderBytes = 64 * 1024

// ReadRequest reads one HTTP/1.1 request from r.
func ReadRequest(r *bufio.Reader, bodyMemLimit int64) (*Request, error) {
	raw := buffer.New(bodyMemLimit)

	line, err := readLine(r, raw)
	if err != nil {
		return nil, err
	}
	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	headers, err := readHeaders(r, raw)
	if err != nil {
		return nil, err
	}

	req := &Request{Method: method, Target: target, Version: version, Headers: headers, Raw: raw}
	req.Body = buffer.New(bodyMemLimit)

	if requestHasBody(method, headers) {
		if err := readBody(r, req.Body, raw, headers); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// ReadResponse reads one HTTP/1.1 response from r, for the given request
// method (needed to apply the HEAD/1xx/204/304 no-body rules).
func ReadResponse(r *bufio.Reader, method string, bodyMemLimit int64) (*Response, error) {
	raw := buffer.New(bodyMemLimit)

	line, err := readLine(r, raw)
	if err != nil {
		return nil, err
	}
	version, code, reason, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	headers, err := readHeaders(r, raw)
	if err != nil {
		return nil, err
	}

	resp := &Response{Version: version, StatusCode: code, Reason: reason, Headers: headers, Raw: raw}
	resp.Body = buffer.New(bodyMemLimit)

	if responseHasBody(method, code) {
		if err := readBody(r, resp.Body, raw, headers); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// WriteRequestLine serializes a request's start line.
func WriteRequestLine(w io.Writer, method, target, version string) error {
	_, err := fmt.Fprintf(w, "%s %s %s\r\n", method, target, version)
	return err
}

// WriteStatusLine serializes a response's start line.
func WriteStatusLine(w io.Writer, version string, code int, reason string) error {
	_, err := fmt.Fprintf(w, "%s %d %s\r\n", version, code, reason)
	return err
}

// WriteHeaders serializes h in canonical form followed by the blank line
// that terminates a header block.
func WriteHeaders(w io.Writer, h Header) error {
	for key, values := range h {
		for _, v := range values {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", key, v); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// KeepAlive reports whether a connection should stay open after this
// message, per the request/response's HTTP version and Connection header.
func KeepAlive(version string, headers Header) bool {
	if headers.HasToken("Connection", "close") {
		return false
	}
	if version == "HTTP/1.0" {
		return headers.HasToken("Connection", "keep-alive")
	}
	return true
}

func readLine(r *bufio.Reader, raw *buffer.Buffer) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", rerrors.NewParseMalformedError("read_line", "unexpected end of stream", err)
	}
	if _, werr := raw.Write([]byte(line)); werr != nil {
		return "", werr
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseRequestLine(line string) (method, target, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", rerrors.NewParseMalformedError("parse_request_line", "malformed request line", nil)
	}
	return parts[0], parts[1], parts[2], nil
}

func parseStatusLine(line string) (version string, code int, reason string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", rerrors.NewParseMalformedError("parse_status_line", "malformed status line", nil)
	}
	c, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return "", 0, "", rerrors.NewParseMalformedError("parse_status_line", "non-numeric status code", convErr)
	}
	reason = ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return parts[0], c, reason, nil
}

func readHeaders(r *bufio.Reader, raw *buffer.Buffer) (Header, error) {
	headers := make(Header)
	total := 0
	var lastKey string

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, rerrors.NewParseMalformedError("read_headers", "unexpected end of stream", err)
		}
		total += len(line)
		if total > maxHeaderBytes {
			return nil, rerrors.NewParseMalformedError("read_headers", "header block too large", nil)
		}
		if _, err := raw.Write([]byte(line)); err != nil {
			return nil, err
		}

		if line == "\r\n" || line == "\n" {
			break
		}
		trimmed := strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(trimmed, " ") || strings.HasPrefix(trimmed, "\t") {
			if lastKey == "" {
				continue
			}
			idx := len(headers[lastKey]) - 1
			headers[lastKey][idx] += " " + strings.TrimSpace(trimmed)
			continue
		}

		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		headers[key] = append(headers[key], value)
		lastKey = key
	}
	return headers, nil
}

func requestHasBody(method string, headers Header) bool {
	if headers.Get("Transfer-Encoding") != "" {
		return true
	}
	if cl := headers.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		return err == nil && n > 0
	}
	return false
}

// responseHasBody applies RFC 9110 §6.4.1's no-body rules: a response to
// HEAD, and any 1xx, 204 or 304 response, has no body, and no body read is
// attempted even if more bytes follow it on the connection.
func responseHasBody(method string, statusCode int) bool {
	noBodyExpected := method == "HEAD" ||
		(statusCode >= 100 && statusCode < 200) ||
		statusCode == 204 ||
		statusCode == 304

	return !noBodyExpected
}

func readBody(r *bufio.Reader, dst, raw *buffer.Buffer, headers Header) error {
	switch {
	case headers.HasToken("Transfer-Encoding", "chunked"):
		return readChunkedBody(r, dst, raw, headers)
	case headers.Get("Content-Length") != "":
		length, err := strconv.ParseInt(headers.Get("Content-Length"), 10, 64)
		if err != nil || length < 0 || length > constants.MaxContentLength {
			return rerrors.NewParseMalformedError("read_body", "invalid content-length", err)
		}
		return readFixedBody(r, length, dst, raw)
	default:
		return readUntilClose(r, dst, raw)
	}
}

func readChunkedBody(r *bufio.Reader, dst, raw *buffer.Buffer, headers Header) error {
	tp := textproto.NewReader(r)
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return rerrors.NewParseMalformedError("read_chunk_size", "failed reading chunk size", err)
		}
		if _, err := raw.Write([]byte(line + "\r\n")); err != nil {
			return err
		}

		size, err := strconv.ParseInt(strings.TrimSpace(strings.Split(line, ";")[0]), 16, 64)
		if err != nil {
			return rerrors.NewParseMalformedError("read_chunk_size", "invalid chunk size", err)
		}
		if size == 0 {
			break
		}

		if _, err := io.CopyN(io.MultiWriter(dst, raw), tp.R, size); err != nil {
			return rerrors.NewIOError("read_chunk_body", "", err)
		}
		crlf := make([]byte, 2)
		if _, err := io.ReadFull(tp.R, crlf); err != nil {
			return rerrors.NewIOError("read_chunk_crlf", "", err)
		}
		if _, err := raw.Write(crlf); err != nil {
			return err
		}
	}

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return rerrors.NewParseMalformedError("read_trailer", "failed reading trailer", err)
		}
		if _, err := raw.Write([]byte(line + "\r\n")); err != nil {
			return err
		}
		if line == "" {
			break
		}
		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(parts[0]))
			headers[key] = append(headers[key], strings.TrimSpace(parts[1]))
		}
	}
	return nil
}

func readFixedBody(r *bufio.Reader, length int64, dst, raw *buffer.Buffer) error {
	if length <= 0 {
		return nil
	}
	_, err := io.CopyN(io.MultiWriter(dst, raw), r, length)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		return rerrors.NewIOError("read_fixed_body", "", err)
	}
	return nil
}

func readUntilClose(r *bufio.Reader, dst, raw *buffer.Buffer) error {
	_, err := io.Copy(io.MultiWriter(dst, raw), r)
	if err != nil && err != io.EOF {
		return rerrors.NewIOError("read_until_close", "", err)
	}
	return nil
}
