// Package fileclient implements the client side of the binary file-transfer
// protocol (spec.md §4.G): command encoders plus a Client that sends a
// command, waits for the ack(s) it defines, and for GET_FILE reads the
// returned file. Grounded on go-rawhttp's pkg/client request/response
// round-trip shape (Do: write request, read response) applied to the
// binary protocol instead of HTTP.
package fileclient

import (
	"net"

	rerrors "github.com/relayforge/relaysuite/pkg/errors"
	"github.com/relayforge/relaysuite/pkg/framing"
	"github.com/relayforge/relaysuite/pkg/wireio"
)

// Client sends file-protocol commands over a single connection.
type Client struct {
	conn net.Conn
}

// New wraps conn as a Client. The caller owns conn's lifecycle.
func New(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Identify sends an IDENTIFY command. The protocol defines no
// acknowledgement for IDENTIFY; it returns once the bytes are on the wire.
func (c *Client) Identify(identifier string) error {
	buf := append(framing.EncodeCommandHeader(framing.IDENTIFY), []byte(identifier)...)
	return wireio.SendAll(c.conn, buf)
}

// GetFile requests path and, on ACK, returns the file's contents and
// permission bits.
func (c *Client) GetFile(path string) (data []byte, permissions uint16, err error) {
	cmd := encodePathCommand(framing.GET_FILE, path)
	if err := wireio.SendAll(c.conn, cmd); err != nil {
		return nil, 0, err
	}

	status, err := recvStatus(c.conn)
	if err != nil {
		return nil, 0, err
	}
	if status != framing.ACK {
		return nil, 0, rerrors.NewNotFoundError(path)
	}

	hdr, err := recvFileHeader(c.conn)
	if err != nil {
		return nil, 0, err
	}
	body, err := wireio.RecvExact(c.conn, int(hdr.FileSize))
	if err != nil {
		return nil, 0, err
	}
	return body, hdr.Permissions, nil
}

// PutFile sends path's header and data, observing the two-ack discipline:
// the first ack confirms the command+path header landed, the second
// confirms the file was persisted.
func (c *Client) PutFile(path string, data []byte, permissions uint16) error {
	cmd := encodePathCommand(framing.PUT_FILE, path)
	if err := wireio.SendAll(c.conn, cmd); err != nil {
		return err
	}
	if status, err := recvStatus(c.conn); err != nil {
		return err
	} else if status != framing.ACK {
		return rerrors.NewValidationError("server rejected put_file header")
	}

	hdr := framing.FileHeader{Permissions: permissions, Path: path, FileSize: uint64(len(data))}
	body := append(framing.EncodeFileHeader(hdr), data...)
	if err := wireio.SendAll(c.conn, body); err != nil {
		return err
	}

	status, err := recvStatus(c.conn)
	if err != nil {
		return err
	}
	if status != framing.ACK {
		return rerrors.NewValidationError("server rejected put_file body")
	}
	return nil
}

// Enumerate sends the reserved ENUMERATE command. No reply is defined.
func (c *Client) Enumerate() error {
	return wireio.SendAll(c.conn, framing.EncodeCommandHeader(framing.ENUMERATE))
}

func encodePathCommand(id framing.CommandID, path string) []byte {
	pathBytes := []byte(path)
	out := make([]byte, framing.CommandHeaderSize+2+len(pathBytes))
	copy(out, framing.EncodeCommandHeader(id))
	framing.WriteUint16LE(out[framing.CommandHeaderSize:], uint16(len(pathBytes)))
	copy(out[framing.CommandHeaderSize+2:], pathBytes)
	return out
}

func recvStatus(conn net.Conn) (framing.ReplyStatus, error) {
	b, err := wireio.RecvExact(conn, 1)
	if err != nil {
		return 0, err
	}
	return framing.ReplyStatus(b[0]), nil
}

func recvFileHeader(conn net.Conn) (framing.FileHeader, error) {
	fixed, err := wireio.RecvExact(conn, 4)
	if err != nil {
		return framing.FileHeader{}, err
	}
	pathLen := int(framing.ReadUint16LE(fixed[2:4]))

	rest, err := wireio.RecvExact(conn, pathLen+8)
	if err != nil {
		return framing.FileHeader{}, err
	}

	full := append(fixed, rest...)
	hdr, _, ok := framing.ParseFileHeader(full, 0)
	if !ok {
		return framing.FileHeader{}, rerrors.NewParseMalformedError("parse_file_header", "truncated file header", nil)
	}
	return hdr, nil
}
