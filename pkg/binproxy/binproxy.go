// Package binproxy implements the binary transport proxy (spec.md §3/§4.H):
// read a fixed 6-byte destination header (4-byte IPv4 address + 2-byte
// port, network byte order), dial it, and blindly tunnel bytes from then
// on. This header is intentionally distinct from the little-endian file
// protocol's framing — it rides on top of whatever protocol the tunneled
// bytes carry, so it always uses network byte order regardless of the file
// protocol's endianness fix.
package binproxy

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	rerrors "github.com/relayforge/relaysuite/pkg/errors"
	"github.com/relayforge/relaysuite/pkg/logging"
	"github.com/relayforge/relaysuite/pkg/tunnel"
	"github.com/relayforge/relaysuite/pkg/wireio"
)

const headerSize = 6

// Handler implements server.RequestHandler for the binary transport proxy.
type Handler struct {
	Logger logging.Logger
}

// New returns a Handler.
func New(logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{Logger: logger}
}

// Handle reads the destination header from conn, dials it, and tunnels
// bytes until either side closes.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := h.Logger.WithField("remote", remoteAddr(conn))

	hdr, err := wireio.RecvExact(conn, headerSize)
	if err != nil {
		log.Warnf("failed reading destination header: %v", err)
		return
	}

	ip := net.IPv4(hdr[0], hdr[1], hdr[2], hdr[3])
	port := binary.BigEndian.Uint16(hdr[4:6])

	upstream, err := wireio.Connect(ctx, ip.String(), int(port), 0)
	if err != nil {
		log.Warnf("failed dialing %s:%d: %v", ip, port, err)
		return
	}
	defer upstream.Close()

	log.Infof("tunneling to %s:%d", ip, port)
	if err := tunnel.Pump(ctx, conn, upstream); err != nil {
		log.Debugf("tunnel ended: %v", err)
	}
}

// EncodeHeader serializes a destination header for a client opening a
// binary-proxy-routed connection.
func EncodeHeader(ip net.IP, port uint16) ([]byte, error) {
	v4 := ip.To4()
	if v4 == nil {
		return nil, rerrors.NewValidationError(fmt.Sprintf("not an IPv4 address: %s", ip))
	}
	out := make([]byte, headerSize)
	copy(out[0:4], v4)
	binary.BigEndian.PutUint16(out[4:6], port)
	return out, nil
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
