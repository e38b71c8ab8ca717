// Package fileserver implements the binary file-transfer protocol server
// (spec.md §4.F), dispatching IDENTIFY/GET_FILE/PUT_FILE/ENUMERATE commands
// parsed by pkg/protocol against a pkg/blobstore, and driving the
// acknowledgement sequence each command defines. Grounded on
// original_source's FileServer.cpp handleRequest/handleGetFile/handlePutFile
// flow, reworked into Go's RequestHandler shape instead of a per-connection
// object with mutable fields.
package fileserver

import (
	"context"
	"io"
	"io/fs"
	"net"

	"github.com/relayforge/relaysuite/pkg/blobstore"
	rerrors "github.com/relayforge/relaysuite/pkg/errors"
	"github.com/relayforge/relaysuite/pkg/framing"
	"github.com/relayforge/relaysuite/pkg/logging"
	"github.com/relayforge/relaysuite/pkg/protocol"
	"github.com/relayforge/relaysuite/pkg/wireio"
)

const recvChunk = 4096

// Handler implements server.RequestHandler for the file-transfer protocol.
type Handler struct {
	Store  blobstore.BlobStore
	Logger logging.Logger

	// LogDir, if non-empty, receives one append-only per-client log file
	// per connection (logs/client_<id>.log), in addition to Logger.
	LogDir string
}

// New returns a Handler serving files out of store.
func New(store blobstore.BlobStore, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{Store: store, Logger: logger}
}

// Handle reads one connection to completion, serving every command sent on
// it until the peer disconnects or a protocol error forces a close.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	log, closeLog := h.clientLogger(conn)
	if closeLog != nil {
		defer closeLog.Close()
	}
	buf := protocol.NewBuffer()

	for {
		payload, err := h.next(conn, buf)
		if err != nil {
			if rerrors.IsIOClosed(err) {
				log.Debugf("connection closed by peer")
				return
			}
			log.Warnf("connection error: %v", err)
			return
		}

		if !h.dispatch(conn, log, payload) {
			return
		}
	}
}

// next pumps bytes off conn into buf until protocol.Buffer.Next succeeds.
func (h *Handler) next(conn net.Conn, buf *protocol.Buffer) (protocol.CommandPayload, error) {
	for {
		payload, err := buf.Next()
		if err == nil {
			return payload, nil
		}
		if !rerrors.IsParseIncomplete(err) {
			return nil, err
		}

		chunk, rerr := wireio.RecvSome(conn, recvChunk)
		if rerr != nil {
			return nil, rerr
		}
		if chunk == nil {
			return nil, rerrors.NewIOClosedError("recv", remoteAddr(conn))
		}
		buf.Feed(chunk)
	}
}

// dispatch handles a single parsed payload, returning false if the
// connection should be closed.
func (h *Handler) dispatch(conn net.Conn, log logging.Logger, payload protocol.CommandPayload) bool {
	switch p := payload.(type) {
	case protocol.Identify:
		log.Infof("identify: %q", string(p.RawIdentifier))
		return true

	case protocol.GetFile:
		h.handleGetFile(conn, log, p)
		return true

	case protocol.PutFileAccepted:
		// First of PUT_FILE's two acks: the command+path header is accepted.
		// Sent once, here, regardless of how many reads it took to arrive —
		// avoiding the repeated-ACK-on-retry bug a byte-at-a-time handler can
		// fall into when it re-checks "is the header complete yet" on every
		// pass instead of transitioning state exactly once.
		if err := sendStatus(conn, framing.ACK); err != nil {
			log.Warnf("send ack failed: %v", err)
			return false
		}
		return true

	case protocol.PutFile:
		h.handlePutFile(conn, log, p)
		return true

	case protocol.Enumerate:
		log.Debugf("enumerate: unimplemented, no reply sent")
		return true

	case protocol.Unknown:
		log.Warnf("unknown command id %d", p.ID)
		_ = sendStatus(conn, framing.INVALID)
		return true

	default:
		return false
	}
}

func (h *Handler) handleGetFile(conn net.Conn, log logging.Logger, req protocol.GetFile) {
	data, err := h.Store.Load(req.Path)
	if err != nil {
		status := framing.NACK
		if err == blobstore.ErrNotFound {
			status = framing.INVALID
		}
		log.Warnf("get_file %q failed: %v", req.Path, err)
		_ = sendStatus(conn, status)
		return
	}

	if err := sendStatus(conn, framing.ACK); err != nil {
		log.Warnf("send ack failed: %v", err)
		return
	}

	hdr := framing.FileHeader{
		Permissions: 0o644,
		Path:        req.Path,
		FileSize:    uint64(len(data)),
	}
	out := append(framing.EncodeFileHeader(hdr), data...)
	if err := wireio.SendAll(conn, out); err != nil {
		log.Warnf("send file body failed: %v", err)
	}
}

func (h *Handler) handlePutFile(conn net.Conn, log logging.Logger, req protocol.PutFile) {
	mode := fs.FileMode(req.Header.Permissions & 0o777)
	if err := h.Store.Store(req.Header.Path, req.Data, mode); err != nil {
		log.Warnf("put_file %q failed: %v", req.Header.Path, err)
		_ = sendStatus(conn, framing.NACK)
		return
	}
	if err := sendStatus(conn, framing.ACK); err != nil {
		log.Warnf("send ack failed: %v", err)
	}
}

// clientLogger builds this connection's logger: the shared Logger fanned
// out to a per-client append-only file under LogDir, per spec.md §6's
// "logs/client_<id>.log". If LogDir is unset or the file can't be opened,
// it falls back to the shared Logger alone.
func (h *Handler) clientLogger(conn net.Conn) (logging.Logger, io.Closer) {
	addr := remoteAddr(conn)
	base := h.Logger.WithField("remote", addr)
	if h.LogDir == "" {
		return base, nil
	}
	fileLog, closer, err := logging.PerClientFile(h.LogDir, addr, "info")
	if err != nil {
		return base, nil
	}
	return logging.Tee(base, fileLog), closer
}

func sendStatus(conn net.Conn, status framing.ReplyStatus) error {
	return wireio.SendAll(conn, []byte{byte(status)})
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
