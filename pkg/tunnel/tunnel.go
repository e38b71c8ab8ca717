// Package tunnel implements the bidirectional byte pump shared by the HTTP
// proxy's CONNECT handling and the binary transport proxy (spec.md §4.H):
// once a destination is established, bytes flow both directions until
// either side closes. Grounded on original_source/src/HTTPProxyServer.cpp's
// select()-based relay loop, reworked into two goroutines synchronized with
// golang.org/x/sync/errgroup instead of a single-threaded fd_set poll.
package tunnel

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/relayforge/relaysuite/pkg/constants"
)

// Pump copies bytes in both directions between a and b until one side
// closes or ctx is canceled. It closes both connections before returning so
// a stuck reader on one side is unblocked once the other side ends.
func Pump(ctx context.Context, a, b net.Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	// Whichever direction ends first closes both connections, so the other
	// direction's blocked read returns too.
	g.Go(func() error { defer a.Close(); defer b.Close(); return copyChunked(a, b) })
	g.Go(func() error { defer a.Close(); defer b.Close(); return copyChunked(b, a) })

	go func() {
		<-gctx.Done()
		a.Close()
		b.Close()
	}()

	err := g.Wait()
	a.Close()
	b.Close()

	if err != nil && !isBenignCloseErr(err) {
		return multierror.Append(nil, err).ErrorOrNil()
	}
	return nil
}

// copyChunked copies from src to dst in fixed-size chunks, per spec.md
// §4.H's 8KiB read size.
func copyChunked(dst io.Writer, src io.Reader) error {
	buf := make([]byte, constants.TunnelChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func isBenignCloseErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
