// Package server provides the concurrent TCP accept-loop substrate shared by
// every relaysuite listener (file server, binary proxy, HTTP proxy), per
// spec.md §5's one-goroutine-per-connection model and §9's suggested
// RequestHandler abstraction. The loop itself is grounded on go-rawhttp's
// connection-per-request handling style in pkg/client/client.go, generalized
// from "one client dials out" to "accept many and hand each to a handler".
package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/relayforge/relaysuite/pkg/logging"
)

// RequestHandler processes one accepted connection to completion. It owns
// closing conn when done.
type RequestHandler interface {
	Handle(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts a plain function to RequestHandler.
type HandlerFunc func(ctx context.Context, conn net.Conn)

func (f HandlerFunc) Handle(ctx context.Context, conn net.Conn) { f(ctx, conn) }

// Server accepts connections on a listener and dispatches each to a handler
// on its own goroutine. A failure handling one connection never brings down
// the accept loop or any other in-flight connection.
type Server struct {
	Addr    string
	Handler RequestHandler
	Logger  logging.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New returns a Server bound to addr, ready for Serve. If logger is nil, a
// default stderr logger is used.
func New(addr string, handler RequestHandler, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{Addr: addr, Handler: handler, Logger: logger}
}

// Serve opens the listener and accepts connections until ctx is canceled or
// Close is called. It blocks until the accept loop exits and every
// in-flight handler has returned.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.Logger.Warnf("accept failed: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.Logger.Errorf("handler panic: %v", r)
				}
			}()
			s.Handler.Handle(ctx, conn)
		}()
	}
}

// Close stops accepting new connections. In-flight handlers are left to
// finish on their own.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// BoundAddr returns the listener's actual bound address, once Serve has started.
func (s *Server) BoundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
