// File: socket/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/reactor"
	"github.com/momentics/fiberio/sched"
	"github.com/momentics/fiberio/stream"
)

// Session is an accepted connection handed to the server's handler.
type Session struct {
	fd   int
	addr unix.Sockaddr
}

// Addr returns the peer address.
func (s *Session) Addr() unix.Sockaddr { return s.addr }

// Open wraps the connection in a buffered Reader/Writer pair sharing
// one reference-counted descriptor watcher; the connection closes when
// both are closed.
func (s *Session) Open(ctx context.Context) (*stream.Reader, *stream.Writer, error) {
	return stream.OpenRW(ctx, s.fd)
}

// Server accepts connections on a listening descriptor and runs one
// session task per connection on a fiber pool. Readiness fills a
// rotating accept ivar; Serve swaps in a fresh ivar before each
// accept.
type Server struct {
	s    *sched.Scheduler
	fd   int
	io   *reactor.Io
	pool *fiber.Pool
	log  *zap.Logger

	accept       *fiber.Ivar[struct{}]
	acceptFilled bool
	closed       atomic.Bool
}

// NewServer binds fd to sa, listens with the given backlog, and arms
// the accept watcher.
func NewServer(ctx context.Context, fd int, sa unix.Sockaddr, backlog int) (*Server, error) {
	s := sched.FromContext(ctx)
	if err := unix.Bind(fd, sa); err != nil {
		return nil, fmt.Errorf("socket: bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return nil, fmt.Errorf("socket: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("socket: set nonblock: %w", err)
	}
	srv := &Server{
		s:      s,
		fd:     fd,
		pool:   fiber.NewPool(),
		log:    s.Logger().Named("server"),
		accept: fiber.NewIvar[struct{}](),
	}
	srv.io = reactor.NewIo(s.Loop(), fd, reactor.Read, srv.onReadable)
	if err := srv.io.Start(); err != nil {
		return nil, err
	}
	return srv, nil
}

// Addr returns the bound local address; useful after binding port 0.
func (srv *Server) Addr() (unix.Sockaddr, error) {
	return unix.Getsockname(srv.fd)
}

func (srv *Server) onReadable(reactor.Events) {
	if srv.acceptFilled {
		return
	}
	srv.acceptFilled = true
	sched.Fill(srv.s, srv.accept, struct{}{})
}

// Serve accepts connections until Close, running f for each session as
// a pool task. Handler errors are logged, not fatal.
func (srv *Server) Serve(ctx context.Context, f func(ctx context.Context, sess *Session) error) error {
	return fiber.Fork(ctx,
		func(ctx context.Context) error { return srv.acceptLoop(ctx, f) },
		func(ctx context.Context) error { return srv.pool.Run(ctx) })
}

func (srv *Server) acceptLoop(ctx context.Context, f func(ctx context.Context, sess *Session) error) error {
	for {
		srv.accept.Read(ctx)
		if srv.closed.Load() {
			return nil
		}
		srv.accept = fiber.NewIvar[struct{}]()
		srv.acceptFilled = false

		nfd, addr, err := unix.Accept4(srv.fd, unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK)
		if err == unix.EAGAIN || err == unix.ECONNABORTED {
			continue
		}
		if err != nil {
			if srv.closed.Load() {
				return nil
			}
			srv.log.Warn("accept failed", zap.Error(err))
			continue
		}

		sess := &Session{fd: nfd, addr: addr}
		if err := srv.pool.Task(ctx, func(ctx context.Context) error {
			if err := f(ctx, sess); err != nil {
				srv.log.Warn("session handler failed", zap.Error(err))
			}
			return nil
		}); err != nil {
			unix.Close(nfd)
			return nil
		}
	}
}

// Close shuts the server down: stop the accept watcher, close the
// listening descriptor, stop the pool, and release a Serve parked on
// the accept ivar. Idempotent.
func (srv *Server) Close() {
	if !srv.closed.CompareAndSwap(false, true) {
		return
	}
	srv.io.Stop()
	srv.io.Destroy()
	unix.Close(srv.fd)
	srv.pool.Stop()
	if !srv.acceptFilled {
		srv.acceptFilled = true
		srv.accept.Fill(struct{}{})
	}
}
