// File: socket/connect.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/reactor"
	"github.com/momentics/fiberio/sched"
)

// Connect establishes a connection on fd without blocking the runtime.
// The descriptor is marked non-blocking; an in-progress connect
// suspends the fiber on a one-shot write-readiness watcher and the
// socket error is inspected once it fires. EISCONN counts as success.
func Connect(ctx context.Context, fd int, sa unix.Sockaddr) error {
	s := sched.FromContext(ctx)
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("socket: set nonblock: %w", err)
	}
	switch err := unix.Connect(fd, sa); err {
	case nil, unix.EISCONN:
		return nil
	case unix.EINPROGRESS:
	default:
		return fmt.Errorf("socket: connect: %w", err)
	}

	iv := fiber.NewIvar[struct{}]()
	var io *reactor.Io
	io = reactor.NewIo(s.Loop(), fd, reactor.Write, func(reactor.Events) {
		io.Stop()
		sched.Fill(s, iv, struct{}{})
	})
	if err := io.Start(); err != nil {
		return err
	}
	iv.Read(ctx)
	io.Destroy()

	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("socket: getsockopt: %w", err)
	}
	if soerr != 0 {
		return fmt.Errorf("socket: connect: %w", unix.Errno(soerr))
	}
	return nil
}

// TCPSocket creates a close-on-exec IPv4 stream socket.
func TCPSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: socket: %w", err)
	}
	return fd, nil
}

// SockaddrLoopback returns a loopback IPv4 address for port.
func SockaddrLoopback(port int) *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
}
