// File: reactor/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Io watches a file descriptor for readiness in the subscribed
// directions. At most one Io may exist per descriptor. The callback
// runs on the loop thread with the set of ready directions,
// intersected with the subscription.
type Io struct {
	loop   *Loop
	fd     int
	events Events
	cb     func(Events)
	active bool
}

// NewIo creates an io watcher for fd. The watcher starts inactive.
func NewIo(loop *Loop, fd int, events Events, cb func(Events)) *Io {
	return &Io{loop: loop, fd: fd, events: events, cb: cb}
}

func (io *Io) epollEvents() uint32 {
	var raw uint32
	if io.events&Read != 0 {
		raw |= unix.EPOLLIN
	}
	if io.events&Write != 0 {
		raw |= unix.EPOLLOUT
	}
	return raw
}

// Start registers the descriptor with the epoll set.
func (io *Io) Start() error {
	if io.active {
		return nil
	}
	if _, exists := io.loop.ios[io.fd]; exists {
		panic(fmt.Sprintf("reactor: fd %d already has an io watcher", io.fd))
	}
	ev := unix.EpollEvent{Events: io.epollEvents(), Fd: int32(io.fd)}
	if err := unix.EpollCtl(io.loop.epfd, unix.EPOLL_CTL_ADD, io.fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll add fd %d: %w", io.fd, err)
	}
	io.loop.ios[io.fd] = io
	io.loop.active++
	io.active = true
	return nil
}

// Stop deregisters the descriptor. Stopping an inactive watcher is a
// no-op.
func (io *Io) Stop() {
	if !io.active {
		return
	}
	_ = unix.EpollCtl(io.loop.epfd, unix.EPOLL_CTL_DEL, io.fd, nil)
	delete(io.loop.ios, io.fd)
	io.loop.active--
	io.active = false
}

// Set changes the subscribed directions, re-registering with the epoll
// set when the watcher is active.
func (io *Io) Set(events Events) error {
	io.events = events
	if !io.active {
		return nil
	}
	ev := unix.EpollEvent{Events: io.epollEvents(), Fd: int32(io.fd)}
	if err := unix.EpollCtl(io.loop.epfd, unix.EPOLL_CTL_MOD, io.fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll mod fd %d: %w", io.fd, err)
	}
	return nil
}

// Destroy stops the watcher and severs it from the loop.
func (io *Io) Destroy() {
	io.Stop()
	io.cb = nil
}
