// File: reactor/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Result reports what a single loop pass observed.
type Result int

const (
	// Again means the pass dispatched events or may dispatch more on
	// the next pass.
	Again Result = iota
	// NoMoreActiveWatchers means no active watcher and no external
	// reference remain; further passes can never dispatch anything.
	NoMoreActiveWatchers
)

// Events is a readiness direction bitmask.
type Events uint8

const (
	Read Events = 1 << iota
	Write
)

const maxEpollEvents = 64

// Loop multiplexes io, timer, child and async watchers over one epoll
// instance. A non-blocking eventfd is registered with the epoll set and
// carries cross-thread wakeups.
type Loop struct {
	epfd   int
	wakeFd int

	ios    map[int]*Io
	timers timerHeap
	active int // started watchers keeping the loop alive

	postMu  sync.Mutex
	posted  []func()
	extRefs int

	events [maxEpollEvents]unix.EpollEvent
}

// New creates a loop with its epoll set and wakeup descriptor.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, fmt.Errorf("reactor: register wakeup: %w", err)
	}
	return &Loop{epfd: epfd, wakeFd: wakeFd, ios: make(map[int]*Io)}, nil
}

// Now returns the loop's monotonic timestamp.
func (l *Loop) Now() time.Time { return time.Now() }

// Ref adds an external reference keeping the loop alive. Safe from any
// goroutine.
func (l *Loop) Ref() {
	l.postMu.Lock()
	l.extRefs++
	l.postMu.Unlock()
}

// Unref drops an external reference. Safe from any goroutine.
func (l *Loop) Unref() {
	l.postMu.Lock()
	if l.extRefs <= 0 {
		l.postMu.Unlock()
		panic("reactor: unref without ref")
	}
	l.extRefs--
	l.postMu.Unlock()
}

// post schedules fn to run on the loop thread during the next pass and
// wakes the poller. Safe from any goroutine.
func (l *Loop) post(fn func()) {
	l.postMu.Lock()
	l.posted = append(l.posted, fn)
	l.postMu.Unlock()
	l.wakeup()
}

func (l *Loop) wakeup() {
	var one [8]byte
	one[0] = 1
	// The eventfd counter coalesces; EAGAIN on a saturated counter is
	// as good as a successful write.
	_, _ = unix.Write(l.wakeFd, one[:])
}

func (l *Loop) drainWakeup() {
	var buf [8]byte
	_, _ = unix.Read(l.wakeFd, buf[:])
}

// RunOnce advances the loop by a single pass: it blocks until at least
// one event, timer expiry, or cross-thread wakeup arrives, dispatches
// every ready callback, and returns Again. When no active watcher, no
// external reference and no posted callback remain it returns
// NoMoreActiveWatchers without polling.
func (l *Loop) RunOnce() (Result, error) {
	l.postMu.Lock()
	pending := len(l.posted) > 0
	refs := l.extRefs
	l.postMu.Unlock()

	if l.active == 0 && refs == 0 && !pending {
		return NoMoreActiveWatchers, nil
	}

	timeout := -1
	if pending {
		timeout = 0
	} else if len(l.timers) > 0 {
		d := l.timers[0].at.Sub(l.Now())
		if d < 0 {
			d = 0
		}
		timeout = int((d + time.Millisecond - 1) / time.Millisecond)
	}

	n, err := unix.EpollWait(l.epfd, l.events[:], timeout)
	for err == unix.EINTR {
		n, err = unix.EpollWait(l.epfd, l.events[:], 0)
	}
	if err != nil {
		return Again, fmt.Errorf("reactor: epoll wait: %w", err)
	}

	// Snapshot ready descriptors before dispatching: a callback may
	// stop or destroy watchers, including its own.
	type ready struct {
		fd  int
		raw uint32
	}
	var readySet [maxEpollEvents]ready
	for i := 0; i < n; i++ {
		readySet[i] = ready{fd: int(l.events[i].Fd), raw: l.events[i].Events}
	}

	for i := 0; i < n; i++ {
		r := readySet[i]
		if r.fd == l.wakeFd {
			l.drainWakeup()
			continue
		}
		io, ok := l.ios[r.fd]
		if !ok || !io.active {
			continue
		}
		var ev Events
		if r.raw&unix.EPOLLIN != 0 {
			ev |= Read
		}
		if r.raw&unix.EPOLLOUT != 0 {
			ev |= Write
		}
		if r.raw&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			// Report error conditions on every subscribed direction so
			// the waiter retries its syscall and observes the failure.
			ev |= io.events
		}
		ev &= io.events
		if ev != 0 {
			io.cb(ev)
		}
	}

	l.fireTimers()
	l.runPosted()
	return Again, nil
}

func (l *Loop) fireTimers() {
	now := l.Now()
	for len(l.timers) > 0 && !l.timers[0].at.After(now) {
		t := heap.Pop(&l.timers).(*Timer)
		t.active = false
		l.active--
		t.cb()
	}
}

func (l *Loop) runPosted() {
	l.postMu.Lock()
	fns := l.posted
	l.posted = nil
	l.postMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Close releases the epoll set and the wakeup descriptor.
func (l *Loop) Close() error {
	unix.Close(l.wakeFd)
	return unix.Close(l.epfd)
}
