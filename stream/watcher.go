// File: stream/watcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"context"
	"fmt"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/internal/refcount"
	"github.com/momentics/fiberio/reactor"
	"github.com/momentics/fiberio/sched"
)

type fdState struct {
	fd      int
	io      *reactor.Io
	armed   reactor.Events
	allowed reactor.Events
	readQ   *queue.Queue
	writeQ  *queue.Queue
	s       *sched.Scheduler
}

// Watcher is a shared, reference-counted owner of a descriptor and its
// readiness watcher. Await suspends the calling fiber until the
// descriptor reports readiness in the requested direction; each
// readiness event wakes at most one waiter per direction, oldest
// first. The last Release stops and destroys the watcher and closes
// the descriptor.
type Watcher struct {
	h *refcount.Handle[*fdState]
}

// NewWatcher wraps fd. events bounds the directions that may be
// awaited; refs is the number of logical owners (2 for a descriptor
// shared by a Reader/Writer pair).
func NewWatcher(ctx context.Context, fd int, events reactor.Events, refs int32) *Watcher {
	s := sched.FromContext(ctx)
	st := &fdState{
		fd:      fd,
		allowed: events,
		readQ:   queue.New(),
		writeQ:  queue.New(),
		s:       s,
	}
	st.io = reactor.NewIo(s.Loop(), fd, 0, st.onReady)
	return &Watcher{h: refcount.New(refs, (*fdState).finalize, st)}
}

func (st *fdState) finalize() {
	st.io.Stop()
	st.io.Destroy()
	unix.Close(st.fd)
}

// onReady runs on the loop thread. For each ready direction it pops at
// most one waiter and schedules its fill; interest in a direction with
// no remaining waiters is dropped until the next Await re-arms it.
func (st *fdState) onReady(ev reactor.Events) {
	if ev&reactor.Read != 0 {
		st.dispatch(reactor.Read, st.readQ)
	}
	if ev&reactor.Write != 0 {
		st.dispatch(reactor.Write, st.writeQ)
	}
}

func (st *fdState) dispatch(dir reactor.Events, q *queue.Queue) {
	if q.Length() > 0 {
		iv := q.Remove().(*fiber.Ivar[struct{}])
		sched.Fill(st.s, iv, struct{}{})
	}
	if q.Length() == 0 {
		st.disarm(dir)
	}
}

func (st *fdState) arm(dir reactor.Events) {
	if st.armed&dir != 0 {
		return
	}
	was := st.armed
	st.armed |= dir
	_ = st.io.Set(st.armed)
	if was == 0 {
		_ = st.io.Start()
	}
}

func (st *fdState) disarm(dir reactor.Events) {
	if st.armed&dir == 0 {
		return
	}
	st.armed &^= dir
	if st.armed == 0 {
		st.io.Stop()
		return
	}
	_ = st.io.Set(st.armed)
}

func (w *Watcher) state() *fdState {
	st, ok := w.h.Get()
	if !ok {
		panic("stream: use of closed descriptor watcher")
	}
	return st
}

// Fd returns the descriptor. The watcher must be open.
func (w *Watcher) Fd() int { return w.state().fd }

// Await suspends until the descriptor is ready in dir.
func (w *Watcher) Await(ctx context.Context, dir reactor.Events) {
	st := w.state()
	if st.allowed&dir == 0 {
		panic(fmt.Sprintf("stream: await on direction %b not in watcher mask %b", dir, st.allowed))
	}
	iv := fiber.NewIvar[struct{}]()
	switch dir {
	case reactor.Read:
		st.readQ.Add(iv)
	case reactor.Write:
		st.writeQ.Add(iv)
	default:
		panic("stream: await on compound direction")
	}
	st.arm(dir)
	iv.Read(ctx)
}

// Release drops one owner; the last release closes the descriptor.
func (w *Watcher) Release() { w.h.Release() }
