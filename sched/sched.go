// File: sched/sched.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/reactor"
)

// ErrDeadlock is returned by Run when every fiber is suspended, the
// fill queue is empty, and the loop has nothing left that could ever
// produce a fill.
var ErrDeadlock = errors.New("sched: deadlock: all fibers suspended with no active watchers")

type ctxKey struct{}

// Scheduler owns the event loop, the fill queue consumed by the fiber
// runtime, and the mutex-guarded cross-thread queue drained by the
// async watcher. The fill queue is touched only on the loop thread;
// worker threads go through PostExternal.
type Scheduler struct {
	loop  *reactor.Loop
	log   *zap.Logger
	fills []fiber.Fill
	async *reactor.Async

	xmu    sync.Mutex
	xfills []fiber.Fill
}

// Run creates a loop and a scheduler, binds them into the context, and
// executes body as the root fiber until every fiber finishes.
func Run(ctx context.Context, body func(context.Context) error, opts ...Option) error {
	loop, err := reactor.New()
	if err != nil {
		return err
	}
	defer loop.Close()

	s := &Scheduler{loop: loop, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.async = reactor.NewAsync(loop, s.drainExternal)
	s.async.Start()
	defer s.async.Stop()

	ctx = context.WithValue(ctx, ctxKey{}, s)
	s.log.Debug("scheduler running")
	err = fiber.Run(ctx, body, s.iterate)
	if errors.Is(err, ErrDeadlock) {
		s.log.Error("scheduler deadlocked", zap.Error(err))
	}
	return err
}

// FromContext returns the scheduler bound by Run.
func FromContext(ctx context.Context) *Scheduler {
	s, ok := ctx.Value(ctxKey{}).(*Scheduler)
	if !ok {
		panic("sched: context does not carry a scheduler")
	}
	return s
}

// Loop exposes the underlying event loop.
func (s *Scheduler) Loop() *reactor.Loop { return s.loop }

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *zap.Logger { return s.log }

// Enqueue appends a fill to the fill queue. Loop thread only; watcher
// callbacks use this to schedule waiting fibers.
func (s *Scheduler) Enqueue(f fiber.Fill) { s.fills = append(s.fills, f) }

// Fill is shorthand for Enqueue(fiber.NewFill(iv, v)).
func Fill[T any](s *Scheduler, iv *fiber.Ivar[T], v T) {
	s.Enqueue(fiber.NewFill(iv, v))
}

// RefExternal announces an upcoming cross-thread completion, keeping
// the loop alive until it is drained. Every RefExternal must be
// balanced by a PostExternal or an UnrefExternal.
func (s *Scheduler) RefExternal() { s.loop.Ref() }

// UnrefExternal abandons an announced completion.
func (s *Scheduler) UnrefExternal() { s.loop.Unref() }

// PostExternal hands a fill to the loop thread from another goroutine.
// The fill's announced reference is released once it reaches the fill
// queue.
func (s *Scheduler) PostExternal(f fiber.Fill) {
	s.xmu.Lock()
	s.xfills = append(s.xfills, f)
	s.xmu.Unlock()
	s.async.Send()
}

// drainExternal runs on the loop thread when the async watcher fires.
func (s *Scheduler) drainExternal() {
	s.xmu.Lock()
	moved := s.xfills
	s.xfills = nil
	s.xmu.Unlock()
	for range moved {
		s.loop.Unref()
	}
	s.fills = append(s.fills, moved...)
}

// iterate hands the fiber runtime its next batch of fills: drain the
// fill queue if non-empty, otherwise advance the loop one pass and
// retry. A drained loop with an empty fill queue is a deadlock.
func (s *Scheduler) iterate() ([]fiber.Fill, error) {
	for {
		if len(s.fills) > 0 {
			out := s.fills
			s.fills = nil
			return out, nil
		}
		res, err := s.loop.RunOnce()
		if err != nil {
			return nil, err
		}
		if res == reactor.NoMoreActiveWatchers && len(s.fills) == 0 {
			return nil, ErrDeadlock
		}
	}
}
