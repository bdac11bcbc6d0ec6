// File: sched/wheel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"container/list"
	"context"
	"errors"
	"time"

	"github.com/momentics/fiberio/fiber"
)

var (
	// ErrCancelled resolves awaits on wheel tasks removed by Cancel or
	// Stop.
	ErrCancelled = errors.New("sched: wheel task cancelled")
	// ErrWheelStopped is returned by Task after Stop.
	ErrWheelStopped = errors.New("sched: wheel stopped")
)

// Wheel batches equally-delayed timeouts: entries fire in insertion
// order, each at most once, delay after they were scheduled. Cancel and
// Reset are O(1) through list node references. Run is the single
// long-lived consumer; it parks on an ivar while the wheel is empty.
type Wheel struct {
	s     *Scheduler
	delay time.Duration

	entries *list.List
	stopped bool

	waiting       *fiber.Ivar[struct{}]
	waitingFilled bool
}

// WheelTask is a scheduled entry. Obtain tasks from Wheel.Task.
type WheelTask struct {
	w           *Wheel
	iv          *fiber.Ivar[error]
	scheduledAt time.Time
	filled      bool
	elem        *list.Element
}

// NewWheel creates a wheel with a fixed sliding-window delay.
func NewWheel(ctx context.Context, delay time.Duration) *Wheel {
	return &Wheel{s: FromContext(ctx), delay: delay, entries: list.New()}
}

// Task schedules a new entry stamped with the current time and wakes a
// parked Run.
func (w *Wheel) Task(ctx context.Context) (*WheelTask, error) {
	if w.stopped {
		return nil, ErrWheelStopped
	}
	t := &WheelTask{w: w, iv: fiber.NewIvar[error](), scheduledAt: w.s.loop.Now()}
	t.elem = w.entries.PushBack(t)
	w.wake()
	return t, nil
}

// Await suspends until the task fires (nil) or is cancelled
// (ErrCancelled).
func (t *WheelTask) Await(ctx context.Context) error {
	return t.iv.Read(ctx)
}

// Reset re-schedules the task with a fresh timestamp unless it already
// fired or was cancelled.
func (t *WheelTask) Reset() {
	if t.filled {
		return
	}
	t.w.entries.Remove(t.elem)
	t.scheduledAt = t.w.s.loop.Now()
	t.elem = t.w.entries.PushBack(t)
}

// Cancel removes the task and resolves its await with ErrCancelled.
// Idempotent; a fired task is left alone.
func (t *WheelTask) Cancel() {
	if t.filled {
		return
	}
	t.filled = true
	t.w.entries.Remove(t.elem)
	t.iv.Fill(ErrCancelled)
}

func (w *Wheel) wake() {
	if w.waiting != nil && !w.waitingFilled {
		w.waitingFilled = true
		w.waiting.Fill(struct{}{})
	}
}

// Run fires entries in insertion order until Stop. It inspects the
// head, sleeps until the head's deadline, and re-inspects afterwards so
// a Cancel or Reset during the sleep is honoured.
func (w *Wheel) Run(ctx context.Context) error {
	for !w.stopped {
		front := w.entries.Front()
		if front == nil {
			w.waiting = fiber.NewIvar[struct{}]()
			w.waitingFilled = false
			w.waiting.Read(ctx)
			w.waiting = nil
			continue
		}
		t := front.Value.(*WheelTask)
		wait := t.scheduledAt.Add(w.delay).Sub(w.s.loop.Now())
		if wait > 0 {
			Sleep(ctx, wait)
			continue
		}
		w.entries.Remove(t.elem)
		if !t.filled {
			t.filled = true
			t.iv.Fill(nil)
		}
	}
	return nil
}

// Stop cancels the remaining entries in FIFO order and wakes a parked
// Run. Idempotent.
func (w *Wheel) Stop() {
	if w.stopped {
		return
	}
	w.stopped = true
	for w.entries.Len() > 0 {
		front := w.entries.Front()
		t := front.Value.(*WheelTask)
		w.entries.Remove(front)
		if !t.filled {
			t.filled = true
			t.iv.Fill(ErrCancelled)
		}
	}
	w.wake()
}
