// File: worker/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/sched"
)

var (
	// ErrStopped is returned by Submit and Close after Close.
	ErrStopped = errors.New("worker: stopped")
	// ErrCancelled resolves awaits on tasks dropped by Cancel.
	ErrCancelled = errors.New("worker: task cancelled")
)

// PanicError carries a panic raised inside a task's thunk, with the
// stack captured on the worker thread.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker: task panicked: %v", e.Value)
}

type result struct {
	value any
	err   error
}

type job struct {
	run       func() (any, error)
	cancelled bool
	consumed  bool
	complete  func(result)
}

// Worker owns one OS thread draining a FIFO of jobs. Jobs complete in
// submission order; a cancelled job is dropped if the thread has not
// picked it up yet.
type Worker struct {
	s   *sched.Scheduler
	log *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   *queue.Queue
	closed bool
}

// New spawns the worker thread. The worker must be shut down with
// Close; there is no implicit termination.
func New(ctx context.Context) *Worker {
	s := sched.FromContext(ctx)
	w := &Worker{s: s, log: s.Logger().Named("worker"), jobs: queue.New()}
	w.cond = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		w.mu.Lock()
		for w.jobs.Length() == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.jobs.Length() == 0 {
			w.mu.Unlock()
			return
		}
		j := w.jobs.Remove().(*job)
		if j.cancelled {
			w.mu.Unlock()
			continue
		}
		j.consumed = true
		w.mu.Unlock()

		v, err := runThunk(j)
		var pe *PanicError
		if errors.As(err, &pe) {
			w.log.Error("task panicked", zap.Any("panic", pe.Value))
		}
		j.complete(result{value: v, err: err})
	}
}

func runThunk(j *job) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return j.run()
}

// Task is a handle to a submitted thunk.
type Task[T any] struct {
	w  *Worker
	j  *job
	iv *fiber.Ivar[result]
}

// Submit enqueues fn on w and returns a task handle. The thunk runs on
// the worker thread; its completion is forwarded through the
// scheduler's cross-thread queue.
func Submit[T any](w *Worker, fn func() (T, error)) (*Task[T], error) {
	iv := fiber.NewIvar[result]()
	j := &job{run: func() (any, error) { return fn() }}
	j.complete = func(r result) {
		w.s.PostExternal(fiber.NewTryFill(iv, r))
	}

	// Announce the completion before the job exists so the loop stays
	// alive while the thunk runs.
	w.s.RefExternal()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.s.UnrefExternal()
		return nil, ErrStopped
	}
	w.jobs.Add(j)
	w.cond.Signal()
	w.mu.Unlock()
	return &Task[T]{w: w, j: j, iv: iv}, nil
}

// Await suspends until the task completes, returning the thunk's value
// and error, ErrCancelled after a cancellation, or a PanicError when
// the thunk panicked.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	r := t.iv.Read(ctx)
	v, _ := r.value.(T)
	return v, r.err
}

// Cancel resolves the task with ErrCancelled. A job the worker has not
// yet picked up is dropped; a running thunk is not interrupted, and a
// completed task is left alone.
func (t *Task[T]) Cancel() {
	if _, done := t.iv.Peek(); done {
		return
	}
	t.w.mu.Lock()
	if !t.j.consumed && !t.j.cancelled {
		t.j.cancelled = true
		t.w.mu.Unlock()
		t.w.s.UnrefExternal() // the worker will never post this job
		t.iv.Fill(result{err: ErrCancelled})
		return
	}
	t.w.mu.Unlock()
	t.iv.TryFill(result{err: ErrCancelled})
}

// Close drains already-submitted jobs, stops the thread, and returns
// once every prior completion has been posted. Subsequent Closes
// return ErrStopped.
func (w *Worker) Close(ctx context.Context) error {
	drained, err := Submit(w, func() (struct{}, error) { return struct{}{}, nil })
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	_, err = drained.Await(ctx)
	return err
}
