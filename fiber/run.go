// File: fiber/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"context"
	"sync"
)

type ctxKey struct{}

// executor serializes fibers through the gate and tracks how many are
// live and how many are currently runnable. The driving goroutine calls
// iterate whenever every live fiber is suspended.
type executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running int // fibers executing or runnable
	live    int // fibers not yet finished
	gate    chan struct{}
}

func newExecutor() *executor {
	e := &executor{gate: make(chan struct{}, 1)}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *executor) acquire() { e.gate <- struct{}{} }
func (e *executor) release() { <-e.gate }

// suspend is called by a fiber that holds the gate and has already
// registered itself as a waiter somewhere.
func (e *executor) suspend() {
	e.mu.Lock()
	e.running--
	if e.running == 0 {
		e.cond.Signal()
	}
	e.mu.Unlock()
	e.release()
}

func (e *executor) markRunnable() {
	e.mu.Lock()
	e.running++
	e.mu.Unlock()
}

func (e *executor) spawn(ctx context.Context, fn func(context.Context) error) *Ivar[error] {
	iv := NewIvar[error]()
	e.mu.Lock()
	e.live++
	e.running++
	e.mu.Unlock()
	go func() {
		e.acquire()
		err := fn(ctx)
		iv.Fill(err)
		e.mu.Lock()
		e.live--
		e.running--
		if e.running == 0 {
			e.cond.Signal()
		}
		e.mu.Unlock()
		e.release()
	}()
	return iv
}

func fromContext(ctx context.Context) *executor {
	e, ok := ctx.Value(ctxKey{}).(*executor)
	if !ok {
		panic("fiber: context does not carry a fiber runtime")
	}
	return e
}

// Run executes body as the root fiber and drives the runtime to
// completion. Whenever all live fibers are suspended, iterate is called
// and must return a non-empty batch of fills, or an error that aborts
// the run. Run returns the iterate error, or else the root fiber's
// result once every fiber has finished.
func Run(ctx context.Context, body func(context.Context) error, iterate func() ([]Fill, error)) error {
	e := newExecutor()
	ctx = context.WithValue(ctx, ctxKey{}, e)
	root := e.spawn(ctx, body)

	e.mu.Lock()
	for {
		for e.running > 0 {
			e.cond.Wait()
		}
		if e.live == 0 {
			break
		}
		e.mu.Unlock()

		fills, err := iterate()
		if err != nil {
			return err
		}
		if len(fills) == 0 {
			panic("fiber: iterate returned no fills")
		}
		for _, f := range fills {
			f.fill()
		}

		e.mu.Lock()
	}
	e.mu.Unlock()

	if err, ok := root.Peek(); ok {
		return err
	}
	return nil
}

// Go spawns fn as a new fiber and returns an ivar resolving to its
// result. Must be called from within a fiber.
func Go(ctx context.Context, fn func(context.Context) error) *Ivar[error] {
	return fromContext(ctx).spawn(ctx, fn)
}

// Fork runs a on the calling fiber and b on a fresh one, waits for
// both, and returns a's error, or else b's.
func Fork(ctx context.Context, a, b func(context.Context) error) error {
	done := Go(ctx, b)
	errA := a(ctx)
	errB := done.Read(ctx)
	if errA != nil {
		return errA
	}
	return errB
}
