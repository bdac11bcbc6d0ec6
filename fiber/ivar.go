// File: fiber/ivar.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"context"
	"sync"
)

// Ivar is a write-once cell. Reading an unfilled ivar suspends the
// calling fiber until exactly one fill resolves it.
type Ivar[T any] struct {
	mu      sync.Mutex
	filled  bool
	value   T
	waiters []*ivarWaiter[T]
}

type ivarWaiter[T any] struct {
	e  *executor
	ch chan T
}

// NewIvar returns an unfilled ivar.
func NewIvar[T any]() *Ivar[T] { return &Ivar[T]{} }

// Fill resolves the ivar and wakes every reader. Filling twice is a
// programmer error.
func (iv *Ivar[T]) Fill(v T) {
	if !iv.TryFill(v) {
		panic("fiber: ivar filled twice")
	}
}

// TryFill resolves the ivar if still unfilled and reports whether it
// did.
func (iv *Ivar[T]) TryFill(v T) bool {
	iv.mu.Lock()
	if iv.filled {
		iv.mu.Unlock()
		return false
	}
	iv.filled = true
	iv.value = v
	ws := iv.waiters
	iv.waiters = nil
	iv.mu.Unlock()
	for _, w := range ws {
		w.e.markRunnable()
		w.ch <- v
	}
	return true
}

// Peek returns the value without suspending.
func (iv *Ivar[T]) Peek() (T, bool) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.value, iv.filled
}

// Read returns the ivar's value, suspending the calling fiber until it
// is filled.
func (iv *Ivar[T]) Read(ctx context.Context) T {
	e := fromContext(ctx)
	iv.mu.Lock()
	if iv.filled {
		v := iv.value
		iv.mu.Unlock()
		return v
	}
	w := &ivarWaiter[T]{e: e, ch: make(chan T, 1)}
	iv.waiters = append(iv.waiters, w)
	iv.mu.Unlock()

	e.suspend()
	v := <-w.ch
	e.acquire()
	return v
}

// Fill pairs an ivar with its value for batched delivery by the
// iterate step.
type Fill interface {
	fill()
}

type fillPair[T any] struct {
	iv *Ivar[T]
	v  T
}

func (f fillPair[T]) fill() { f.iv.Fill(f.v) }

// NewFill binds v to iv; delivering it resolves the ivar.
func NewFill[T any](iv *Ivar[T], v T) Fill { return fillPair[T]{iv: iv, v: v} }

type tryFillPair[T any] struct {
	iv *Ivar[T]
	v  T
}

func (f tryFillPair[T]) fill() { f.iv.TryFill(f.v) }

// NewTryFill is NewFill for ivars that may already have been resolved
// by a racing cancellation; delivery then becomes a no-op.
func NewTryFill[T any](iv *Ivar[T], v T) Fill { return tryFillPair[T]{iv: iv, v: v} }
