// File: internal/refcount/refcount.go
// Package refcount provides a shared owner cell with an explicit
// release and a one-shot finalizer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package refcount

import "go.uber.org/atomic"

// Handle owns a value shared between several logical owners. Each owner
// calls Release exactly once; the finalizer runs when the last owner
// lets go. Releasing an already-closed handle is a silent no-op, and
// finalizers must not re-enter Release on the same handle.
type Handle[T any] struct {
	data     T
	count    atomic.Int32
	finalize func(T)
}

// New returns a handle with the given initial owner count.
func New[T any](count int32, finalize func(T), data T) *Handle[T] {
	if count <= 0 {
		panic("refcount: non-positive initial count")
	}
	h := &Handle[T]{data: data, finalize: finalize}
	h.count.Store(count)
	return h
}

// Get returns the owned value while the handle is open.
func (h *Handle[T]) Get() (T, bool) {
	if h.count.Load() <= 0 {
		var zero T
		return zero, false
	}
	return h.data, true
}

// Release drops one owner. The finalizer runs exactly once, when the
// count reaches zero.
func (h *Handle[T]) Release() {
	if h.count.Load() <= 0 {
		return
	}
	if h.count.Dec() == 0 && h.finalize != nil {
		h.finalize(h.data)
	}
}
