// File: reactor/async.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "go.uber.org/atomic"

// Async is the cross-thread wake watcher. Send may be called from any
// goroutine; the callback runs on the loop thread during the next
// pass. Sends coalesce: several Sends before the pass may produce a
// single callback invocation.
//
// An async watcher does not keep the loop alive. Callers expecting a
// completion hold a Loop.Ref until it is observed.
type Async struct {
	loop    *Loop
	cb      func()
	started atomic.Bool
	pending atomic.Bool
}

// NewAsync creates an async watcher. It starts inactive.
func NewAsync(loop *Loop, cb func()) *Async {
	return &Async{loop: loop, cb: cb}
}

// Start enables delivery.
func (a *Async) Start() { a.started.Store(true) }

// Stop disables delivery; in-flight sends are dropped.
func (a *Async) Stop() { a.started.Store(false) }

// Send requests a callback on the loop thread. Safe from any
// goroutine; a no-op when the watcher is stopped.
func (a *Async) Send() {
	if !a.started.Load() {
		return
	}
	if !a.pending.CompareAndSwap(false, true) {
		return // a callback is already queued for the next pass
	}
	a.loop.post(func() {
		a.pending.Store(false)
		if a.started.Load() {
			a.cb()
		}
	})
}
