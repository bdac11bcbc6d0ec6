// File: reactor/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"container/heap"
	"time"
)

// Timer is a one-shot timer. Firing deactivates the timer before its
// callback runs; a fired or stopped timer may be started again.
type Timer struct {
	loop   *Loop
	after  time.Duration
	cb     func()
	at     time.Time
	active bool
	index  int
}

// NewTimer creates a timer firing cb after the given delay once
// started.
func NewTimer(loop *Loop, after time.Duration, cb func()) *Timer {
	return &Timer{loop: loop, after: after, cb: cb}
}

// Start arms the timer. Starting an armed timer is a no-op.
func (t *Timer) Start() {
	if t.active {
		return
	}
	t.at = t.loop.Now().Add(t.after)
	heap.Push(&t.loop.timers, t)
	t.loop.active++
	t.active = true
}

// Stop disarms the timer if armed.
func (t *Timer) Stop() {
	if !t.active {
		return
	}
	heap.Remove(&t.loop.timers, t.index)
	t.loop.active--
	t.active = false
}

// timerHeap orders timers by deadline.
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { t := x.(*Timer); t.index = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
