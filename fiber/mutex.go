// File: fiber/mutex.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"context"

	"github.com/eapache/queue"
)

// Mutex serializes fibers. Unlock hands the lock to the oldest waiter
// directly, so acquisition is FIFO. Not for use outside the fiber
// runtime.
type Mutex struct {
	locked  bool
	waiters *queue.Queue
}

// NewMutex returns an unlocked mutex.
func NewMutex() *Mutex { return &Mutex{waiters: queue.New()} }

// Lock acquires the mutex, suspending the fiber while another holds
// it.
func (m *Mutex) Lock(ctx context.Context) {
	if !m.locked {
		m.locked = true
		return
	}
	iv := NewIvar[struct{}]()
	m.waiters.Add(iv)
	iv.Read(ctx)
}

// Unlock releases the mutex or transfers it to the oldest waiter.
func (m *Mutex) Unlock() {
	if !m.locked {
		panic("fiber: unlock of unlocked mutex")
	}
	if m.waiters.Length() > 0 {
		iv := m.waiters.Remove().(*Ivar[struct{}])
		iv.Fill(struct{}{})
		return
	}
	m.locked = false
}

// WithLock runs fn while holding the mutex.
func (m *Mutex) WithLock(ctx context.Context, fn func() error) error {
	m.Lock(ctx)
	defer m.Unlock()
	return fn()
}
