// File: fiber/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"context"
	"errors"

	"github.com/eapache/queue"
)

// ErrPoolStopped is returned by Task after Stop.
var ErrPoolStopped = errors.New("fiber: pool stopped")

// Pool runs submitted tasks as concurrent fibers. Run is the single
// consumer: it spawns a fiber per task, parks while idle, and returns
// once the pool is stopped and every spawned fiber has finished.
type Pool struct {
	tasks   *queue.Queue
	stopped bool
	active  int
	park    *Ivar[struct{}]
	err     error
}

// NewPool returns an empty pool.
func NewPool() *Pool { return &Pool{tasks: queue.New()} }

// Task submits fn. Tasks submitted before Run starts are retained.
func (p *Pool) Task(ctx context.Context, fn func(context.Context) error) error {
	if p.stopped {
		return ErrPoolStopped
	}
	p.tasks.Add(fn)
	p.wake()
	return nil
}

// Stop prevents further submissions and lets Run wind down. Idempotent.
func (p *Pool) Stop() {
	if p.stopped {
		return
	}
	p.stopped = true
	p.wake()
}

func (p *Pool) wake() {
	if p.park != nil {
		iv := p.park
		p.park = nil
		iv.Fill(struct{}{})
	}
}

// Run consumes tasks until the pool is stopped and drained. It returns
// the first error produced by a task.
func (p *Pool) Run(ctx context.Context) error {
	for {
		if p.tasks.Length() > 0 {
			fn := p.tasks.Remove().(func(context.Context) error)
			p.active++
			Go(ctx, func(ctx context.Context) error {
				err := fn(ctx)
				p.active--
				if err != nil && p.err == nil {
					p.err = err
				}
				if p.stopped && p.active == 0 && p.tasks.Length() == 0 {
					p.wake()
				}
				return nil
			})
			continue
		}
		if p.stopped && p.active == 0 {
			return p.err
		}
		p.park = NewIvar[struct{}]()
		p.park.Read(ctx)
	}
}
