// File: reactor/child.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "golang.org/x/sys/unix"

// Child watches a process for termination. Start parks a goroutine in
// wait4(2); the exit status is delivered on the loop thread. Stopping
// the watcher drops a not-yet-delivered status.
type Child struct {
	loop   *Loop
	pid    int
	cb     func(status unix.WaitStatus, err error)
	active bool
}

// NewChild creates a child watcher for pid. It starts inactive.
func NewChild(loop *Loop, pid int, cb func(status unix.WaitStatus, err error)) *Child {
	return &Child{loop: loop, pid: pid, cb: cb}
}

// Start begins reaping. Starting an active watcher is a no-op.
func (c *Child) Start() {
	if c.active {
		return
	}
	c.active = true
	c.loop.active++
	go func() {
		var status unix.WaitStatus
		var err error
		for {
			_, err = unix.Wait4(c.pid, &status, 0, nil)
			if err != unix.EINTR {
				break
			}
		}
		c.loop.post(func() {
			if !c.active {
				return
			}
			c.active = false
			c.loop.active--
			c.cb(status, err)
		})
	}()
}

// Stop abandons the watcher; a pending exit status is discarded.
func (c *Child) Stop() {
	if !c.active {
		return
	}
	c.active = false
	c.loop.active--
}
