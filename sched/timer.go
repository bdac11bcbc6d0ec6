// File: sched/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/reactor"
)

// Sleep suspends the calling fiber for d. The backing one-shot timer
// deactivates itself when it fires.
func Sleep(ctx context.Context, d time.Duration) {
	s := FromContext(ctx)
	iv := fiber.NewIvar[struct{}]()
	t := reactor.NewTimer(s.loop, d, func() {
		Fill(s, iv, struct{}{})
	})
	t.Start()
	iv.Read(ctx)
}

// WaitProcess suspends the calling fiber until pid exits and returns
// its wait status.
func WaitProcess(ctx context.Context, pid int) (unix.WaitStatus, error) {
	type exit struct {
		status unix.WaitStatus
		err    error
	}
	s := FromContext(ctx)
	iv := fiber.NewIvar[exit]()
	c := reactor.NewChild(s.loop, pid, func(status unix.WaitStatus, err error) {
		Fill(s, iv, exit{status: status, err: err})
	})
	c.Start()
	res := iv.Read(ctx)
	return res.status, res.err
}
