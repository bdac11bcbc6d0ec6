// File: stream/open.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/reactor"
)

// Pipe creates a non-blocking close-on-exec pipe and wraps both ends.
func Pipe(ctx context.Context) (*Reader, *Writer, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, nil, fmt.Errorf("stream: pipe: %w", err)
	}
	r := newReader(NewWatcher(ctx, p[0], reactor.Read, 1), DefaultBufSize)
	w := newWriter(NewWatcher(ctx, p[1], reactor.Write, 1), DefaultBufSize)
	return r, w, nil
}

// OpenRW wraps a duplex descriptor with a Reader/Writer pair sharing
// one watcher. The descriptor closes when both ends are closed.
func OpenRW(ctx context.Context, fd int) (*Reader, *Writer, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, nil, fmt.Errorf("stream: set nonblock: %w", err)
	}
	w := NewWatcher(ctx, fd, reactor.Read|reactor.Write, 2)
	return newReader(w, DefaultBufSize), newWriter(w, DefaultBufSize), nil
}
