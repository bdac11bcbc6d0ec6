// File: stream/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/bipbuf"
	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/reactor"
)

// Writer stages bytes in a bip-buffer and flushes them to a
// non-blocking descriptor. Prepare/Commit expose the staging area
// directly; WithTransaction serializes that scope among fibers through
// the writer's mutex.
type Writer struct {
	w   *Watcher
	buf *bipbuf.Buffer
	mu  *fiber.Mutex
}

// NewWriter wraps fd with a writer owning its own watcher.
func NewWriter(ctx context.Context, fd int) (*Writer, error) {
	return NewWriterSize(ctx, fd, DefaultBufSize)
}

// NewWriterSize is NewWriter with an explicit initial staging
// capacity.
func NewWriterSize(ctx context.Context, fd, size int) (*Writer, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("stream: set nonblock: %w", err)
	}
	return newWriter(NewWatcher(ctx, fd, reactor.Write, 1), size), nil
}

func newWriter(w *Watcher, size int) *Writer {
	return &Writer{w: w, buf: bipbuf.New(size), mu: fiber.NewMutex()}
}

// Prepare returns a window of n writable bytes inside the staging
// buffer, growing it when neither a direct reservation nor compression
// yields room. The window is valid until Commit.
func (w *Writer) Prepare(n int) []byte {
	pos := prepare(w.buf, n)
	return w.buf.Bytes(bipbuf.Slice{Pos: pos, Len: n})
}

// Commit publishes the first n bytes of the prepared window.
func (w *Writer) Commit(n int) { w.buf.Commit(n) }

// Write stages p in its entirety. It never suspends; call Flush to
// push staged bytes to the descriptor.
func (w *Writer) Write(p []byte) (int, error) {
	copy(w.Prepare(len(p)), p)
	w.Commit(len(p))
	return len(p), nil
}

// WriteString stages s.
func (w *Writer) WriteString(s string) (int, error) {
	copy(w.Prepare(len(s)), s)
	w.Commit(len(s))
	return len(s), nil
}

// WithTransaction acquires the writer mutex, hands f a prepared window
// of max bytes, and commits the count f returns.
func (w *Writer) WithTransaction(ctx context.Context, max int, f func(window []byte) int) error {
	return w.mu.WithLock(ctx, func() error {
		n := f(w.Prepare(max))
		w.Commit(n)
		return nil
	})
}

// Flush writes every committed byte to the descriptor, oldest first,
// awaiting write readiness before each attempt and retrying
// transparently on EAGAIN.
func (w *Writer) Flush(ctx context.Context) error {
	for {
		sl, ok := w.buf.Peek()
		if !ok {
			return nil
		}
		w.w.Await(ctx, reactor.Write)
		n, err := unix.Write(w.w.Fd(), w.buf.Bytes(sl))
		if err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return fmt.Errorf("stream: write fd %d: %w", w.w.Fd(), err)
		}
		w.buf.Junk(n)
	}
}

// Buffered returns the number of staged bytes not yet flushed.
func (w *Writer) Buffered() int { return w.buf.Len() }

// Close releases the writer's share of the descriptor.
func (w *Writer) Close() { w.w.Release() }
