// File: stream/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/bipbuf"
	"github.com/momentics/fiberio/reactor"
)

// Reader buffers bytes read from a non-blocking descriptor. A zero
// read or EBADF marks end of file; buffered bytes stay readable past
// that point.
type Reader struct {
	w   *Watcher
	buf *bipbuf.Buffer
	eof bool
}

// NewReader wraps fd with a reader owning its own watcher.
func NewReader(ctx context.Context, fd int) (*Reader, error) {
	return NewReaderSize(ctx, fd, DefaultBufSize)
}

// NewReaderSize is NewReader with an explicit initial staging
// capacity.
func NewReaderSize(ctx context.Context, fd, size int) (*Reader, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("stream: set nonblock: %w", err)
	}
	return newReader(NewWatcher(ctx, fd, reactor.Read, 1), size), nil
}

func newReader(w *Watcher, size int) *Reader {
	return &Reader{w: w, buf: bipbuf.New(size)}
}

// Buffer returns the oldest buffered contiguous run of bytes. The
// reader must not be empty; pair with Consume.
func (r *Reader) Buffer() []byte {
	sl, ok := r.buf.Peek()
	if !ok {
		panic("stream: Buffer on empty reader")
	}
	return r.buf.Bytes(sl)
}

// Consume discards the first n buffered bytes.
func (r *Reader) Consume(n int) { r.buf.Junk(n) }

// Available returns the buffered byte count, or io.EOF once end of
// file was observed and the buffer is drained.
func (r *Reader) Available() (int, error) {
	if r.eof && r.buf.IsEmpty() {
		return 0, io.EOF
	}
	return r.buf.Len(), nil
}

// Refill makes room for size more bytes (growing the staging buffer if
// needed), awaits read readiness, and issues a single read. EAGAIN
// re-awaits; a zero-byte read or EBADF marks end of file. size <= 0
// requests the default.
func (r *Reader) Refill(ctx context.Context, size int) error {
	if size <= 0 {
		size = DefaultBufSize
	}
	pos := prepare(r.buf, size)
	window := r.buf.Bytes(bipbuf.Slice{Pos: pos, Len: size})
	for {
		r.w.Await(ctx, reactor.Read)
		n, err := unix.Read(r.w.Fd(), window)
		switch {
		case err == unix.EAGAIN:
			continue
		case err == unix.EBADF || (err == nil && n == 0):
			r.eof = true
			r.buf.Commit(0)
			return nil
		case err != nil:
			r.buf.Commit(0)
			return fmt.Errorf("stream: read fd %d: %w", r.w.Fd(), err)
		}
		r.buf.Commit(n)
		return nil
	}
}

// Read fills p from the buffer, refilling once when it is empty. It
// returns io.EOF at end of file.
func (r *Reader) Read(ctx context.Context, p []byte) (int, error) {
	if r.buf.IsEmpty() {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.Refill(ctx, 0); err != nil {
			return 0, err
		}
		if r.buf.IsEmpty() {
			return 0, io.EOF
		}
	}
	n := copy(p, r.Buffer())
	r.Consume(n)
	return n, nil
}

// Close releases the reader's share of the descriptor.
func (r *Reader) Close() { r.w.Release() }
