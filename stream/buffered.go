// File: stream/buffered.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import "github.com/momentics/fiberio/bipbuf"

// DefaultBufSize is the initial capacity of a stream's staging buffer.
const DefaultBufSize = 4096

// prepare makes room for n contiguous bytes in b and returns the
// reservation position. Three phases: reserve directly; compress when
// the reclaimable front space covers n and retry; grow the buffer to
// length+n and retry. The last retry cannot fail. Growth is monotone —
// the staging buffer never shrinks for the lifetime of the stream.
func prepare(b *bipbuf.Buffer, n int) int {
	if pos, ok := b.Reserve(n); ok {
		return pos
	}
	if b.CompressGain() >= n {
		b.Compress()
		if pos, ok := b.Reserve(n); ok {
			return pos
		}
	}
	b.Resize(b.Len() + n)
	pos, ok := b.Reserve(n)
	if !ok {
		panic("stream: reserve failed after resize")
	}
	return pos
}
