package cadente

import (
	"github.com/valyala/bytebufferpool"
)

var bufferPool bytebufferpool.Pool

// acquireBuffer returns a pooled buffer with exactly size usable bytes.
//
// Every acquired buffer must be released exactly once on every exit path;
// both leaks and double releases are bugs.
func acquireBuffer(size int) *bytebufferpool.ByteBuffer {
	b := bufferPool.Get()
	if cap(b.B) < size {
		b.B = make([]byte, size)
	}
	b.B = b.B[:size]
	return b
}

// releaseBuffer returns b to the pool. b.B must not be touched afterwards:
// parsed requests alias it.
func releaseBuffer(b *bytebufferpool.ByteBuffer) {
	bufferPool.Put(b)
}
