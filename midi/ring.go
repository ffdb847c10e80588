package midi

import (
	"sync/atomic"

	"github.com/HLammers/usb-midi/pkg"
)

// Ring is a single-producer single-consumer byte ring. One side writes,
// the other peeks and consumes; neither takes a lock. Capacity is a power
// of two so the free-running cursors wrap by masking.
//
// Transmit rings are written by the application and drained by the
// transfer pump; receive rings the other way around.
type Ring struct {
	buf  []byte
	mask uint32
	head atomic.Uint32 // write cursor, owned by the producer
	tail atomic.Uint32 // read cursor, owned by the consumer
}

// NewRing returns a ring with the given capacity, which must be a power
// of two and at least 8 bytes.
func NewRing(capacity int) (*Ring, error) {
	if !isPowerOfTwo(capacity) || capacity < 8 {
		return nil, pkg.ErrInvalidBufferSize
	}
	return &Ring{
		buf:  make([]byte, capacity),
		mask: uint32(capacity - 1),
	}, nil
}

// Cap returns the ring capacity in bytes.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of readable bytes.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Free returns the number of writable bytes.
func (r *Ring) Free() int {
	return r.Cap() - r.Len()
}

// Write copies p into the ring. It is all-or-nothing: if fewer than
// len(p) bytes are free, nothing is written and ErrBufferFull is
// returned. Producer side only.
func (r *Ring) Write(p []byte) error {
	head := r.head.Load()
	tail := r.tail.Load()
	if len(p) > r.Cap()-int(head-tail) {
		return pkg.ErrBufferFull
	}
	for i, b := range p {
		r.buf[(head+uint32(i))&r.mask] = b
	}
	r.head.Store(head + uint32(len(p)))
	return nil
}

// Peek copies up to len(p) readable bytes into p without consuming them
// and returns the count. Consumer side only.
func (r *Ring) Peek(p []byte) int {
	head := r.head.Load()
	tail := r.tail.Load()
	n := int(head - tail)
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = r.buf[(tail+uint32(i))&r.mask]
	}
	return n
}

// Consume discards n readable bytes. The caller must not consume more
// than a preceding Peek returned. Consumer side only.
func (r *Ring) Consume(n int) {
	r.tail.Add(uint32(n))
}

// Reset empties the ring. Not safe while either side is active.
func (r *Ring) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
}
