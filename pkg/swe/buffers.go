package swe

import (
	"sync"
	"sync/atomic"
)

// errBufSize matches the AS_MAXCH error buffer of the engine.
const errBufSize = 256

type positionBuf [6]float64

type vectorBuf [3]float64

type dateBuf struct {
	year  int32
	month int32
	day   int32
	hour  float64
}

type errBuf [errBufSize]byte

// bufferPool hands out zeroed scratch buffers and tracks how many are live.
type bufferPool[T any] struct {
	pool sync.Pool
	live atomic.Int64
}

func newBufferPool[T any]() *bufferPool[T] {
	return &bufferPool[T]{
		pool: sync.Pool{New: func() any { return new(T) }},
	}
}

func (p *bufferPool[T]) acquire() *T {
	p.live.Add(1)

	buf, _ := p.pool.Get().(*T)
	if buf == nil {
		buf = new(T)
	}

	var zero T
	*buf = zero

	return buf
}

func (p *bufferPool[T]) release(buf *T) {
	p.live.Add(-1)
	p.pool.Put(buf)
}

// Live returns the number of buffers acquired and not yet released.
func (p *bufferPool[T]) Live() int64 {
	return p.live.Load()
}

// cString returns the NUL-terminated prefix of buf.
func cString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}

	return string(buf)
}
