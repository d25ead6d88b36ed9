// Package buffer provides a bounded byte buffer that keeps only the most
// recent data written to it.
package buffer

import "sync"

// RingBuffer is a thread-safe buffer that retains at most capacity bytes,
// discarding the oldest data on overflow. The runner uses it to cap captured
// program output so a runaway process cannot exhaust memory.
type RingBuffer struct {
	mu       sync.Mutex
	data     []byte
	capacity int
}

// NewRingBuffer creates a RingBuffer with the given capacity. A capacity
// below 1 is treated as 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		data:     make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Write appends p, discarding the oldest bytes if the total would exceed
// capacity. It implements io.Writer and never fails.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(p) >= rb.capacity {
		rb.data = append(rb.data[:0], p[len(p)-rb.capacity:]...)
		return len(p), nil
	}

	if overflow := len(rb.data) + len(p) - rb.capacity; overflow > 0 {
		rb.data = append(rb.data[:0], rb.data[overflow:]...)
	}
	rb.data = append(rb.data, p...)

	return len(p), nil
}

// Bytes returns a copy of the buffered data.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(rb.data) == 0 {
		return nil
	}
	out := make([]byte, len(rb.data))
	copy(out, rb.data)
	return out
}

// Len returns the current number of buffered bytes.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.data)
}

// Cap returns the buffer capacity.
func (rb *RingBuffer) Cap() int {
	return rb.capacity
}
