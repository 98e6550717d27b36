package buffer

import (
	"sync"

	"github.com/stridesync/stridesync/internal/model"
)

// Buffer is the FIFO queue of captured location samples. It is the
// single mutable resource shared between the capture producer and the
// sync consumer, so every operation takes the mutex and completes
// without blocking on I/O.
//
// Append never fails and never drops: the backing slice grows as
// needed. Drain removes the oldest samples atomically, and Requeue
// puts a failed batch back at the front so chronological order is
// preserved across retries.
type Buffer struct {
	mu      sync.Mutex
	samples []model.LocationSample
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds a sample to the tail of the buffer.
func (b *Buffer) Append(s model.LocationSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, s)
}

// Drain removes and returns up to max of the oldest samples, in
// capture order. Appends racing with a drain land behind the drained
// samples, never inside them.
func (b *Buffer) Drain(max int) []model.LocationSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	if max <= 0 || len(b.samples) == 0 {
		return nil
	}
	n := max
	if n > len(b.samples) {
		n = len(b.samples)
	}

	out := make([]model.LocationSample, n)
	copy(out, b.samples[:n])
	b.samples = append(b.samples[:0], b.samples[n:]...)
	return out
}

// Requeue reinserts a previously drained batch at the front of the
// buffer. Called when an upload attempt fails so no sample is lost.
func (b *Buffer) Requeue(samples []model.LocationSample) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make([]model.LocationSample, 0, len(samples)+len(b.samples))
	merged = append(merged, samples...)
	merged = append(merged, b.samples...)
	b.samples = merged
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}
