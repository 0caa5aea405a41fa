package queue

import "sync/atomic"

// MultiChannel is a lock-free single-producer/single-consumer ring buffer
// over several channels of sample data at once, used by scope and capture
// nodes to hand blocks from the audio thread to the control thread without
// blocking. Its capacity must be a power of two.
//
// Unlike SPSC, Write never fails: if the producer writes faster than the
// consumer drains, Write clobbers the oldest unread samples and nudges the
// read cursor forward past them. This tolerates a slow consumer (a UI
// thread polling a scope node) at the cost of dropped history, which is the
// right tradeoff for a diagnostic tap — it must never block or backpressure
// the audio thread.
type MultiChannel[T any] struct {
	buffers  [][]T
	capacity uint64
	mask     uint64
	readPos  atomic.Uint64
	writePos atomic.Uint64
}

// NewMultiChannel creates a ring with numChannels independent lanes, each
// of the given capacity (must be a power of two).
func NewMultiChannel[T any](numChannels, capacity int) *MultiChannel[T] {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("queue: capacity must be a power of two")
	}
	if numChannels <= 0 {
		panic("queue: numChannels must be positive")
	}
	buffers := make([][]T, numChannels)
	for i := range buffers {
		buffers[i] = make([]T, capacity)
	}
	return &MultiChannel[T]{
		buffers:  buffers,
		capacity: uint64(capacity),
		mask:     uint64(capacity - 1),
	}
}

// Write copies numSamples samples from data (one slice per channel) into
// the ring, clobbering the oldest unread samples if there isn't room.
// Channels beyond len(data) or beyond the ring's own channel count are
// ignored, matching the original's std::min(buffers.size(), numChannels).
func (m *MultiChannel[T]) Write(data [][]T, numSamples int) {
	w := m.writePos.Load()
	r := m.readPos.Load()
	n := uint64(numSamples)

	shouldMoveRead := n >= m.numFreeSlots(r, w)
	desiredWrite := (w + n) & m.mask
	desiredRead := r
	if shouldMoveRead {
		desiredRead = (desiredWrite + 1) & m.mask
	}

	lanes := len(m.buffers)
	if len(data) < lanes {
		lanes = len(data)
	}
	for i := 0; i < lanes; i++ {
		buf := m.buffers[i]
		src := data[i]
		if w+n >= m.capacity {
			s1 := m.capacity - w
			copy(buf[w:], src[:s1])
			copy(buf[:n-s1], src[s1:n])
		} else {
			copy(buf[w:w+n], src[:n])
		}
	}

	// Publish the write cursor last: the consumer must see the copied
	// samples before it sees the cursor move past them.
	m.writePos.Store(desiredWrite)
	if shouldMoveRead {
		m.readPos.Store(desiredRead)
	}
}

// Read copies numSamples samples into dest (one slice per channel). Returns
// false without modifying dest if fewer than numSamples are available.
func (m *MultiChannel[T]) Read(dest [][]T, numSamples int) bool {
	r := m.readPos.Load()
	w := m.writePos.Load()
	n := uint64(numSamples)

	if m.numFullSlots(r, w) < n {
		return false
	}

	lanes := len(m.buffers)
	if len(dest) < lanes {
		lanes = len(dest)
	}
	for i := 0; i < lanes; i++ {
		buf := m.buffers[i]
		dst := dest[i]
		if r+n >= m.capacity {
			s1 := m.capacity - r
			copy(dst[:s1], buf[r:])
			copy(dst[s1:n], buf[:n-s1])
		} else {
			copy(dst[:n], buf[r:r+n])
		}
	}

	m.readPos.Store((r + n) & m.mask)
	return true
}

// Size returns the number of samples currently buffered per channel. Only
// an approximation when called concurrently with Write/Read, same caveat
// as SPSC.Len.
func (m *MultiChannel[T]) Size() int {
	return int(m.numFullSlots(m.readPos.Load(), m.writePos.Load()))
}

func (m *MultiChannel[T]) numFullSlots(r, w uint64) uint64 {
	if w > r {
		return w - r
	}
	return (m.capacity - (r - w)) & m.mask
}

func (m *MultiChannel[T]) numFreeSlots(r, w uint64) uint64 {
	if r > w {
		return r - w
	}
	return m.capacity - (w - r)
}
