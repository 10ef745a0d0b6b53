package graph

import (
	"go.uber.org/atomic"
)

// FrameQueue is a bounded, single-producer/single-consumer ring of Frames.
// It never blocks the producer: once the consumer falls behind by a full
// capacity, the producer overwrites the oldest unread frame and the
// overwritten frame's Consumed flag is forced to false to make the
// overwrite observable (spec §4.1 — live media favors freshness over
// completeness). Cursors are plain monotonic counters so occupancy is a
// subtraction, not a wraparound-sensitive comparison; indexing into the
// backing array masks them down to the ring's power-of-two size.
//
// Grounded on bus.RingBuffer's atomic single-writer/single-reader design,
// adapted from dropping whole *MediaMessage pointers to reusing
// pre-allocated Frame slots in place (getRear/getFront hand back a slot to
// mutate, not a value to replace).
type FrameQueue struct {
	frames []*Frame
	mask   uint32

	writePos atomic.Uint32
	readPos  atomic.Uint32

	dropped atomic.Uint64

	// producerFilter/consumerFilter are the enabled-job hints returned by
	// removeFrame/addFrame respectively. Zero means "no filter to wake".
	producerFilter FilterID
	consumerFilter FilterID
}

// NewFrameQueue creates a queue with the given capacity (rounded up to the
// next power of two) between the writer side (owned by producerFilter) and
// the reader side (owned by consumerFilter).
func NewFrameQueue(capacity uint32, producerFilter, consumerFilter FilterID) *FrameQueue {
	size := uint32(1)
	for size < capacity {
		size <<= 1
	}

	frames := make([]*Frame, size)
	for i := range frames {
		frames[i] = &Frame{}
	}

	return &FrameQueue{
		frames:         frames,
		mask:           size - 1,
		producerFilter: producerFilter,
		consumerFilter: consumerFilter,
	}
}

// Capacity returns the ring's slot count.
func (q *FrameQueue) Capacity() uint32 {
	return q.mask + 1
}

// Occupied returns the number of unread frames currently in the queue.
func (q *FrameQueue) Occupied() uint32 {
	return q.writePos.Load() - q.readPos.Load()
}

// Dropped returns the number of frames silently overwritten due to a slow
// consumer (producer lapping the ring).
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// full reports whether the next write would lap the consumer.
func (q *FrameQueue) full() bool {
	return q.writePos.Load()-q.readPos.Load() >= uint32(len(q.frames))
}

// GetRear returns the slot the producer will fill next.
//
// If the ring is not full, this is simply the next free slot. If the ring
// is full and block is true, the producer does not stall: GetRear instead
// returns the oldest unread slot (about to be overwritten) with Consumed
// forced to false, so the eventual AddFrame call can detect and report the
// overwrite. If the ring is full and block is false, GetRear returns nil.
func (q *FrameQueue) GetRear(block bool) *Frame {
	if q.full() {
		if !block {
			return nil
		}
		idx := q.readPos.Load() & q.mask
		fr := q.frames[idx]
		fr.Consumed = false
		return fr
	}
	idx := q.writePos.Load() & q.mask
	return q.frames[idx]
}

// AddFrame commits the frame most recently returned by GetRear, advancing
// the write cursor. If the ring was full, the oldest unread frame is
// dropped (the read cursor advances too — the overwrite already happened in
// place via GetRear). Returns the enabled-job hint for the consumer side,
// or 0 if no consumer is attached.
func (q *FrameQueue) AddFrame() FilterID {
	if q.full() {
		q.readPos.Add(1)
		q.dropped.Add(1)
	}
	q.writePos.Add(1)
	return q.consumerFilter
}

// GetFront returns the next unread frame, or nil if the queue is empty. The
// block parameter is accepted for API symmetry with GetRear but unused: the
// consumer side never blocks, it always observes the instantaneous queue
// state.
func (q *FrameQueue) GetFront(block bool) *Frame {
	if q.readPos.Load() == q.writePos.Load() {
		return nil
	}
	idx := q.readPos.Load() & q.mask
	return q.frames[idx]
}

// RemoveFrame advances the read cursor past the frame most recently returned
// by GetFront. Returns the enabled-job hint for the producer side, or 0 if
// the queue was already empty or no producer is attached.
func (q *FrameQueue) RemoveFrame() FilterID {
	if q.readPos.Load() == q.writePos.Load() {
		return 0
	}
	q.readPos.Add(1)
	return q.producerFilter
}
