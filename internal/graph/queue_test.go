package graph

import "testing"

func TestFrameQueueBasicFlow(t *testing.T) {
	q := NewFrameQueue(4, 1, 2)

	rear := q.GetRear(true)
	rear.PresentationTime = 100
	rear.Consumed = true
	if hint := q.AddFrame(); hint != FilterID(2) {
		t.Fatalf("expected consumer hint 2, got %d", hint)
	}

	front := q.GetFront(false)
	if front == nil {
		t.Fatal("expected a frame")
	}
	if front.PresentationTime != 100 {
		t.Fatalf("expected presentation time 100, got %d", front.PresentationTime)
	}
	front.Consumed = true

	if hint := q.RemoveFrame(); hint != FilterID(1) {
		t.Fatalf("expected producer hint 1, got %d", hint)
	}

	if f := q.GetFront(false); f != nil {
		t.Fatal("expected empty queue after drain")
	}
}

func TestFrameQueueEmptyRemoveReturnsZero(t *testing.T) {
	q := NewFrameQueue(4, 1, 2)
	if hint := q.RemoveFrame(); hint != 0 {
		t.Fatalf("expected 0 hint on empty queue, got %d", hint)
	}
}

// TestFrameQueueOverwriteOnLap exercises spec §4.1/P6: when the producer
// laps an unconsumed frame, the overwrite is observable via Consumed=false
// and the oldest entry is silently dropped rather than blocking.
func TestFrameQueueOverwriteOnLap(t *testing.T) {
	q := NewFrameQueue(2, 1, 2) // rounds up to 2 slots

	for i := int64(0); i < 2; i++ {
		r := q.GetRear(true)
		r.PresentationTime = i
		r.Consumed = true
		q.AddFrame()
	}

	// Queue is now full (2 unread frames); producer must not block.
	r := q.GetRear(true)
	if r.Consumed {
		t.Fatal("expected overflow signal Consumed=false on the reused slot")
	}
	r.PresentationTime = 99
	r.Consumed = true
	q.AddFrame()

	if d := q.Dropped(); d != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", d)
	}

	// The oldest frame (time 0) should have been dropped; remaining should
	// be time 1 then time 99.
	first := q.GetFront(false)
	if first == nil || first.PresentationTime != 1 {
		t.Fatalf("expected next frame to be time 1, got %+v", first)
	}
	q.RemoveFrame()

	second := q.GetFront(false)
	if second == nil || second.PresentationTime != 99 {
		t.Fatalf("expected next frame to be time 99, got %+v", second)
	}
}

func TestFrameQueueCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	q := NewFrameQueue(5, 1, 2)
	if q.Capacity() != 8 {
		t.Fatalf("expected capacity 8, got %d", q.Capacity())
	}
}
