package graph

import (
	"container/heap"
	"io"
	"log"
	"sync"
	"time"
)

// EventHandler executes an action's params and reports success. A false
// return is logged and the event is dropped without aborting the tick
// (spec §7, error kind 4).
type EventHandler func(params interface{}) bool

// Event is a deferred, per-filter control message: an action name, an
// opaque params value, and a timestamp before which it must not run.
// Replies (if the caller wants one) are written to Reply and the
// connection is closed — mirroring original_source/src/Event.cpp's
// sendAndClose, translated from a raw socket fd to an io.WriteCloser.
type Event struct {
	Action    string
	Params    interface{}
	Timestamp time.Time
	Reply     io.WriteCloser

	seq int // insertion sequence, for stable ordering among equal timestamps
}

// CanExecute reports whether the event's timestamp has arrived. An event
// whose timestamp is in the future is never executed early (spec §3
// invariant).
func (e *Event) CanExecute(now time.Time) bool {
	return !now.Before(e.Timestamp)
}

// SendAndClose writes a reply payload and closes the reply handle, if one
// was supplied. It is a no-op for events with no Reply.
func (e *Event) SendAndClose(payload []byte) {
	if e.Reply == nil {
		return
	}
	_, _ = e.Reply.Write(payload)
	_ = e.Reply.Close()
}

// eventHeap is a timestamp-ascending min-heap with stable insertion-order
// tie-breaking. The teacher's original compared in reverse so the earliest
// event floats to the top of a C++ max-heap (std::priority_queue); Go's
// container/heap is a plain min-heap, so the comparator here is direct.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Timestamp.Equal(h[j].Timestamp) {
		return h[i].seq < h[j].seq
	}
	return h[i].Timestamp.Before(h[j].Timestamp)
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*Event))
}
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EventQueue is a per-filter, timestamp-ordered queue of deferred control
// events, protected by its own mutex (spec §5: eventQueueMutex is separate
// from the filter's readersWritersLck).
type EventQueue struct {
	mu      sync.Mutex
	heap    eventHeap
	nextSeq int
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push enqueues an event under the queue's lock.
func (q *EventQueue) Push(e *Event) {
	q.mu.Lock()
	e.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.heap, e)
	q.mu.Unlock()
}

// Ready reports whether the earliest queued event's timestamp has arrived.
func (q *EventQueue) Ready(now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return false
	}
	return q.heap[0].CanExecute(now)
}

// DrainReady pops and returns every event whose timestamp has arrived, in
// timestamp order (ties broken by insertion order). Events still in the
// future are left in the queue.
func (q *EventQueue) DrainReady(now time.Time) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []*Event
	for len(q.heap) > 0 && q.heap[0].CanExecute(now) {
		ready = append(ready, heap.Pop(&q.heap).(*Event))
	}
	return ready
}

// actionTable maps action names to their handlers for one filter.
type actionTable struct {
	mu       sync.Mutex
	handlers map[string]EventHandler
}

func newActionTable() *actionTable {
	return &actionTable{handlers: make(map[string]EventHandler)}
}

// Register installs or replaces a handler for the named action.
func (t *actionTable) Register(action string, h EventHandler) {
	t.mu.Lock()
	t.handlers[action] = h
	t.mu.Unlock()
}

// Dispatch runs an event's handler, if registered, logging unknown actions
// and handler failures without returning an error (spec §7, error kind 4).
// Whatever happens, it calls e.SendAndClose exactly once so a caller
// waiting on Reply (e.g. an HTTP request) is never left hanging.
func (t *actionTable) Dispatch(e *Event) {
	if e.Action == "" {
		log.Printf("graph: event with no action name, dropping")
		e.SendAndClose([]byte(`{"error":"missing action"}`))
		return
	}

	t.mu.Lock()
	h, ok := t.handlers[e.Action]
	t.mu.Unlock()

	if !ok {
		log.Printf("graph: unknown action %q, dropping event", e.Action)
		e.SendAndClose([]byte(`{"error":"unknown action"}`))
		return
	}

	if !h(e.Params) {
		log.Printf("graph: handler for action %q reported failure", e.Action)
		e.SendAndClose([]byte(`{"ok":false}`))
		return
	}
	e.SendAndClose([]byte(`{"ok":true}`))
}
