package graph

import (
	"testing"
	"time"
)

// TestEventDeferral is spec §8 scenario 6: an event timestamped 500ms in
// the future must not execute on the next tick, and must execute exactly
// once after its timestamp arrives.
func TestEventDeferral(t *testing.T) {
	base := time.Unix(1000, 0)
	now := base

	q := NewEventQueue()
	fired := 0
	table := newActionTable()
	table.Register("reconfigure", func(params interface{}) bool {
		fired++
		return true
	})

	q.Push(&Event{Action: "reconfigure", Timestamp: base.Add(500 * time.Millisecond)})

	for _, e := range q.DrainReady(now) {
		table.Dispatch(e)
	}
	if fired != 0 {
		t.Fatalf("expected event not to fire before its timestamp, fired=%d", fired)
	}

	now = base.Add(500 * time.Millisecond)
	for _, e := range q.DrainReady(now) {
		table.Dispatch(e)
	}
	if fired != 1 {
		t.Fatalf("expected event to fire exactly once, fired=%d", fired)
	}

	// A second drain at the same or later time must not re-fire it.
	for _, e := range q.DrainReady(now.Add(time.Second)) {
		table.Dispatch(e)
	}
	if fired != 1 {
		t.Fatalf("expected event not to re-fire, fired=%d", fired)
	}
}

func TestEventOrderingIsTimestampAscending(t *testing.T) {
	base := time.Unix(2000, 0)
	q := NewEventQueue()

	var order []string
	record := func(name string) EventHandler {
		return func(params interface{}) bool {
			order = append(order, name)
			return true
		}
	}
	table := newActionTable()
	table.Register("third", record("third"))
	table.Register("first", record("first"))
	table.Register("second", record("second"))

	q.Push(&Event{Action: "third", Timestamp: base.Add(3 * time.Millisecond)})
	q.Push(&Event{Action: "first", Timestamp: base.Add(1 * time.Millisecond)})
	q.Push(&Event{Action: "second", Timestamp: base.Add(2 * time.Millisecond)})

	for _, e := range q.DrainReady(base.Add(10 * time.Millisecond)) {
		table.Dispatch(e)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestUnknownActionIsDroppedNotFatal(t *testing.T) {
	table := newActionTable()
	// Dispatching an event with no registered handler must not panic.
	table.Dispatch(&Event{Action: "does-not-exist"})
}
