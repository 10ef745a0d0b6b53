package graph

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// DefaultRetryInterval is the backoff a worker waits before re-trying a
// filter that returned Retry, and the default inter-tick period for
// periodic filters. Named RETRY in spec §4.7/§5.
const DefaultRetryInterval = 2 * time.Millisecond

// Scheduler is the shared ready-set every Worker consults, keyed by filter
// ID (spec §4.7/§9: "a small integer returned from queue ops ... workers
// consult a shared ready-set guarded by a mutex"). A filter ID may be
// marked ready from any worker — this is how a queue operation on one
// worker's filter wakes a filter owned by a different worker.
type Scheduler struct {
	mu    sync.Mutex
	ready map[FilterID]bool
	owner map[FilterID]*Worker
}

// NewScheduler creates an empty shared scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		ready: make(map[FilterID]bool),
		owner: make(map[FilterID]*Worker),
	}
}

func (s *Scheduler) bind(id FilterID, w *Worker) {
	s.mu.Lock()
	s.owner[id] = w
	s.ready[id] = true
	s.mu.Unlock()
}

func (s *Scheduler) isReady(id FilterID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready[id]
}

func (s *Scheduler) markNotReady(id FilterID) {
	s.mu.Lock()
	s.ready[id] = false
	s.mu.Unlock()
}

// markReady flags id as runnable and wakes the worker that owns it, if one
// is bound. id == 0 is the "no hint" sentinel and is ignored.
func (s *Scheduler) markReady(id FilterID) {
	if id == 0 {
		return
	}
	s.mu.Lock()
	s.ready[id] = true
	w := s.owner[id]
	s.mu.Unlock()
	if w != nil {
		w.wake()
	}
}

// Worker owns one goroutine and a fixed set of filters ("processors" in
// spec §4.7 terminology). It repeatedly picks a ready filter in round-robin
// order, ticks it, and reacts to the tick's retry/enabled-job outcome.
// Grounded on internal/svc/relay.Manager's goroutine+context lifecycle,
// generalized from one goroutine per task to one goroutine ticking many
// filters.
type Worker struct {
	id            int
	sched         *Scheduler
	retryInterval time.Duration

	mu       sync.Mutex
	filters  map[FilterID]*BaseFilter
	order    []FilterID
	cursor   int
	lastTick map[FilterID]time.Time

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	retries atomic.Uint64
}

// RetryCount returns the number of ticks that returned Retry on this
// worker's filters since it started, for external instrumentation.
func (w *Worker) RetryCount() uint64 { return w.retries.Load() }

// NewWorker creates a worker bound to sched. retryInterval of zero selects
// DefaultRetryInterval.
func NewWorker(id int, sched *Scheduler, retryInterval time.Duration) *Worker {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Worker{
		id:            id,
		sched:         sched,
		retryInterval: retryInterval,
		filters:       make(map[FilterID]*BaseFilter),
		lastTick:      make(map[FilterID]time.Time),
		wakeCh:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
}

// ID returns the worker's ID.
func (w *Worker) ID() int { return w.id }

// Own binds a filter to this worker. A filter is bound to exactly one
// worker for its lifetime — this is what guarantees a filter is never
// ticked concurrently with itself (spec §5 invariant P4).
func (w *Worker) Own(f *BaseFilter) {
	w.mu.Lock()
	w.filters[f.ID()] = f
	w.order = append(w.order, f.ID())
	w.mu.Unlock()
	w.sched.bind(f.ID(), w)
}

// wake nudges the run loop out of its idle wait. Non-blocking: at most one
// pending wake is coalesced.
func (w *Worker) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Start launches the worker's run loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop signals the run loop to exit and waits for the in-flight tick (if
// any) to complete. No tick is ever preempted mid-transform (spec §5).
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		id, f := w.nextRunnable()
		if f == nil {
			select {
			case <-w.stopCh:
				return
			case <-w.wakeCh:
			case <-time.After(w.retryInterval):
			}
			continue
		}

		result := f.ProcessFrame()

		w.mu.Lock()
		w.lastTick[id] = timeNow()
		w.mu.Unlock()

		if result.Retry {
			w.retries.Inc()
			w.sched.markNotReady(id)
			interval := w.retryInterval
			time.AfterFunc(interval, func() { w.sched.markReady(id) })
		}

		for _, enabled := range result.EnabledJobs {
			w.sched.markReady(enabled)
		}
	}
}

// nextRunnable scans owned filters in round-robin order starting just past
// the last one picked, returning the first the scheduler reports ready. A
// periodic filter that was ticked less than retryInterval ago is skipped
// until its period elapses, even if otherwise marked ready.
func (w *Worker) nextRunnable() (FilterID, *BaseFilter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.order)
	for i := 0; i < n; i++ {
		idx := (w.cursor + i) % n
		id := w.order[idx]
		if !w.sched.isReady(id) {
			continue
		}
		f := w.filters[id]
		if f.Periodic() {
			if last, ok := w.lastTick[id]; ok && timeNow().Sub(last) < w.retryInterval {
				continue
			}
		}
		w.cursor = (idx + 1) % n
		return id, f
	}
	return 0, nil
}
