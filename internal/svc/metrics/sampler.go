package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mediaflow/internal/graph"
)

// Sampler periodically copies dataflow engine state into a Registry's
// collectors. Grounded on internal/svc/relay.Manager's context-driven
// goroutine loop, narrowed here to a single polling tick instead of a
// per-task dial loop.
//
// Dropped-frame and retry counts are cumulative inside the engine, but
// Prometheus counters only support monotonic Add, so the sampler tracks the
// last value seen per label and reports only the delta each tick.
type Sampler struct {
	reg      *Registry
	pm       *graph.PipelineManager
	label    string
	interval time.Duration

	mu          sync.Mutex
	lastDropped map[string]uint64
	lastRetries map[string]uint64
}

// NewSampler builds a sampler for one pipeline. label identifies the
// pipeline in the worker_retries_total metric (e.g. a stream key) since a
// process may run several pipelines at once.
func NewSampler(reg *Registry, pm *graph.PipelineManager, label string, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{
		reg:         reg,
		pm:          pm,
		label:       label,
		interval:    interval,
		lastDropped: make(map[string]uint64),
		lastRetries: make(map[string]uint64),
	}
}

// Run polls until ctx is cancelled. Intended to be launched with `go`.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.pm.Registry()
	for _, fid := range reg.List() {
		f := reg.Get(fid)
		if f == nil {
			continue
		}
		for writerID, stat := range f.WriterQueueStats() {
			queue := fmt.Sprintf("%s:%d->%d", s.label, fid, writerID)
			s.reg.QueueOccupied.WithLabelValues(queue).Set(float64(stat.Occupied))

			prev := s.lastDropped[queue]
			if stat.Dropped > prev {
				s.reg.QueueDropped.WithLabelValues(queue).Add(float64(stat.Dropped - prev))
			}
			s.lastDropped[queue] = stat.Dropped
		}
	}

	for _, w := range s.pm.Workers() {
		worker := fmt.Sprintf("%s:%d", s.label, w.ID())
		count := w.RetryCount()
		prev := s.lastRetries[worker]
		if count > prev {
			s.reg.WorkerRetries.WithLabelValues(worker).Add(float64(count - prev))
		}
		s.lastRetries[worker] = count
	}
}
