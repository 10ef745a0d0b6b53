package graph

import "sync"

// Path is an ordered chain of filter IDs: [source, f1, ..., fn, sink]
// (spec §4.8).
type Path struct {
	FilterIDs []FilterID
}

// NewPath builds a Path from the given filter IDs in order.
func NewPath(ids ...FilterID) *Path {
	return &Path{FilterIDs: ids}
}

// PipelineManager is the construction facade: it allocates filter IDs,
// connects filters into paths, and starts/stops the worker pool. Grounded
// on internal/svc/relay.Manager's StartTasks/Stop lifecycle and
// internal/server.Server's construction-time wiring.
type PipelineManager struct {
	registry *Registry
	sched    *Scheduler

	mu           sync.Mutex
	workers      []*Worker
	nextWorkerID int
	running      bool
}

// NewPipelineManager creates an empty pipeline with its own filter registry
// and scheduler.
func NewPipelineManager() *PipelineManager {
	return &PipelineManager{
		registry: NewRegistry(),
		sched:    NewScheduler(),
	}
}

// Registry returns the pipeline's filter registry.
func (p *PipelineManager) Registry() *Registry { return p.registry }

// Scheduler returns the pipeline's shared worker scheduler.
func (p *PipelineManager) Scheduler() *Scheduler { return p.sched }

// NewFilterID allocates an ID for a filter under construction. Callers
// build the BaseFilter with this ID (so MASTER/SLAVE lookups resolve
// correctly) and then call RegisterFilter.
func (p *PipelineManager) NewFilterID() FilterID { return p.registry.Allocate() }

// RegisterFilter records a constructed filter in the pipeline's registry.
func (p *PipelineManager) RegisterFilter(f *BaseFilter) { p.registry.Register(f) }

// LookupFilter resolves a FilterID to its BaseFilter, for wiring into
// NewBaseFilter's slave-lookup callback.
func (p *PipelineManager) LookupFilter(id FilterID) *BaseFilter { return p.registry.Get(id) }

// ConnectPath walks path's filter IDs, connecting each adjacent pair with a
// plain one-to-one connection. Fan-in/fan-out topologies are built directly
// with the filters' own ConnectManyToOne/ConnectOneToMany methods instead
// of a Path.
func (p *PipelineManager) ConnectPath(path *Path) bool {
	for i := 0; i+1 < len(path.FilterIDs); i++ {
		src := p.registry.Get(path.FilterIDs[i])
		dst := p.registry.Get(path.FilterIDs[i+1])
		if src == nil || dst == nil {
			return false
		}
		if !src.ConnectOneToOne(dst) {
			return false
		}
	}
	return true
}

// NewWorker creates a worker owning the given filters and registers it with
// the pipeline. The worker is not started until Start is called.
func (p *PipelineManager) NewWorker(filterIDs ...FilterID) *Worker {
	p.mu.Lock()
	id := p.nextWorkerID
	p.nextWorkerID++
	p.mu.Unlock()

	w := NewWorker(id, p.sched, 0)
	for _, fid := range filterIDs {
		if f := p.registry.Get(fid); f != nil {
			w.Own(f)
		}
	}

	p.mu.Lock()
	p.workers = append(p.workers, w)
	p.mu.Unlock()

	return w
}

// Start launches every worker created so far.
func (p *PipelineManager) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	for _, w := range p.workers {
		w.Start()
	}
}

// Stop signals every worker to drain and exit, then waits for them all.
func (p *PipelineManager) Stop() {
	p.mu.Lock()
	workers := append([]*Worker(nil), p.workers...)
	p.running = false
	p.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
}

// Workers returns the pipeline's workers, for external instrumentation.
func (p *PipelineManager) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Worker(nil), p.workers...)
}

// Running reports whether Start has been called without a matching Stop.
func (p *PipelineManager) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
