package graph

import (
	"log"
	"sync"
)

// Role governs a filter's per-tick shape (spec §3/§4.3).
type Role int

const (
	RoleMaster Role = iota
	RoleSlave
	RoleServer
	RoleNetwork
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	case RoleServer:
		return "server"
	case RoleNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// TickResult is what a ProcessFrame call reports to its Worker: whether the
// filter should be retried after a backoff, and which peer filters became
// runnable as a side effect of this tick's queue operations.
type TickResult struct {
	Retry       bool
	EnabledJobs []FilterID
}

// QueueAllocator supplies a FrameQueue sized for the media the source filter
// produces (spec §6's allocQueue contract). Filter types that know their own
// payload shape (e.g. a video encoder choosing a deeper buffer than an
// audio passthrough) implement this instead of using one default size.
type QueueAllocator interface {
	AllocQueue(src, dst FilterID, writerID int) *FrameQueue
}

// defaultAllocator hands out a fixed-capacity queue, used when a filter
// doesn't care about payload-specific sizing.
type defaultAllocator struct{ capacity uint32 }

func (a defaultAllocator) AllocQueue(src, dst FilterID, writerID int) *FrameQueue {
	return NewFrameQueue(a.capacity, src, dst)
}

// DefaultQueueCapacity is used by filters constructed without an explicit
// QueueAllocator.
const DefaultQueueCapacity = 16

// Shape fixes a filter's maxReaders/maxWriters and its frame-timing rule
// (spec §4.5). Concrete shapes live in shapes.go.
type Shape interface {
	MaxReaders() int
	MaxWriters() int
	RunDoProcessFrame(f *BaseFilter) bool
}

// Stateful is implemented by filter payloads that want to append
// filter-specific fields to introspection output (spec §6 doGetState).
type Stateful interface {
	DoGetState(out map[string]interface{})
}

// BaseFilter is a node in the dataflow graph. It owns its readers/writers,
// its event queue, its role, and implements the per-tick protocol described
// in spec §4.3. Grounded on original_source/src/Filter.cpp's BaseFilter.
type BaseFilter struct {
	id       FilterID
	role     Role
	periodic bool
	shape    Shape
	alloc    QueueAllocator

	lookup func(FilterID) *BaseFilter // registry lookup, for MASTER->SLAVE references

	rwMu       sync.Mutex
	maxReaders int
	maxWriters int
	readers    map[int]*Reader
	writers    map[int]*Writer

	frameTime int64 // microseconds; 0 = best-effort
	syncTs    int64

	lastOFrame map[int]*Frame // per-reader last staged frame, for reuse

	oFrames map[int]*Frame // origin frames staged this tick, by reader ID
	dFrames map[int]*Frame // destination frames staged this tick, by writer ID

	events  *EventQueue
	actions *actionTable

	slaveMu  sync.Mutex
	slaveIDs []FilterID

	processMu sync.Mutex
	process   bool
}

// NewBaseFilter constructs a filter of the given role and shape. lookup
// resolves a slave's FilterID to its BaseFilter for MASTER rendezvous; it
// may be nil for filters that never add slaves.
func NewBaseFilter(id FilterID, role Role, shape Shape, periodic bool, lookup func(FilterID) *BaseFilter) *BaseFilter {
	return &BaseFilter{
		id:         id,
		role:       role,
		shape:      shape,
		periodic:   periodic,
		lookup:     lookup,
		alloc:      defaultAllocator{capacity: DefaultQueueCapacity},
		maxReaders: shape.MaxReaders(),
		maxWriters: shape.MaxWriters(),
		readers:    make(map[int]*Reader),
		writers:    make(map[int]*Writer),
		lastOFrame: make(map[int]*Frame),
		oFrames:    make(map[int]*Frame),
		dFrames:    make(map[int]*Frame),
		events:     NewEventQueue(),
		actions:    newActionTable(),
	}
}

// ID returns the filter's unique registry ID.
func (f *BaseFilter) ID() FilterID { return f.id }

// Role returns the filter's role.
func (f *BaseFilter) Role() Role { return f.role }

// Periodic reports whether the worker should honor an inter-tick period for
// this filter.
func (f *BaseFilter) Periodic() bool { return f.periodic }

// SetQueueAllocator overrides the default fixed-size queue allocator.
func (f *BaseFilter) SetQueueAllocator(a QueueAllocator) { f.alloc = a }

// SetFrameTime sets the mixing window width. Zero selects best-effort mode.
func (f *BaseFilter) SetFrameTime(us int64) { f.frameTime = us }

// FrameTime returns the current frame-time setting.
func (f *BaseFilter) FrameTime() int64 { return f.frameTime }

// SyncTs returns the filter's current sync timestamp.
func (f *BaseFilter) SyncTs() int64 { return f.syncTs }

// SetSyncTs sets the sync timestamp directly; used by OneToOne's
// best-effort timestamping rule (spec §4.5).
func (f *BaseFilter) SetSyncTs(ts int64) { f.syncTs = ts }

// RegisterAction installs a handler for an event action name.
func (f *BaseFilter) RegisterAction(name string, h EventHandler) {
	f.actions.Register(name, h)
}

// PushEvent enqueues an event for later processing at the top of a tick.
// Head and Tail filters may go long stretches without a tick (no frames
// flowing), so per spec §4.6 they process events synchronously inside
// PushEvent instead of waiting for one.
func (f *BaseFilter) PushEvent(e *Event) {
	if f.shape != nil {
		if _, isHead := f.shape.(*HeadShape); isHead {
			f.actions.Dispatch(e)
			return
		}
		if _, isTail := f.shape.(*TailShape); isTail {
			f.actions.Dispatch(e)
			return
		}
	}
	f.events.Push(e)
}

// processEvents drains and dispatches every event whose timestamp has
// arrived (spec §4.3 step 1, §4.6).
func (f *BaseFilter) processEvents() {
	for _, e := range f.events.DrainReady(timeNow()) {
		f.actions.Dispatch(e)
	}
}

// Readers/Writers/OFrames/DFrames expose the current tick's maps read-only,
// for use by Shape implementations.
func (f *BaseFilter) OFrames() map[int]*Frame { return f.oFrames }
func (f *BaseFilter) DFrames() map[int]*Frame { return f.dFrames }

// generateReaderID/generateWriterID mint a fresh, unused local ID. Single
// slot shapes (maxReaders==1 or maxWriters==1) always use DefaultID so that
// callers can use connections without caring about ID allocation.
const DefaultID = 0

func (f *BaseFilter) generateReaderID() int {
	if f.maxReaders == 1 {
		return DefaultID
	}
	id := 1
	for {
		if _, exists := f.readers[id]; !exists {
			return id
		}
		id++
	}
}

func (f *BaseFilter) generateWriterID() int {
	if f.maxWriters == 1 {
		return DefaultID
	}
	id := 1
	for {
		if _, exists := f.writers[id]; !exists {
			return id
		}
		id++
	}
}

// readerSlotFree reports whether readerID is available for a new
// connection (capacity allows it, and it's not already occupied by a
// connected reader). Must be called with rwMu held.
func (f *BaseFilter) readerSlotFree(readerID int) bool {
	if r, exists := f.readers[readerID]; exists {
		return !r.Connected()
	}
	return len(f.readers) < f.maxReaders
}

func (f *BaseFilter) writerSlotFree(writerID int) bool {
	if _, exists := f.writers[writerID]; exists {
		return false
	}
	return len(f.writers) < f.maxWriters
}

// Connect wires f (as producer) to dst (as consumer) using the given writer
// and reader IDs. It implements the fixed ordering from spec §9's Open
// Question: every precondition (capacity, uniqueness, peer availability) is
// validated before anything is allocated, and the Writer is constructed
// only once the reader has accepted the queue — so a failed connect leaves
// neither side holding a half-built peer.
func (f *BaseFilter) Connect(dst *BaseFilter, writerID, readerID int) bool {
	dst.rwMu.Lock()
	readerOK := dst.readerSlotFree(readerID)
	dst.rwMu.Unlock()
	if !readerOK {
		log.Printf("graph: filter %d reader %d unavailable for connect", dst.id, readerID)
		return false
	}

	f.rwMu.Lock()
	writerOK := f.writerSlotFree(writerID)
	f.rwMu.Unlock()
	if !writerOK {
		log.Printf("graph: filter %d writer %d unavailable for connect", f.id, writerID)
		return false
	}

	queue := f.alloc.AllocQueue(f.id, dst.id, writerID)
	if queue == nil {
		log.Printf("graph: filter %d failed to allocate queue for writer %d", f.id, writerID)
		return false
	}

	reader := NewReader(readerID)
	reader.SetQueue(queue)

	dst.rwMu.Lock()
	if !dst.readerSlotFree(readerID) {
		dst.rwMu.Unlock()
		return false
	}
	dst.readers[readerID] = reader
	dst.rwMu.Unlock()

	writer := NewWriter(writerID)
	if !writer.Connect(reader) {
		dst.rwMu.Lock()
		delete(dst.readers, readerID)
		dst.rwMu.Unlock()
		return false
	}

	f.rwMu.Lock()
	if !f.writerSlotFree(writerID) {
		f.rwMu.Unlock()
		writer.Disconnect()
		dst.rwMu.Lock()
		delete(dst.readers, readerID)
		dst.rwMu.Unlock()
		return false
	}
	f.writers[writerID] = writer
	f.rwMu.Unlock()

	return true
}

// ConnectOneToOne allocates fresh reader/writer IDs on both sides.
func (f *BaseFilter) ConnectOneToOne(dst *BaseFilter) bool {
	f.rwMu.Lock()
	wID := f.generateWriterID()
	f.rwMu.Unlock()
	dst.rwMu.Lock()
	rID := dst.generateReaderID()
	dst.rwMu.Unlock()
	return f.Connect(dst, wID, rID)
}

// ConnectManyToOne connects f's writerID to a fresh reader ID on dst (a
// ManyToOne filter with a single writer but many readers attaching to it).
func (f *BaseFilter) ConnectManyToOne(dst *BaseFilter, writerID int) bool {
	dst.rwMu.Lock()
	rID := dst.generateReaderID()
	dst.rwMu.Unlock()
	return f.Connect(dst, writerID, rID)
}

// ConnectOneToMany connects a fresh writer ID on f to dst's readerID (f is a
// OneToMany filter fanning out to several single-reader destinations).
func (f *BaseFilter) ConnectOneToMany(dst *BaseFilter, readerID int) bool {
	f.rwMu.Lock()
	wID := f.generateWriterID()
	f.rwMu.Unlock()
	return f.Connect(dst, wID, readerID)
}

// DisconnectWriter tears down one writer connection.
func (f *BaseFilter) DisconnectWriter(writerID int) bool {
	f.rwMu.Lock()
	defer f.rwMu.Unlock()
	w, exists := f.writers[writerID]
	if !exists {
		return false
	}
	w.Disconnect()
	delete(f.writers, writerID)
	return true
}

// DisconnectReader tears down one reader connection.
func (f *BaseFilter) DisconnectReader(readerID int) bool {
	f.rwMu.Lock()
	defer f.rwMu.Unlock()
	r, exists := f.readers[readerID]
	if !exists {
		return false
	}
	r.Disconnect()
	delete(f.readers, readerID)
	return true
}

// DisconnectAll tears down every reader and writer, used on teardown.
func (f *BaseFilter) DisconnectAll() {
	f.rwMu.Lock()
	defer f.rwMu.Unlock()
	for id, w := range f.writers {
		w.Disconnect()
		delete(f.writers, id)
	}
	for id, r := range f.readers {
		r.Disconnect()
		delete(f.readers, id)
	}
}

// writerByID returns the writer bound to id, or nil. Safe for concurrent
// use; takes the readers/writers lock briefly.
func (f *BaseFilter) writerByID(id int) *Writer {
	f.rwMu.Lock()
	defer f.rwMu.Unlock()
	return f.writers[id]
}

// AddSlave registers a SLAVE filter under this (MASTER) filter. Slaves are
// referenced by ID into the registry, not by owning pointer (spec §9
// design note), resolved lazily through f.lookup at tick time.
func (f *BaseFilter) AddSlave(slave *BaseFilter) bool {
	if slave.role != RoleSlave {
		log.Printf("graph: cannot add non-slave filter %d as slave", slave.id)
		return false
	}
	f.slaveMu.Lock()
	defer f.slaveMu.Unlock()
	for _, id := range f.slaveIDs {
		if id == slave.id {
			return false
		}
	}
	f.slaveIDs = append(f.slaveIDs, slave.id)
	return true
}

func (f *BaseFilter) setProcess(v bool) {
	f.processMu.Lock()
	f.process = v
	f.processMu.Unlock()
}

func (f *BaseFilter) getProcess() bool {
	f.processMu.Lock()
	v := f.process
	f.processMu.Unlock()
	return v
}

// updateFrames installs the MASTER's oFrames snapshot onto this SLAVE ahead
// of its forced tick.
func (f *BaseFilter) updateFrames(snapshot map[int]*Frame) {
	cp := make(map[int]*Frame, len(snapshot))
	for k, v := range snapshot {
		cp[k] = v
	}
	f.oFrames = cp
}

// demandOriginFrames applies the best-effort or frame-time mixing policy
// (spec §4.4) to stage this tick's oFrames from every connected reader.
func (f *BaseFilter) demandOriginFrames() bool {
	if f.maxReaders == 0 {
		return true
	}

	f.rwMu.Lock()
	defer f.rwMu.Unlock()

	if len(f.readers) == 0 {
		return false
	}

	if f.frameTime <= 0 {
		return f.demandOriginFramesBestEffort()
	}
	return f.demandOriginFramesFrameTime()
}

func (f *BaseFilter) demandOriginFramesBestEffort() bool {
	someFrame := false
	for id, r := range f.readers {
		q := r.Queue()
		if q == nil {
			continue
		}
		frame := q.GetFront(false)
		for frame != nil && frame.PresentationTime < f.syncTs {
			q.RemoveFrame()
			frame = q.GetFront(false)
		}

		if frame == nil {
			if prev := f.lastOFrame[id]; prev != nil {
				prev.Consumed = false
				f.oFrames[id] = prev
			}
			continue
		}

		frame.Consumed = true
		f.oFrames[id] = frame
		f.lastOFrame[id] = frame
		someFrame = true
	}
	return someFrame
}

func (f *BaseFilter) demandOriginFramesFrameTime() bool {
	const noOutOfScope = int64(-1)
	outOfScopeTs := noOutOfScope
	noFrame := true

	for id, r := range f.readers {
		q := r.Queue()
		if q == nil {
			continue
		}
		frame := q.GetFront(false)
		for frame != nil && frame.PresentationTime < f.syncTs {
			q.RemoveFrame()
			frame = q.GetFront(false)
		}

		if frame == nil {
			if prev := f.lastOFrame[id]; prev != nil {
				prev.Consumed = false
				f.oFrames[id] = prev
			}
			continue
		}

		if frame.PresentationTime >= f.syncTs+f.frameTime {
			frame.Consumed = false
			f.oFrames[id] = frame
			f.lastOFrame[id] = frame
			if outOfScopeTs == noOutOfScope || frame.PresentationTime < outOfScopeTs {
				outOfScopeTs = frame.PresentationTime
			}
			continue
		}

		frame.Consumed = true
		f.oFrames[id] = frame
		f.lastOFrame[id] = frame
		noFrame = false
	}

	if noFrame {
		if outOfScopeTs != noOutOfScope {
			f.syncTs = outOfScopeTs
		}
		return false
	}

	f.syncTs += f.frameTime
	return true
}

// demandDestinationFrames reserves the rear slot of every connected
// writer's queue, reaping disconnected writers along the way (spec §4.3
// step 3, §4.2).
func (f *BaseFilter) demandDestinationFrames() bool {
	if f.maxWriters == 0 {
		return true
	}

	f.rwMu.Lock()
	defer f.rwMu.Unlock()

	newFrame := false
	for id, w := range f.writers {
		if !w.Connected() {
			delete(f.writers, id)
			continue
		}

		fr := w.Queue().GetRear(true)
		fr.Consumed = false
		f.dFrames[id] = fr
		newFrame = true
	}

	return newFrame
}

// addFrames commits every destination frame the transform marked consumed,
// returning the enabled-job hints from each queue's AddFrame call.
func (f *BaseFilter) addFrames() []FilterID {
	f.rwMu.Lock()
	defer f.rwMu.Unlock()

	var enabled []FilterID
	for id, fr := range f.dFrames {
		if !fr.Consumed {
			continue
		}
		w, ok := f.writers[id]
		if !ok || !w.Connected() {
			continue
		}
		if hint := w.Queue().AddFrame(); hint != 0 {
			enabled = append(enabled, hint)
		}
	}
	return enabled
}

// removeFrames releases every origin frame the transform marked consumed,
// returning the enabled-job hints from each queue's RemoveFrame call.
func (f *BaseFilter) removeFrames() []FilterID {
	var enabled []FilterID
	if f.maxReaders == 0 {
		return enabled
	}

	f.rwMu.Lock()
	defer f.rwMu.Unlock()

	for id, r := range f.readers {
		fr, ok := f.oFrames[id]
		if !ok || fr == nil || !fr.Consumed {
			continue
		}
		if q := r.Queue(); q != nil {
			if hint := q.RemoveFrame(); hint != 0 {
				enabled = append(enabled, hint)
			}
		}
	}
	return enabled
}

// ProcessFrame runs one tick, dispatched by role (spec §4.3).
func (f *BaseFilter) ProcessFrame() TickResult {
	switch f.role {
	case RoleMaster:
		return f.masterTick()
	case RoleSlave:
		return f.slaveTick()
	case RoleServer:
		return f.serverTick()
	case RoleNetwork:
		return f.networkTick()
	default:
		return TickResult{}
	}
}

func (f *BaseFilter) masterTick() TickResult {
	f.processEvents()

	if !f.demandOriginFrames() {
		return TickResult{Retry: true}
	}
	if !f.demandDestinationFrames() {
		return TickResult{Retry: true}
	}

	wg := f.runSlaves()

	f.shape.RunDoProcessFrame(f)

	wg.Wait() // rendezvous: commit only once every slave has cleared process

	enabled := f.addFrames()
	enabled = append(enabled, f.removeFrames()...)

	return TickResult{EnabledJobs: enabled}
}

// runSlaves delivers the current oFrames snapshot to every slave and runs
// each slave's tick to completion in its own goroutine, returning a
// WaitGroup the master waits on before committing (spec §9: a WaitGroup
// signal from each slave is used in place of the original's busy-wait
// sleep loop).
func (f *BaseFilter) runSlaves() *sync.WaitGroup {
	wg := &sync.WaitGroup{}
	if f.lookup == nil {
		return wg
	}

	f.slaveMu.Lock()
	ids := append([]FilterID(nil), f.slaveIDs...)
	f.slaveMu.Unlock()

	for _, id := range ids {
		slave := f.lookup(id)
		if slave == nil {
			continue
		}
		slave.updateFrames(f.oFrames)
		slave.setProcess(true)

		wg.Add(1)
		go func(s *BaseFilter) {
			defer wg.Done()
			s.slaveTick()
		}(slave)
	}
	return wg
}

func (f *BaseFilter) slaveTick() TickResult {
	if !f.getProcess() {
		return TickResult{Retry: true}
	}

	f.processEvents()

	if !f.demandDestinationFrames() {
		return TickResult{Retry: true}
	}

	f.shape.RunDoProcessFrame(f)

	enabled := f.addFrames()
	f.setProcess(false)

	return TickResult{EnabledJobs: enabled}
}

func (f *BaseFilter) serverTick() TickResult {
	f.processEvents()
	f.demandOriginFrames()
	f.demandDestinationFrames()

	f.shape.RunDoProcessFrame(f)

	enabled := f.addFrames()
	enabled = append(enabled, f.removeFrames()...)

	return TickResult{EnabledJobs: enabled}
}

func (f *BaseFilter) networkTick() TickResult {
	f.shape.RunDoProcessFrame(f)
	return TickResult{}
}

// QueueStat summarizes one queue's current occupancy and cumulative drop
// count, for external instrumentation (spec ambient stack: /metrics).
type QueueStat struct {
	Occupied uint32
	Dropped  uint64
}

// WriterQueueStats snapshots every connected writer's queue, keyed by writer
// ID within this filter.
func (f *BaseFilter) WriterQueueStats() map[int]QueueStat {
	f.rwMu.Lock()
	defer f.rwMu.Unlock()
	out := make(map[int]QueueStat, len(f.writers))
	for id, w := range f.writers {
		if q := w.Queue(); q != nil {
			out[id] = QueueStat{Occupied: q.Occupied(), Dropped: q.Dropped()}
		}
	}
	return out
}

// GetState emits introspection data: type/role plus whatever the filter's
// shape transform contributes via Stateful.
func (f *BaseFilter) GetState() map[string]interface{} {
	out := map[string]interface{}{
		"role": f.role.String(),
	}
	if s, ok := f.shape.(Stateful); ok {
		s.DoGetState(out)
	}
	return out
}
