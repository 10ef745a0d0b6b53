package graph

// Transform* are the filter-transform contract consumed by adapter code
// (spec §6). Exactly one of these is implemented per filter shape — a small
// trait/interface set standing in for the original's virtual
// runDoProcessFrame hierarchy (spec §9 design note).
type (
	TransformHead interface {
		DoProcessFrame(destinations map[int]*Frame) bool
	}
	TransformTail interface {
		DoProcessFrame(origins map[int]*Frame) bool
	}
	Transform1To1 interface {
		DoProcessFrame(origin, destination *Frame) bool
	}
	Transform1ToN interface {
		DoProcessFrame(origin *Frame, destinations map[int]*Frame) bool
	}
	TransformNTo1 interface {
		DoProcessFrame(origins map[int]*Frame, destination *Frame) bool
	}
)

func firstFrame(m map[int]*Frame) *Frame {
	for _, f := range m {
		return f
	}
	return nil
}

func maybeState(v interface{}, out map[string]interface{}) {
	if s, ok := v.(Stateful); ok {
		s.DoGetState(out)
	}
}

// HeadShape: 0 readers, N writers. Sequence numbers come from a per-writer
// counter; presentation time is the transform's responsibility.
type HeadShape struct {
	Writers   int
	Transform TransformHead
}

func NewHeadShape(writers int, t TransformHead) *HeadShape {
	return &HeadShape{Writers: writers, Transform: t}
}

func (s *HeadShape) MaxReaders() int { return 0 }
func (s *HeadShape) MaxWriters() int { return s.Writers }

func (s *HeadShape) RunDoProcessFrame(f *BaseFilter) bool {
	if !s.Transform.DoProcessFrame(f.dFrames) {
		return false
	}
	for id, fr := range f.dFrames {
		if w := f.writerByID(id); w != nil {
			fr.SequenceNumber = w.NextSequenceNumber()
		}
	}
	return true
}

func (s *HeadShape) DoGetState(out map[string]interface{}) { maybeState(s.Transform, out) }

// TailShape: N readers, 0 writers. Consumes only, no outputs.
type TailShape struct {
	Readers   int
	Transform TransformTail
}

func NewTailShape(readers int, t TransformTail) *TailShape {
	return &TailShape{Readers: readers, Transform: t}
}

func (s *TailShape) MaxReaders() int { return s.Readers }
func (s *TailShape) MaxWriters() int { return 0 }

func (s *TailShape) RunDoProcessFrame(f *BaseFilter) bool {
	return s.Transform.DoProcessFrame(f.oFrames)
}

func (s *TailShape) DoGetState(out map[string]interface{}) { maybeState(s.Transform, out) }

// OneToOneShape: 1 reader, 1 writer. In best-effort mode the output
// presentation time tracks the input's (and updates syncTs); in mixing mode
// it uses the filter's syncTs. Duration and sequence number are always
// copied from the input.
type OneToOneShape struct {
	Transform Transform1To1
}

func NewOneToOneShape(t Transform1To1) *OneToOneShape {
	return &OneToOneShape{Transform: t}
}

func (s *OneToOneShape) MaxReaders() int { return 1 }
func (s *OneToOneShape) MaxWriters() int { return 1 }

func (s *OneToOneShape) RunDoProcessFrame(f *BaseFilter) bool {
	origin := firstFrame(f.oFrames)
	dest := firstFrame(f.dFrames)
	if origin == nil || dest == nil {
		return false
	}
	if !s.Transform.DoProcessFrame(origin, dest) {
		return false
	}

	var outTs int64
	if f.FrameTime() <= 0 {
		outTs = origin.PresentationTime
		f.SetSyncTs(outTs)
	} else {
		outTs = f.SyncTs()
	}

	dest.PresentationTime = outTs
	dest.Duration = origin.Duration
	dest.SequenceNumber = origin.SequenceNumber
	return true
}

func (s *OneToOneShape) DoGetState(out map[string]interface{}) { maybeState(s.Transform, out) }

// OneToManyShape: 1 reader, N writers. Sequence number is copied from the
// input to every output.
type OneToManyShape struct {
	Writers   int
	Transform Transform1ToN
}

func NewOneToManyShape(writers int, t Transform1ToN) *OneToManyShape {
	return &OneToManyShape{Writers: writers, Transform: t}
}

func (s *OneToManyShape) MaxReaders() int { return 1 }
func (s *OneToManyShape) MaxWriters() int { return s.Writers }

func (s *OneToManyShape) RunDoProcessFrame(f *BaseFilter) bool {
	origin := firstFrame(f.oFrames)
	if origin == nil {
		return false
	}
	if !s.Transform.DoProcessFrame(origin, f.dFrames) {
		return false
	}
	for _, fr := range f.dFrames {
		fr.SequenceNumber = origin.SequenceNumber
	}
	return true
}

func (s *OneToManyShape) DoGetState(out map[string]interface{}) { maybeState(s.Transform, out) }

// ManyToOneShape: N readers, 1 writer. Sequence number comes from the
// (single) writer's own counter.
type ManyToOneShape struct {
	Readers   int
	Transform TransformNTo1
}

func NewManyToOneShape(readers int, t TransformNTo1) *ManyToOneShape {
	return &ManyToOneShape{Readers: readers, Transform: t}
}

func (s *ManyToOneShape) MaxReaders() int { return s.Readers }
func (s *ManyToOneShape) MaxWriters() int { return 1 }

func (s *ManyToOneShape) RunDoProcessFrame(f *BaseFilter) bool {
	dest := firstFrame(f.dFrames)
	if dest == nil {
		return false
	}
	if !s.Transform.DoProcessFrame(f.oFrames, dest) {
		return false
	}
	if w := f.writerByID(DefaultID); w != nil {
		dest.SequenceNumber = w.NextSequenceNumber()
	}
	return true
}

func (s *ManyToOneShape) DoGetState(out map[string]interface{}) { maybeState(s.Transform, out) }
