package transcode

import (
	"mediaflow/internal/core/bus"
	"mediaflow/internal/graph"
)

// ingestHead pulls queued tags off a bus subscriber and stages them as
// frames entering the pipeline. Grounded on bus.Subscriber's non-blocking
// Buffer().Read() poll (the same one Subscriber.Process uses), adapted to
// the Head shape's DoProcessFrame contract: "no frame ready" becomes a
// retryable false instead of a loop iteration.
type ingestHead struct {
	sub *bus.Subscriber
}

func (h *ingestHead) DoProcessFrame(dest map[int]*graph.Frame) bool {
	msg, ok := h.sub.Buffer().Read()
	if !ok {
		return false
	}
	fr := dest[graph.DefaultID]
	fr.PresentationTime = int64(msg.Timestamp) * 1000
	fr.Kind = uint8(msg.Type)
	fr.SetPayload(msg.Payload)
	fr.Consumed = true
	bus.ReleaseMessage(msg)
	return true
}

// publishTail republishes every committed frame it sees onto an output
// stream, re-wrapping the pipeline's Frame back into a bus.MediaMessage so
// the existing rtmp/httpflv/wsflv servers can serve it unchanged.
type publishTail struct {
	out *bus.Stream
}

func (t *publishTail) DoProcessFrame(origins map[int]*graph.Frame) bool {
	fr := origins[graph.DefaultID]
	if fr == nil || !fr.Consumed {
		return true
	}
	msg := bus.AcquireMessage()
	msg.Type = bus.MessageType(fr.Kind)
	msg.Timestamp = uint32(fr.PresentationTime / 1000)
	msg.IsInit = fr.SequenceNumber == 0
	msg.SetPayload(fr.Payload)
	t.out.Publish(msg)
	return true
}

// profileEncode is the per-profile SLAVE transform. Without real codec
// bindings wired into this exercise (see DESIGN.md on internal/ffx), it
// repackages the decoded frame rather than re-encoding it — the same
// capability boundary the teacher's own !ffmpeg stub documented, now
// expressed as a real pipeline stage instead of a no-op.
type profileEncode struct {
	profileName string
}

func (p *profileEncode) DoProcessFrame(origin, dest *graph.Frame) bool {
	dest.SetPayload(origin.Payload)
	dest.Kind = origin.Kind
	dest.Consumed = true
	return true
}

func (p *profileEncode) DoGetState(out map[string]interface{}) {
	out["profile"] = p.profileName
}

// decodeTransform is the MASTER's own pass-through stage: it represents the
// single decode every profile's encode stage shares.
type decodeTransform struct{}

func (decodeTransform) DoProcessFrame(origin, dest *graph.Frame) bool {
	dest.SetPayload(origin.Payload)
	dest.Kind = origin.Kind
	dest.Consumed = true
	return true
}
