package server

import (
	"mediaflow/internal/graph"
	"mediaflow/internal/svc/record"
	"mediaflow/internal/svc/transcode"
)

// pipelineRouter implements api.EventRouter by scanning the transcode and
// record managers' active tasks for one whose label matches. Labels are
// small in number (one per running pipeline), so a linear scan beats
// maintaining a second indexed map in step with task lifecycle.
type pipelineRouter struct {
	transcodeMgr *transcode.Manager
	recordMgr    *record.Manager
}

func (r *pipelineRouter) Lookup(label string) *graph.PipelineManager {
	for _, t := range r.transcodeMgr.Tasks() {
		if t.Label() == label {
			return t.Pipeline()
		}
	}
	for _, t := range r.recordMgr.Tasks() {
		if t.Label() == label {
			return t.Pipeline()
		}
	}
	return nil
}
