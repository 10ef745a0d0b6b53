package transcode

import (
	"mediaflow/internal/core/bus"
	"mediaflow/internal/graph"
)

// Task owns one running decode/encode pipeline for a group of profiles that
// share a source stream.
type Task struct {
	src    *bus.Stream
	sub    *bus.Subscriber
	subID  uint64
	pm     *graph.PipelineManager
	outs   []*bus.Stream
	srcKey bus.StreamKey
}

// Stop tears the pipeline down: stops its worker and detaches the ingest
// subscriber. Output streams stay registered.
func (t *Task) Stop() error {
	t.pm.Stop()
	t.src.DetachSubscriber(t.subID)
	return nil
}

// Pipeline returns the task's graph.PipelineManager, for external
// instrumentation (e.g. a metrics sampler).
func (t *Task) Pipeline() *graph.PipelineManager { return t.pm }

// Label identifies this task's source stream for instrumentation.
func (t *Task) Label() string { return t.srcKey.App + "/" + t.srcKey.Name }
