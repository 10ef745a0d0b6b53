package record

import (
	"fmt"
	"path/filepath"
	"time"

	"mediaflow/internal/core/bus"
	"mediaflow/internal/graph"
)

// Task owns one running archival pipeline: a subscriber on a source stream,
// a two-filter graph pipeline (ingest -> archive), and the file it writes
// to.
type Task struct {
	src   *bus.Stream
	sub   *bus.Subscriber
	subID uint64
	pm    *graph.PipelineManager
	tail  *ArchiveTail
	path  string
}

// startTask wires a recordHead into an ArchiveTail and starts the worker
// that drives them. dir/app/stream name the output file; startedAt lets
// callers avoid clobbering a prior recording of the same stream.
func startTask(registry *bus.Registry, key bus.StreamKey, dir string, startedAt time.Time) (*Task, error) {
	src, _ := registry.GetOrCreate(key)
	sub, subID := src.AttachSubscriber(256, bus.BackpressureDropOldest)

	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%d.zst", key.App, key.Name, startedAt.Unix()))
	tail, err := NewArchiveTail(path)
	if err != nil {
		src.DetachSubscriber(subID)
		return nil, err
	}

	pm := graph.NewPipelineManager()

	ingestID := pm.NewFilterID()
	ingest := graph.NewBaseFilter(ingestID, graph.RoleMaster, graph.NewHeadShape(1, &recordHead{sub: sub}), false, nil)
	pm.RegisterFilter(ingest)

	sinkID := pm.NewFilterID()
	sink := graph.NewBaseFilter(sinkID, graph.RoleMaster, graph.NewTailShape(1, tail), false, nil)
	pm.RegisterFilter(sink)

	if !ingest.ConnectOneToOne(sink) {
		tail.Close()
		src.DetachSubscriber(subID)
		return nil, fmt.Errorf("record: connect ingest to archive failed for %s/%s", key.App, key.Name)
	}

	pm.NewWorker(ingestID, sinkID)
	pm.Start()

	return &Task{src: src, sub: sub, subID: subID, pm: pm, tail: tail, path: path}, nil
}

// Stop tears the pipeline down and closes the archive file.
func (t *Task) Stop() error {
	t.pm.Stop()
	t.src.DetachSubscriber(t.subID)
	return t.tail.Close()
}

// Path returns the archive file this task is writing.
func (t *Task) Path() string { return t.path }

// Pipeline returns the task's graph.PipelineManager, for external
// instrumentation (e.g. a metrics sampler).
func (t *Task) Pipeline() *graph.PipelineManager { return t.pm }

// Label identifies this task's archive file for instrumentation.
func (t *Task) Label() string { return t.path }
