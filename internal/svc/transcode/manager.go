package transcode

import (
	"fmt"
	"sync"

	"mediaflow/internal/config"
	"mediaflow/internal/core/bus"
	"mediaflow/internal/graph"
)

// Manager manages transcoding tasks: one decode-once/encode-many graph
// pipeline per source stream that has configured profiles.
type Manager struct {
	registry *bus.Registry

	mu    sync.Mutex
	tasks []*Task
}

// NewManager creates a new transcode manager bound to the server's stream
// registry; pipelines attach to source streams and publish onto new ones
// through this same registry.
func NewManager(registry *bus.Registry) *Manager {
	return &Manager{registry: registry}
}

// StartTasks groups configured profiles by source stream and starts one
// pipeline per group.
func (m *Manager) StartTasks(cfg *config.Config) error {
	if cfg == nil || cfg.Transcode == nil || !cfg.Transcode.Enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	groups := make(map[bus.StreamKey][]config.TranscodeProfile)
	var order []bus.StreamKey
	for _, p := range cfg.Transcode.Profiles {
		if p.App == "" || p.Stream == "" || p.Name == "" {
			return fmt.Errorf("transcode profile missing app, stream, or name")
		}
		key := bus.NewStreamKey(p.App, p.Stream)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	for _, key := range order {
		srcStream, _ := m.registry.GetOrCreate(key)

		var targets []profileTarget
		var outs []*bus.Stream
		for _, p := range groups[key] {
			outKey := bus.NewStreamKey(p.App, p.Stream+"_"+p.Name)
			outStream, _ := m.registry.GetOrCreate(outKey)
			targets = append(targets, profileTarget{name: p.Name, out: outStream})
			outs = append(outs, outStream)
		}

		pm := graph.NewPipelineManager()
		sub, subID, err := buildPipeline(pm, srcStream, targets)
		if err != nil {
			return fmt.Errorf("transcode: start pipeline for %s: %w", key, err)
		}

		m.tasks = append(m.tasks, &Task{
			src:    srcStream,
			sub:    sub,
			subID:  subID,
			pm:     pm,
			outs:   outs,
			srcKey: key,
		})
	}

	return nil
}

// Stop stops every running pipeline.
func (m *Manager) Stop() error {
	m.mu.Lock()
	tasks := append([]*Task(nil), m.tasks...)
	m.tasks = nil
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	return nil
}

// TaskCount returns the number of active transcoding pipelines.
func (m *Manager) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Tasks returns a snapshot of the manager's active tasks, for external
// instrumentation.
func (m *Manager) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Task(nil), m.tasks...)
}
