package record

import (
	"fmt"
	"sync"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/core/bus"
)

// Manager manages archival tasks: one ingest/archive pipeline per
// configured stream.
type Manager struct {
	registry *bus.Registry

	mu    sync.Mutex
	tasks []*Task
}

// NewManager creates a record manager bound to the server's stream
// registry.
func NewManager(registry *bus.Registry) *Manager {
	return &Manager{registry: registry}
}

// StartTasks starts one archival pipeline per configured stream. startedAt
// is stamped into each output file's name so restarts don't overwrite a
// prior recording.
func (m *Manager) StartTasks(cfg *config.Config, startedAt time.Time) error {
	if cfg == nil || cfg.Record == nil || !cfg.Record.Enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range cfg.Record.Streams {
		if s.App == "" || s.Stream == "" {
			return fmt.Errorf("record stream missing app or stream")
		}
		dir := s.Dir
		if dir == "" {
			dir = cfg.Record.Dir
		}
		if dir == "" {
			return fmt.Errorf("record stream %s/%s has no output directory configured", s.App, s.Stream)
		}

		key := bus.NewStreamKey(s.App, s.Stream)
		task, err := startTask(m.registry, key, dir, startedAt)
		if err != nil {
			return fmt.Errorf("record: start pipeline for %s: %w", key, err)
		}
		m.tasks = append(m.tasks, task)
	}

	return nil
}

// Stop stops every running archival pipeline.
func (m *Manager) Stop() error {
	m.mu.Lock()
	tasks := append([]*Task(nil), m.tasks...)
	m.tasks = nil
	m.mu.Unlock()

	var firstErr error
	for _, t := range tasks {
		if err := t.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TaskCount returns the number of active archival pipelines.
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
