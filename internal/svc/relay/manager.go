// Manages lifecycle of all relay tasks (start, stop).

package relay

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"

	"mediaflow/internal/config"
	"mediaflow/internal/core/bus"
)

// TaskInfo is a snapshot of one relay task's configuration and state, for
// the HTTP API to report without exposing the Task interface itself.
type TaskInfo struct {
	App       string
	Name      string
	Mode      string
	RemoteURL string
	Running   bool
}

// taskEntry pairs a running Task with the configuration it was built from,
// since the Task interface itself exposes no mode/remote-URL accessors.
type taskEntry struct {
	task Task
	cfg  config.RelayConfig
}

// Manager manages relay tasks lifecycle.
type Manager struct {
	registry *bus.Registry
	tasks    []taskEntry
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// NewManager creates a new relay manager.
func NewManager(registry *bus.Registry) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: registry,
		tasks:    make([]taskEntry, 0),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// StartTasks starts all relay tasks from configuration.
func (m *Manager) StartTasks(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, relayCfg := range cfg.Relays {
		// Validate configuration
		if relayCfg.App == "" || relayCfg.Name == "" {
			return errors.New("relay config missing app or name")
		}
		if relayCfg.Mode != "pull" && relayCfg.Mode != "push" {
			return errors.Errorf("invalid relay mode: %s (must be 'pull' or 'push')", relayCfg.Mode)
		}
		if relayCfg.RemoteURL == "" {
			return errors.New("relay config missing remote_url")
		}

		var task Task
		if relayCfg.Mode == "pull" {
			task = NewPullTask(m.registry, relayCfg.App, relayCfg.Name, relayCfg.RemoteURL, relayCfg.Reconnect)
		} else {
			task = NewPushTask(m.registry, relayCfg.App, relayCfg.Name, relayCfg.RemoteURL, relayCfg.Reconnect)
		}

		m.tasks = append(m.tasks, taskEntry{task: task, cfg: relayCfg})

		// Start task in goroutine
		m.wg.Add(1)
		go func(t Task) {
			defer m.wg.Done()
			if err := t.Start(m.ctx); err != nil && m.ctx.Err() == nil {
				log.Printf("relay task %s/%s exited: %v", relayCfg.App, relayCfg.Name, errors.WithStack(err))
			}
		}(task)
	}

	return nil
}

// Stop cancels every task's context and waits for its goroutine to return.
// A task that ignores cancellation blocks Stop — callers that need a hard
// deadline should race this against their own context timeout.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Cancel context to signal all tasks to stop
	m.cancel()

	// Stop all tasks
	for _, entry := range m.tasks {
		entry.task.Stop()
	}

	// Wait for all tasks to finish
	m.wg.Wait()
	return nil
}

// TaskCount returns the number of active relay tasks.
func (m *Manager) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// GetTasks returns a snapshot of every relay task's configuration and
// current running state, for the HTTP API.
func (m *Manager) GetTasks() []TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]TaskInfo, 0, len(m.tasks))
	for _, entry := range m.tasks {
		infos = append(infos, TaskInfo{
			App:       entry.cfg.App,
			Name:      entry.cfg.Name,
			Mode:      entry.cfg.Mode,
			RemoteURL: entry.cfg.RemoteURL,
			Running:   entry.task.IsRunning(),
		})
	}
	return infos
}
