// The API exposes server state and relay control without blocking media paths.

package api

import (
	"net/http"
	"time"

	"mediaflow/internal/core/bus"
	"mediaflow/internal/svc/relay"
)

// Service provides HTTP API functionality.
type Service struct {
	registry    *bus.Registry
	relayMgr    RelayManager
	eventRouter EventRouter
	startTime   int64
}

// RelayManager defines the interface for relay management.
// This allows the API to work with relay manager without tight coupling.
type RelayManager interface {
	TaskCount() int
	GetTasks() []relay.TaskInfo
	// NOTE: Restart functionality would be added here
	// For now, we only expose read-only access
}

// RelayTaskInfo represents information about a relay task for API responses.
type RelayTaskInfo struct {
	App       string `json:"app"`
	Name      string `json:"name"`
	Mode      string `json:"mode"`
	RemoteURL string `json:"remote_url"`
	Running   bool   `json:"running"`
}

// NewService creates a new API service.
func NewService(registry *bus.Registry, relayMgr RelayManager) *Service {
	return &Service{
		registry:  registry,
		relayMgr:  relayMgr,
		startTime: getCurrentTime(),
	}
}

// SetEventRouter wires the pipeline lookup /api/events needs to reach a
// specific filter. Left nil, handleEvents reports 503.
func (s *Service) SetEventRouter(r EventRouter) {
	s.eventRouter = r
}

// RegisterRoutes registers API routes on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	// API routes
	mux.HandleFunc("/api/server", s.handleServer)
	mux.HandleFunc("/api/streams", s.handleStreams)
	mux.HandleFunc("/api/relay", s.handleRelay)
	mux.HandleFunc("/api/relay/restart", s.handleRelayRestart)
	mux.HandleFunc("/api/events", s.handleEvents)
}

// getCurrentTime returns current Unix timestamp.
// Extracted for testability.
func getCurrentTime() int64 {
	return time.Now().Unix()
}
