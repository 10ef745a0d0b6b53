
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/core/bus"
	"mediaflow/internal/svc/api"
	"mediaflow/internal/svc/health"
	"mediaflow/internal/svc/httpflv"
	"mediaflow/internal/svc/metrics"
	"mediaflow/internal/svc/record"
	"mediaflow/internal/svc/relay"
	"mediaflow/internal/svc/rtmp"
	"mediaflow/internal/svc/transcode"
	"mediaflow/internal/svc/wsflv"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	healthSvc  *health.Service
	httpflvSvc *httpflv.Service
	wsflvSvc   *wsflv.Service
	rtmpServer *rtmp.Server
	registry   *bus.Registry

	relayMgr     *relay.Manager
	transcodeMgr *transcode.Manager
	recordMgr    *record.Manager
	metricsReg   *metrics.Registry

	samplerCancel context.CancelFunc
}

// New creates a new server instance with the given configuration.
// The server is not started until Start is called.
func New(cfg *config.Config) *Server {
	mux := http.NewServeMux()

	healthSvc := health.New()
	healthSvc.RegisterRoutes(mux)

	// Create bus registry
	registry := bus.NewRegistry()

	// Create HTTP-FLV service
	httpflvSvc := httpflv.NewService(registry)
	httpflvSvc.RegisterRoutes(mux)

	// Create WebSocket-FLV service
	wsflvSvc := wsflv.NewService(registry)
	wsflvSvc.RegisterRoutes(mux)

	// Create RTMP server
	rtmpServer := rtmp.NewServer(registry)

	relayMgr := relay.NewManager(registry)
	transcodeMgr := transcode.NewManager(registry)
	recordMgr := record.NewManager(registry)

	apiSvc := api.NewService(registry, relayMgr)
	apiSvc.SetEventRouter(&pipelineRouter{transcodeMgr: transcodeMgr, recordMgr: recordMgr})
	apiSvc.RegisterRoutes(mux)

	var metricsReg *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsReg = metrics.NewRegistry()
		mux.Handle("/metrics", metrics.Handler())
	}

	// HTTP server listens on HTTP port
	// The health endpoint (/healthz) is served on this port
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: mux,
	}

	return &Server{
		cfg:          cfg,
		httpServer:   httpServer,
		healthSvc:    healthSvc,
		httpflvSvc:   httpflvSvc,
		wsflvSvc:     wsflvSvc,
		rtmpServer:   rtmpServer,
		registry:     registry,
		relayMgr:     relayMgr,
		transcodeMgr: transcodeMgr,
		recordMgr:    recordMgr,
		metricsReg:   metricsReg,
	}
}

// Start begins serving HTTP requests and RTMP connections, and starts any
// configured relay, transcode, and record pipelines.
// This method blocks until the server is stopped or encounters an error.
func (s *Server) Start() error {
	if err := s.relayMgr.StartTasks(s.cfg); err != nil {
		return fmt.Errorf("start relays: %w", err)
	}
	if err := s.transcodeMgr.StartTasks(s.cfg); err != nil {
		return fmt.Errorf("start transcode pipelines: %w", err)
	}
	if err := s.recordMgr.StartTasks(s.cfg, time.Now()); err != nil {
		return fmt.Errorf("start record pipelines: %w", err)
	}

	if s.metricsReg != nil {
		samplerCtx, cancel := context.WithCancel(context.Background())
		s.samplerCancel = cancel
		for _, t := range s.transcodeMgr.Tasks() {
			go metrics.NewSampler(s.metricsReg, t.Pipeline(), t.Label(), 2*time.Second).Run(samplerCtx)
		}
		for _, t := range s.recordMgr.Tasks() {
			go metrics.NewSampler(s.metricsReg, t.Pipeline(), t.Label(), 2*time.Second).Run(samplerCtx)
		}
	}

	// Start RTMP server
	if err := s.rtmpServer.Listen(fmt.Sprintf(":%d", s.cfg.Server.RTMPPort)); err != nil {
		return fmt.Errorf("RTMP server listen: %w", err)
	}
	go func() {
		if err := s.rtmpServer.Accept(); err != nil {
			log.Printf("rtmp accept loop exited: %v", err)
		}
	}()

	// Start HTTP server (blocks)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server with a timeout, and stops any
// running relay, transcode, and record pipelines.
// Returns an error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.samplerCancel != nil {
		s.samplerCancel()
	}
	if err := s.transcodeMgr.Stop(); err != nil {
		log.Printf("transcode shutdown: %v", err)
	}
	if err := s.recordMgr.Stop(); err != nil {
		log.Printf("record shutdown: %v", err)
	}
	if err := s.relayMgr.Stop(); err != nil {
		log.Printf("relay shutdown: %v", err)
	}
	return s.httpServer.Shutdown(ctx)
}

// ShutdownWithTimeout stops the server with a fixed 5-second timeout.
// This is a convenience wrapper around Shutdown.
func (s *Server) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Close RTMP server
	if s.rtmpServer != nil {
		s.rtmpServer.Close()
	}

	return s.Shutdown(ctx)
}
