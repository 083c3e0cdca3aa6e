package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/db"
	"github.com/quantrail/nse-scanner/web"
)

// Server provides the REST API, health checks, the WebSocket endpoint, and
// the embedded dashboard.
type Server struct {
	server  *http.Server
	pool    *db.Pool
	handler *Handler
	hub     *Hub
	version string
	logger  *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	address string,
	pool *db.Pool,
	handler *Handler,
	hub *Hub,
	version string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pool:    pool,
		handler: handler,
		hub:     hub,
		version: version,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)

	mux.HandleFunc("/api/v1/status", handler.HandleStatus)
	mux.HandleFunc("/api/v1/status/history", handler.HandleStatusHistory)
	mux.HandleFunc("/api/v1/ingest/daily", handler.HandleIngestDaily)
	mux.HandleFunc("/api/v1/scan/execute", handler.HandleScanExecute)
	mux.HandleFunc("/api/v1/signals", handler.HandleSignals)
	mux.HandleFunc("/api/v1/calendar/session", handler.HandleCalendarSession)
	mux.HandleFunc("/api/v1/calendar/closures", handler.HandleClosures)
	mux.HandleFunc("/api/v1/simulation/status", handler.HandleSimulationStatus)
	mux.HandleFunc("/api/v1/simulation/advance", handler.HandleSimulationAdvance)
	mux.HandleFunc("/api/v1/simulation/step", handler.HandleSimulationStep)
	mux.HandleFunc("/api/v1/simulation/reset", handler.HandleSimulationReset)

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, logger)
	})

	if staticFS, err := web.GetFileSystem(); err == nil {
		mux.Handle("/", http.FileServer(http.FS(staticFS)))
	}

	s.server = &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("address", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server stopping")
	return s.server.Shutdown(ctx)
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// handleHealth handles the /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Version:  s.version,
		Services: make(map[string]string),
	}

	if err := s.pool.HealthCheck(ctx); err != nil {
		response.Services["postgres"] = "unhealthy: " + err.Error()
		response.Status = "unhealthy"
	} else {
		response.Services["postgres"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// handleLiveness handles the /health/live endpoint (Kubernetes liveness probe).
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// handleReadiness handles the /health/ready endpoint (Kubernetes readiness probe).
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.pool.HealthCheck(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "not ready",
			"reason": "database unavailable: " + err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
