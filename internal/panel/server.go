// Package panel serves a JSON monitoring API and live event streams for a
// running exploration agent.
package panel

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/internal/scheduler"
	"github.com/rendis/traverse/internal/streaming"
)

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	Agent     *agent.Agent
	Hub       streaming.EventHub
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger
}

// PanelServer serves the monitoring API.
type PanelServer struct {
	deps PanelDeps
}

// NewPanelServer creates a new PanelServer.
func NewPanelServer(deps PanelDeps) *PanelServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &PanelServer{deps: deps}
}

// Handler returns the HTTP handler for the panel routes.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Run inspection.
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("GET /api/graph/mermaid", s.handleGraphMermaid)
	mux.HandleFunc("GET /api/trajectory", s.handleTrajectory)
	mux.HandleFunc("GET /api/maintenance", s.handleMaintenance)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/runs/{id}", s.handleSSERun)

	return mux
}
