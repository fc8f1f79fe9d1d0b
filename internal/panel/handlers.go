package panel

import (
	"net/http"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/internal/diagram"
)

// agentOrError returns the attached agent, replying 503 when there is none.
func (s *PanelServer) agentOrError(w http.ResponseWriter) *agent.Agent {
	if s.deps.Agent == nil {
		writeError(w, http.StatusServiceUnavailable, "no agent attached")
		return nil
	}
	return s.deps.Agent
}

// handleStats reports graph and pruning statistics for the current run.
func (s *PanelServer) handleStats(w http.ResponseWriter, r *http.Request) {
	a := s.agentOrError(w)
	if a == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"graph_stats":    a.Graph().Stats(),
		"pruning_stats":  a.Pruner().Stats(),
		"pruned_history": len(a.Pruner().History()),
	})
}

// handleGraph dumps the explored state graph.
func (s *PanelServer) handleGraph(w http.ResponseWriter, r *http.Request) {
	a := s.agentOrError(w)
	if a == nil {
		return
	}
	writeJSON(w, http.StatusOK, a.Graph().Dump())
}

// handleGraphMermaid renders the explored graph as a Mermaid flowchart.
func (s *PanelServer) handleGraphMermaid(w http.ResponseWriter, r *http.Request) {
	a := s.agentOrError(w)
	if a == nil {
		return
	}
	model := diagram.Build(a.Graph().Dump(), r.URL.Query().Get("title"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(diagram.RenderMermaid(model))); err != nil {
		s.deps.Logger.Error("mermaid write failed", "error", err)
	}
}

// handleTrajectory returns the steps taken so far, newest last. A limit query
// param trims to the most recent N steps.
func (s *PanelServer) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	a := s.agentOrError(w)
	if a == nil {
		return
	}
	trajectory := a.Trajectory()
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(trajectory) {
		trajectory = trajectory[len(trajectory)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"steps": trajectory,
		"count": len(trajectory),
	})
}

// handleMaintenance lists the registered maintenance sweeps and their
// schedule state.
func (s *PanelServer) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "no scheduler attached")
		return
	}
	jobs := s.deps.Scheduler.Jobs()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
