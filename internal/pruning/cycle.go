package pruning

import (
	"fmt"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// CycleElimination prunes states trapped in cycles without a productive exit.
// An exit is productive when a successful edge leaves the cycle toward a state
// that either has a successful outcome in the context or is an active state
// with onward edges.
type CycleElimination struct {
	counters
	priority int

	// Cycle detection is the expensive part of the verdict, so results are
	// cached against the graph's mutation counter and recomputed only when
	// the graph has changed underneath us.
	cached        []schema.Cycle
	cachedVersion uint64
	cacheValid    bool
}

// NewCycleElimination creates the strategy with the given priority.
func NewCycleElimination(priority int) *CycleElimination {
	return &CycleElimination{priority: priority}
}

func (s *CycleElimination) Name() string  { return "CycleElimination" }
func (s *CycleElimination) Priority() int { return s.priority }

func (s *CycleElimination) Evaluate(id schema.StateID, g *graph.StateGraph, ctx *Context) schema.PruningDecision {
	if missingOrPruned(id, g) {
		decision := keepDecision(id, s.Name(), "state does not exist or already pruned", s.priority)
		s.record(false)
		return decision
	}

	var memberOf []schema.Cycle
	for _, cycle := range s.cycles(g) {
		if cycle.Contains(id) {
			memberOf = append(memberOf, cycle)
		}
	}
	if len(memberOf) == 0 {
		s.record(false)
		return keepDecision(id, s.Name(), "state not in any cycle", s.priority)
	}

	for _, cycle := range memberOf {
		if s.hasProductiveExit(id, cycle.Members(), g, ctx) {
			s.record(false)
			return keepDecision(id, s.Name(),
				fmt.Sprintf("cycle has productive exit from state %d", id), s.priority)
		}
	}

	s.record(true)
	return pruneDecision(id, s.Name(), "state in cycle without productive exits", s.priority,
		map[string]any{"cycles": memberOf})
}

func (s *CycleElimination) cycles(g *graph.StateGraph) []schema.Cycle {
	if !s.cacheValid || s.cachedVersion != g.Version() {
		s.cached = g.DetectCycles()
		s.cachedVersion = g.Version()
		s.cacheValid = true
	}
	return s.cached
}

func (s *CycleElimination) hasProductiveExit(id schema.StateID, members map[schema.StateID]bool, g *graph.StateGraph, ctx *Context) bool {
	for _, edge := range g.OutgoingEdges(id) {
		if members[edge.Target] || !edge.Success {
			continue
		}
		if ctx.WasSuccessful(edge.Target) {
			return true
		}
		target := g.Node(edge.Target)
		if target != nil && !target.IsPruned && len(g.OutgoingEdges(edge.Target)) > 0 {
			return true
		}
	}
	return false
}
