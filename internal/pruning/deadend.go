package pruning

import (
	"fmt"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// DeadEnd prunes leaves, states whose every outgoing edge failed, and
// (optionally) states whose reachable subtree fails at or above a threshold
// rate according to the context's success history.
type DeadEnd struct {
	counters
	priority          int
	propagateFailures bool
	failureThreshold  float64
}

// NewDeadEnd creates the strategy with failure propagation enabled and a 0.8
// failure-rate threshold.
func NewDeadEnd(priority int) *DeadEnd {
	return &DeadEnd{
		priority:          priority,
		propagateFailures: true,
		failureThreshold:  0.8,
	}
}

// WithFailurePropagation toggles the subtree failure-rate check.
func (s *DeadEnd) WithFailurePropagation(enabled bool, threshold float64) *DeadEnd {
	s.propagateFailures = enabled
	s.failureThreshold = threshold
	return s
}

func (s *DeadEnd) Name() string  { return "DeadEnd" }
func (s *DeadEnd) Priority() int { return s.priority }

func (s *DeadEnd) Evaluate(id schema.StateID, g *graph.StateGraph, ctx *Context) schema.PruningDecision {
	if missingOrPruned(id, g) {
		s.record(false)
		return keepDecision(id, s.Name(), "state does not exist or already pruned", s.priority)
	}

	outgoing := g.OutgoingEdges(id)
	if len(outgoing) == 0 {
		s.record(true)
		return pruneDecision(id, s.Name(), "leaf node with no outgoing edges", s.priority,
			map[string]any{"reason_type": "leaf"})
	}

	allFailed := true
	for _, edge := range outgoing {
		if edge.Success {
			allFailed = false
			break
		}
	}
	if allFailed {
		s.record(true)
		return pruneDecision(id, s.Name(), "all outgoing edges failed", s.priority,
			map[string]any{"reason_type": "all_failed"})
	}

	if s.propagateFailures {
		rate := s.failureRate(id, g, ctx)
		if rate >= s.failureThreshold {
			s.record(true)
			return pruneDecision(id, s.Name(),
				fmt.Sprintf("high failure rate (%.2f)", rate), s.priority,
				map[string]any{"reason_type": "high_failure_rate", "rate": rate})
		}
	}

	s.record(false)
	return keepDecision(id, s.Name(), "state has productive outgoing edges", s.priority)
}

// failureRate computes the share of failed states among everything reachable
// from id, id included.
func (s *DeadEnd) failureRate(id schema.StateID, g *graph.StateGraph, ctx *Context) float64 {
	total, failures := 0, 0
	visited := make(map[schema.StateID]bool)
	stack := []schema.StateID{id}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		total++
		if !ctx.WasSuccessful(current) {
			failures++
		}
		for _, edge := range g.OutgoingEdges(current) {
			stack = append(stack, edge.Target)
		}
	}

	if total == 0 {
		return 0
	}
	return float64(failures) / float64(total)
}
