package pruning

import (
	"time"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// Strategy evaluates whether a single state should be pruned. Decisions are
// advisory: executing the prune is the manager's job.
type Strategy interface {
	// Name returns the strategy's registry name.
	Name() string
	// Priority orders strategies inside composites; higher wins.
	Priority() int
	// Evaluate renders a verdict for one state. It never mutates the graph.
	Evaluate(id schema.StateID, g *graph.StateGraph, ctx *Context) schema.PruningDecision
	// Stats returns a copy of the evaluation counters.
	Stats() schema.StrategyStats
	// ResetStats zeroes the evaluation counters.
	ResetStats()
}

// counters holds the shared evaluation tallies embedded by every strategy.
type counters struct {
	evaluations int
	pruned      int
	kept        int
}

func (c *counters) record(shouldPrune bool) {
	c.evaluations++
	if shouldPrune {
		c.pruned++
	} else {
		c.kept++
	}
}

func (c *counters) Stats() schema.StrategyStats {
	return schema.StrategyStats{
		Evaluations: c.evaluations,
		Pruned:      c.pruned,
		Kept:        c.kept,
	}
}

func (c *counters) ResetStats() {
	c.evaluations = 0
	c.pruned = 0
	c.kept = 0
}

func keepDecision(id schema.StateID, name, reason string, priority int) schema.PruningDecision {
	return schema.PruningDecision{
		StateID:      id,
		ShouldPrune:  false,
		StrategyName: name,
		Reason:       reason,
		Priority:     priority,
		Timestamp:    time.Now(),
	}
}

func pruneDecision(id schema.StateID, name, reason string, priority int, metadata map[string]any) schema.PruningDecision {
	return schema.PruningDecision{
		StateID:      id,
		ShouldPrune:  true,
		StrategyName: name,
		Reason:       reason,
		Priority:     priority,
		Timestamp:    time.Now(),
		Metadata:     metadata,
	}
}

// missingOrPruned is the shared guard: strategies never re-prune.
func missingOrPruned(id schema.StateID, g *graph.StateGraph) bool {
	node := g.Node(id)
	return node == nil || node.IsPruned
}
