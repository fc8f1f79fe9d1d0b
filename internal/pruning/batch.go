package pruning

import (
	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// PruneAll evaluates every active state in the graph and executes every prune
// verdict, returning the IDs that triggered a prune, in evaluation order.
// States pruned as a side effect of an earlier verdict in the same sweep are
// skipped when their turn comes.
func PruneAll(g *graph.StateGraph, m *Manager, ctx *Context, strategyName string) ([]schema.StateID, error) {
	if ctx == nil {
		ctx = NewContext()
	}

	var pruned []schema.StateID
	for _, id := range g.StateIDs() {
		if g.Node(id).IsPruned {
			continue
		}
		decision, err := m.Evaluate(id, g, ctx, strategyName)
		if err != nil {
			return pruned, err
		}
		if decision.ShouldPrune {
			if _, err := g.PruneBranch(id); err != nil {
				return pruned, err
			}
			pruned = append(pruned, id)
		}
	}
	return pruned, nil
}

// Recommendations evaluates every active state without mutating the graph and
// returns the prune verdicts.
func Recommendations(g *graph.StateGraph, m *Manager, ctx *Context, strategyName string) ([]schema.PruningDecision, error) {
	if ctx == nil {
		ctx = NewContext()
	}

	var recommendations []schema.PruningDecision
	for _, id := range g.StateIDs() {
		if g.Node(id).IsPruned {
			continue
		}
		decision, err := m.Evaluate(id, g, ctx, strategyName)
		if err != nil {
			return recommendations, err
		}
		if decision.ShouldPrune {
			recommendations = append(recommendations, decision)
		}
	}
	return recommendations, nil
}
