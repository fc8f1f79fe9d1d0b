package pruning

import (
	"fmt"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// Redundancy prunes states equivalent to ones already explored, using hash
// matches and structural similarity against siblings. It keeps its own
// hash registry rather than reusing the graph's dedup index: the strategy
// only learns hashes of states it has been asked to evaluate, so states the
// manager never routed through it stay invisible to the hash check.
type Redundancy struct {
	counters
	priority                int
	epsilon                 float64
	useHashComparison       bool
	useStructuralSimilarity bool
	seenHashes              map[string]schema.StateID // hash -> first evaluated state
}

// NewRedundancy creates the strategy with both checks enabled.
func NewRedundancy(priority int, epsilon float64) *Redundancy {
	return &Redundancy{
		priority:                priority,
		epsilon:                 epsilon,
		useHashComparison:       true,
		useStructuralSimilarity: true,
		seenHashes:              make(map[string]schema.StateID),
	}
}

func (s *Redundancy) Name() string  { return "Redundancy" }
func (s *Redundancy) Priority() int { return s.priority }

func (s *Redundancy) Evaluate(id schema.StateID, g *graph.StateGraph, ctx *Context) schema.PruningDecision {
	if missingOrPruned(id, g) {
		s.record(false)
		return keepDecision(id, s.Name(), "state does not exist or already pruned", s.priority)
	}

	node := g.Node(id)

	if s.useHashComparison {
		existing, ok := s.seenHashes[node.ContentHash]
		if ok && existing != id {
			prior := g.Node(existing)
			if prior != nil && !prior.IsPruned {
				s.record(true)
				return pruneDecision(id, s.Name(),
					fmt.Sprintf("duplicate observation hash (similar to state %d)", existing),
					s.priority,
					map[string]any{
						"reason_type":   "hash_match",
						"similar_state": existing,
						"hash":          node.ContentHash,
					})
			}
		} else {
			s.seenHashes[node.ContentHash] = id
		}
	}

	if s.useStructuralSimilarity {
		if sibling, ok := s.findSimilarSibling(id, g); ok {
			similarity := s.similarity(id, sibling, g)
			if similarity >= 1.0-s.epsilon {
				s.record(true)
				return pruneDecision(id, s.Name(),
					fmt.Sprintf("structurally similar to state %d (sim=%.3f)", sibling, similarity),
					s.priority,
					map[string]any{
						"reason_type":   "structural_similarity",
						"similar_state": sibling,
						"similarity":    similarity,
					})
			}
		}
	}

	s.record(false)
	return keepDecision(id, s.Name(), "state is unique", s.priority)
}

// findSimilarSibling returns the first active sibling: another child of any
// predecessor.
func (s *Redundancy) findSimilarSibling(id schema.StateID, g *graph.StateGraph) (schema.StateID, bool) {
	for _, pred := range g.GetPredecessors(id) {
		for _, sibling := range g.GetSuccessors(pred) {
			if sibling == id {
				continue
			}
			node := g.Node(sibling)
			if node != nil && !node.IsPruned {
				return sibling, true
			}
		}
	}
	return 0, false
}

// similarity combines action and hash equality with successor-set overlap.
// The base score is 0.5 per matching component; when either state has
// successors the base is reweighted to 0.7 and Jaccard overlap contributes
// the remaining 0.3.
func (s *Redundancy) similarity(a, b schema.StateID, g *graph.StateGraph) float64 {
	nodeA, nodeB := g.Node(a), g.Node(b)

	score := 0.0
	if nodeA.ActionLabel == nodeB.ActionLabel {
		score = 0.5
	}
	if nodeA.ContentHash == nodeB.ContentHash {
		score += 0.5
	}

	succA := make(map[schema.StateID]bool)
	for _, id := range g.GetSuccessors(a) {
		succA[id] = true
	}
	succB := make(map[schema.StateID]bool)
	for _, id := range g.GetSuccessors(b) {
		succB[id] = true
	}

	if len(succA) > 0 || len(succB) > 0 {
		intersection := 0
		union := len(succA)
		for id := range succB {
			if succA[id] {
				intersection++
			} else {
				union++
			}
		}
		jaccard := 0.0
		if union > 0 {
			jaccard = float64(intersection) / float64(union)
		}
		score = 0.7*score + 0.3*jaccard
	}

	return score
}

// Reset clears the counters and the hash registry.
func (s *Redundancy) Reset() {
	s.ResetStats()
	s.seenHashes = make(map[string]schema.StateID)
}
