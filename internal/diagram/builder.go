package diagram

import (
	"fmt"
	"sort"

	"github.com/rendis/traverse/pkg/schema"
)

// Build constructs a DiagramModel from a graph dump. Node order and levels
// are deterministic: states sort by ID and levels follow breadth-first
// distance from the root.
func Build(dump schema.GraphDump, title string) *DiagramModel {
	ids := make([]schema.StateID, 0, len(dump.Nodes))
	byID := make(map[schema.StateID]schema.StateNode, len(dump.Nodes))
	for _, node := range dump.Nodes {
		ids = append(ids, node.ID)
		byID[node.ID] = node
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	outgoing := make(map[schema.StateID][]schema.TransitionEdge)
	for _, edge := range dump.Edges {
		outgoing[edge.Source] = append(outgoing[edge.Source], edge)
	}
	for _, edges := range outgoing {
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		state := byID[id]
		nodes = append(nodes, stateToNode(state, dump.RootStateID, len(outgoing[id]) == 0))
	}

	var edges []Edge
	for _, id := range ids {
		for _, edge := range outgoing[id] {
			edges = append(edges, Edge{
				From:   nodeID(edge.Source),
				To:     nodeID(edge.Target),
				Label:  edge.ActionLabel,
				Weight: edge.Weight,
			})
		}
	}

	return &DiagramModel{
		Title:  title,
		Nodes:  nodes,
		Edges:  edges,
		Levels: buildLevels(ids, outgoing, dump.RootStateID),
	}
}

// nodeID converts a state ID to a renderer-safe identifier.
func nodeID(id schema.StateID) string {
	return fmt.Sprintf("s%d", id)
}

// stateToNode maps a StateNode to a diagram Node with its outcome overlay.
func stateToNode(state schema.StateNode, rootID *schema.StateID, isLeaf bool) *Node {
	kind := NodeKindState
	switch {
	case rootID != nil && state.ID == *rootID:
		kind = NodeKindRoot
	case isLeaf:
		kind = NodeKindLeaf
	}

	return &Node{
		ID:      nodeID(state.ID),
		Label:   stateLabel(state),
		Kind:    kind,
		Overlay: stateOverlay(state),
	}
}

// stateLabel creates a human-readable label for a state.
func stateLabel(state schema.StateNode) string {
	if state.ActionLabel != "" {
		return fmt.Sprintf("%s #%d", state.ActionLabel, state.ID)
	}
	return fmt.Sprintf("state #%d", state.ID)
}

// stateOverlay extracts outcome data recorded in state metadata.
func stateOverlay(state schema.StateNode) *Overlay {
	overlay := &Overlay{Pruned: state.IsPruned}
	found := state.IsPruned

	if state.Metadata != nil {
		if idx, ok := toIntValue(state.Metadata["step_index"]); ok {
			overlay.StepIndex = idx
			found = true
		}
		if unc, ok := state.Metadata["uncertainty"].(float64); ok {
			overlay.Uncertainty = unc
			found = true
		}
		if success, ok := state.Metadata["success"].(bool); ok {
			overlay.Success = success
			found = true
		}
	}

	if !found {
		return nil
	}
	return overlay
}

// toIntValue accepts the numeric types metadata can carry after a JSON
// round-trip.
func toIntValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// buildLevels groups states by breadth-first distance from the root.
// States unreachable from the root land in a trailing level.
func buildLevels(ids []schema.StateID, outgoing map[schema.StateID][]schema.TransitionEdge, rootID *schema.StateID) [][]string {
	if len(ids) == 0 {
		return nil
	}

	depth := make(map[schema.StateID]int, len(ids))
	if rootID != nil {
		queue := []schema.StateID{*rootID}
		depth[*rootID] = 0
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, edge := range outgoing[current] {
				if _, seen := depth[edge.Target]; seen {
					continue
				}
				depth[edge.Target] = depth[current] + 1
				queue = append(queue, edge.Target)
			}
		}
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	var orphans []string
	for _, id := range ids {
		d, reachable := depth[id]
		if !reachable {
			orphans = append(orphans, nodeID(id))
			continue
		}
		levels[d] = append(levels[d], nodeID(id))
	}
	if len(orphans) > 0 {
		levels = append(levels, orphans)
	}
	return levels
}
