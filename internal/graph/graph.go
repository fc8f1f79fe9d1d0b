// Package graph implements the deduplicated directed state graph: node and
// edge arenas keyed by monotonically increasing integer IDs, DFS cycle
// detection, prunable-branch analysis, and mark-only branch pruning.
package graph

import (
	"sort"
	"strconv"
	"time"

	"github.com/rendis/traverse/pkg/schema"
)

// StateGraph records visited states and transitions. All relations are ID
// lookups into flat tables, never owning references, so cycles impose no
// lifetime hazard. Not safe for concurrent use; the caller serializes access.
type StateGraph struct {
	nodes   map[schema.StateID]*schema.StateNode
	edges   map[schema.EdgeID]*schema.TransitionEdge
	out     map[schema.StateID][]schema.EdgeID // outgoing edges, insertion order
	in      map[schema.StateID][]schema.EdgeID // incoming edges, insertion order
	byHash  map[string]schema.StateID          // dedup index; ignores the pruned flag
	root    *schema.StateID
	nextNID schema.StateID
	nextEID schema.EdgeID

	// version increments on every mutation. Strategies caching derived graph
	// data key their caches on it and recompute on mismatch.
	version uint64
}

// New creates an empty state graph.
func New() *StateGraph {
	return &StateGraph{
		nodes:  make(map[schema.StateID]*schema.StateNode),
		edges:  make(map[schema.EdgeID]*schema.TransitionEdge),
		out:    make(map[schema.StateID][]schema.EdgeID),
		in:     make(map[schema.StateID][]schema.EdgeID),
		byHash: make(map[string]schema.StateID),
	}
}

// Version returns the current mutation counter.
func (g *StateGraph) Version() uint64 {
	return g.version
}

// AddState registers a state for the given observation payload and returns
// its ID. Identical payloads (after canonical hashing) always resolve to the
// existing ID, even when that node is already pruned. The first node ever
// added becomes the root.
func (g *StateGraph) AddState(payload any, actionLabel string, metadata map[string]any, timestamp time.Time) schema.StateID {
	hash := HashPayload(payload)

	if existing, ok := g.byHash[hash]; ok {
		return existing
	}

	id := g.nextNID
	g.nextNID++

	if metadata == nil {
		metadata = map[string]any{}
	}
	g.nodes[id] = &schema.StateNode{
		ID:          id,
		ContentHash: hash,
		ActionLabel: actionLabel,
		Payload:     payload,
		Metadata:    metadata,
		Timestamp:   timestamp,
	}
	g.out[id] = nil
	g.in[id] = nil
	g.byHash[hash] = id

	if g.root == nil {
		rootID := id
		g.root = &rootID
	}

	g.version++
	return id
}

// AddEdge records a transition between two existing states. Returns an
// UNKNOWN_STATE error identifying the invalid endpoint; the graph is left
// unmodified on failure.
func (g *StateGraph) AddEdge(from, to schema.StateID, weight float64, success bool, actionLabel string, metadata map[string]any) (schema.EdgeID, error) {
	if _, ok := g.nodes[from]; !ok {
		return 0, schema.NewUnknownState(schema.EndpointSource, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return 0, schema.NewUnknownState(schema.EndpointTarget, to)
	}

	id := g.nextEID
	g.nextEID++

	if metadata == nil {
		metadata = map[string]any{}
	}
	g.edges[id] = &schema.TransitionEdge{
		ID:          id,
		Source:      from,
		Target:      to,
		Weight:      weight,
		Success:     success,
		ActionLabel: actionLabel,
		Metadata:    metadata,
	}
	g.out[from] = append(g.out[from], id)
	g.in[to] = append(g.in[to], id)

	g.version++
	return id, nil
}

// Node returns the node for the given ID, or nil if absent.
func (g *StateGraph) Node(id schema.StateID) *schema.StateNode {
	return g.nodes[id]
}

// Edge returns the edge for the given ID, or nil if absent.
func (g *StateGraph) Edge(id schema.EdgeID) *schema.TransitionEdge {
	return g.edges[id]
}

// OutgoingEdges returns the edges leaving a state, in insertion order.
func (g *StateGraph) OutgoingEdges(id schema.StateID) []*schema.TransitionEdge {
	edgeIDs := g.out[id]
	edges := make([]*schema.TransitionEdge, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		edges = append(edges, g.edges[eid])
	}
	return edges
}

// RootID returns the root state ID, or nil for an empty graph.
func (g *StateGraph) RootID() *schema.StateID {
	return g.root
}

// NodeCount returns the number of registered states, pruned included.
func (g *StateGraph) NodeCount() int {
	return len(g.nodes)
}

// StateIDs returns all state IDs in ascending order.
func (g *StateGraph) StateIDs() []schema.StateID {
	ids := make([]schema.StateID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DetectCycles finds cycles via depth-first search with a recursion-stack
// set. A back edge into the stack emits the path slice from the neighbor's
// first occurrence through the current node, plus the repeated closing ID.
// Overlapping cycles are reported as discovered, without de-duplication.
func (g *StateGraph) DetectCycles() []schema.Cycle {
	var cycles []schema.Cycle
	visited := make(map[schema.StateID]bool, len(g.nodes))
	onStack := make(map[schema.StateID]bool)
	var path []schema.StateID

	var dfs func(id schema.StateID)
	dfs = func(id schema.StateID) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, eid := range g.out[id] {
			neighbor := g.edges[eid].Target
			if !visited[neighbor] {
				dfs(neighbor)
			} else if onStack[neighbor] {
				start := 0
				for i, sid := range path {
					if sid == neighbor {
						start = i
						break
					}
				}
				cycle := make(schema.Cycle, 0, len(path)-start+1)
				cycle = append(cycle, path[start:]...)
				cycle = append(cycle, neighbor)
				cycles = append(cycles, cycle)
			}
		}

		path = path[:len(path)-1]
		onStack[id] = false
	}

	for _, id := range g.StateIDs() {
		if !visited[id] {
			dfs(id)
		}
	}
	return cycles
}

// GetPrunableBranches returns the union of: non-pruned leaf nodes, non-pruned
// nodes whose every outgoing edge failed, and non-pruned cycle members with
// no successful edge leaving the union of all cycle-member sets.
func (g *StateGraph) GetPrunableBranches() map[schema.StateID]bool {
	prunable := make(map[schema.StateID]bool)

	for id, node := range g.nodes {
		if node.IsPruned {
			continue
		}
		outgoing := g.out[id]
		if len(outgoing) == 0 {
			prunable[id] = true
			continue
		}
		allFailed := true
		for _, eid := range outgoing {
			if g.edges[eid].Success {
				allFailed = false
				break
			}
		}
		if allFailed {
			prunable[id] = true
		}
	}

	cycleMembers := make(map[schema.StateID]bool)
	for _, cycle := range g.DetectCycles() {
		for id := range cycle.Members() {
			cycleMembers[id] = true
		}
	}
	for id := range cycleMembers {
		node, ok := g.nodes[id]
		if !ok || node.IsPruned {
			continue
		}
		productive := false
		for _, eid := range g.out[id] {
			edge := g.edges[eid]
			if !cycleMembers[edge.Target] && edge.Success {
				productive = true
				break
			}
		}
		if !productive {
			prunable[id] = true
		}
	}

	return prunable
}

// PruneBranch marks the given state and everything reachable from it via
// outgoing edges (failed edges included) as pruned, returning the set of
// newly pruned IDs. Recursion stops at already-pruned nodes, which makes the
// operation idempotent and terminates it on cycles. Returns NOT_FOUND for an
// unknown state.
func (g *StateGraph) PruneBranch(id schema.StateID) (map[schema.StateID]bool, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "state %d does not exist", id).WithState(id)
	}

	pruned := make(map[schema.StateID]bool)
	var mark func(sid schema.StateID)
	mark = func(sid schema.StateID) {
		node, ok := g.nodes[sid]
		if !ok || node.IsPruned {
			return
		}
		node.IsPruned = true
		pruned[sid] = true
		for _, eid := range g.out[sid] {
			mark(g.edges[eid].Target)
		}
	}
	mark(id)

	if len(pruned) > 0 {
		g.version++
	}
	return pruned, nil
}

// GetPathToState returns the shortest path (by edge count) from the root to
// the given state, or an empty path when the state is unreachable or the
// graph has no root. Returns NOT_FOUND for an unknown state.
func (g *StateGraph) GetPathToState(id schema.StateID) ([]schema.StateID, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "state %d does not exist", id).WithState(id)
	}
	if g.root == nil {
		return nil, nil
	}

	type queued struct {
		id   schema.StateID
		path []schema.StateID
	}
	queue := []queued{{*g.root, []schema.StateID{*g.root}}}
	visited := map[schema.StateID]bool{*g.root: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.id == id {
			return current.path, nil
		}
		for _, eid := range g.out[current.id] {
			neighbor := g.edges[eid].Target
			if !visited[neighbor] {
				visited[neighbor] = true
				path := make([]schema.StateID, len(current.path), len(current.path)+1)
				copy(path, current.path)
				queue = append(queue, queued{neighbor, append(path, neighbor)})
			}
		}
	}
	return nil, nil
}

// GetSuccessors returns the targets of a state's outgoing edges, in edge
// insertion order. Unknown states yield an empty list.
func (g *StateGraph) GetSuccessors(id schema.StateID) []schema.StateID {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}
	successors := make([]schema.StateID, 0, len(g.out[id]))
	for _, eid := range g.out[id] {
		successors = append(successors, g.edges[eid].Target)
	}
	return successors
}

// GetPredecessors returns the sources of a state's incoming edges.
func (g *StateGraph) GetPredecessors(id schema.StateID) []schema.StateID {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}
	predecessors := make([]schema.StateID, 0, len(g.in[id]))
	for _, eid := range g.in[id] {
		predecessors = append(predecessors, g.edges[eid].Source)
	}
	return predecessors
}

// Stats summarizes the graph. Depth is the max BFS distance from the root
// over all edges; pruned nodes are not excluded from the depth computation.
func (g *StateGraph) Stats() schema.GraphStats {
	stats := schema.GraphStats{
		NodeCount:  len(g.nodes),
		EdgeCount:  len(g.edges),
		CycleCount: len(g.DetectCycles()),
	}

	if g.root != nil {
		rootID := *g.root
		stats.RootStateID = &rootID

		type queued struct {
			id    schema.StateID
			depth int
		}
		queue := []queued{{rootID, 0}}
		visited := map[schema.StateID]bool{rootID: true}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			if current.depth > stats.Depth {
				stats.Depth = current.depth
			}
			for _, eid := range g.out[current.id] {
				neighbor := g.edges[eid].Target
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, queued{neighbor, current.depth + 1})
				}
			}
		}
	}

	for _, node := range g.nodes {
		if node.IsPruned {
			stats.PrunedCount++
		}
	}
	stats.ActiveCount = stats.NodeCount - stats.PrunedCount
	return stats
}

// Dump serializes the graph to its debug/audit document: nodes and edges
// keyed by stringified ID, the root, and a nested stats block. The format is
// unversioned and for inspection only.
func (g *StateGraph) Dump() schema.GraphDump {
	dump := schema.GraphDump{
		Nodes: make(map[string]schema.StateNode, len(g.nodes)),
		Edges: make(map[string]schema.TransitionEdge, len(g.edges)),
		Stats: g.Stats(),
	}
	for id, node := range g.nodes {
		dump.Nodes[strconv.Itoa(int(id))] = *node
	}
	for id, edge := range g.edges {
		dump.Edges[strconv.Itoa(int(id))] = *edge
	}
	if g.root != nil {
		rootID := *g.root
		dump.RootStateID = &rootID
	}
	return dump
}

// Reset clears all nodes, edges, the dedup index, and the root, and restarts
// ID allocation. The version counter keeps increasing so version-keyed
// caches also invalidate across resets.
func (g *StateGraph) Reset() {
	g.nodes = make(map[schema.StateID]*schema.StateNode)
	g.edges = make(map[schema.EdgeID]*schema.TransitionEdge)
	g.out = make(map[schema.StateID][]schema.EdgeID)
	g.in = make(map[schema.StateID][]schema.EdgeID)
	g.byHash = make(map[string]schema.StateID)
	g.root = nil
	g.nextNID = 0
	g.nextEID = 0
	g.version++
}
