package schema

import "time"

// StateID identifies a state node. IDs are allocated monotonically from 0
// and never reused within a graph lifetime.
type StateID int

// EdgeID identifies a transition edge, allocated monotonically from 0.
type EdgeID int

// StateNode is one deduplicated record of an observed situation. The content
// hash uniquely identifies a node: re-submitting an identical payload always
// resolves to the existing ID, pruned or not.
type StateNode struct {
	ID          StateID        `json:"state_id"`
	ContentHash string         `json:"content_hash"`
	ActionLabel string         `json:"action"`
	Payload     any            `json:"-"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsPruned    bool           `json:"is_pruned"`
	Timestamp   time.Time      `json:"timestamp,omitzero"`
}

// TransitionEdge is a directed, weighted record of one action moving between
// two state nodes. Edges are never removed; pruning only flags nodes.
type TransitionEdge struct {
	ID          EdgeID         `json:"edge_id"`
	Source      StateID        `json:"source"`
	Target      StateID        `json:"target"`
	Weight      float64        `json:"weight"`
	Success     bool           `json:"success"`
	ActionLabel string         `json:"action"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Cycle is a closed walk discovered by DFS: [n0, n1, ..., nk, n0].
// Overlapping cycles over the same node set may be reported separately when
// reachable via different recursion-stack paths.
type Cycle []StateID

// Members returns the cycle's node set, excluding the repeated closing ID.
func (c Cycle) Members() map[StateID]bool {
	members := make(map[StateID]bool, len(c))
	for _, id := range c[:len(c)-1] {
		members[id] = true
	}
	return members
}

// Contains reports whether the cycle includes the given state, ignoring the
// repeated closing ID.
func (c Cycle) Contains(id StateID) bool {
	for _, member := range c[:len(c)-1] {
		if member == id {
			return true
		}
	}
	return false
}

// GraphStats summarizes a state graph.
type GraphStats struct {
	NodeCount   int      `json:"node_count"`
	EdgeCount   int      `json:"edge_count"`
	CycleCount  int      `json:"cycle_count"`
	Depth       int      `json:"depth"`
	PrunedCount int      `json:"pruned_count"`
	ActiveCount int      `json:"active_count"`
	RootStateID *StateID `json:"root_state_id"`
}

// GraphDump is the debug/audit serialization of a graph. The format is
// unversioned and intended for inspection and visualization only.
type GraphDump struct {
	Nodes       map[string]StateNode      `json:"nodes"`
	Edges       map[string]TransitionEdge `json:"edges"`
	RootStateID *StateID                  `json:"root_state_id"`
	Stats       GraphStats                `json:"stats"`
}
