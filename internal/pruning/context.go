// Package pruning implements the branch-pruning engine: individual strategies
// (cycle elimination, dead ends, redundancy), a priority-aware composite, and
// a manager that tracks decisions and executes prunes against the graph.
package pruning

import "github.com/rendis/traverse/pkg/schema"

// Context carries task-level signals that strategies consult beyond the graph
// structure itself. Absent entries fall back to neutral defaults: uncertainty
// 0.5, success true.
type Context struct {
	TaskDescription   string
	CurrentStep       int
	MaxSteps          int
	UncertaintyScores map[schema.StateID]float64
	SuccessHistory    map[schema.StateID]bool
	Metadata          map[string]any
}

// NewContext creates an empty context with the default step budget.
func NewContext() *Context {
	return &Context{
		MaxSteps:          50,
		UncertaintyScores: make(map[schema.StateID]float64),
		SuccessHistory:    make(map[schema.StateID]bool),
		Metadata:          make(map[string]any),
	}
}

// StateUncertainty returns the recorded uncertainty for a state, or 0.5 when
// the state has never been scored.
func (c *Context) StateUncertainty(id schema.StateID) float64 {
	if score, ok := c.UncertaintyScores[id]; ok {
		return score
	}
	return 0.5
}

// WasSuccessful reports whether a state led to a successful outcome. States
// without history are presumed successful.
func (c *Context) WasSuccessful(id schema.StateID) bool {
	if success, ok := c.SuccessHistory[id]; ok {
		return success
	}
	return true
}
