package schema

import "time"

// CombineMode selects how a composite strategy merges sub-strategy verdicts.
type CombineMode string

const (
	// CombinePriority evaluates strategies in descending priority order and
	// returns the first positive verdict.
	CombinePriority CombineMode = "priority"
	// CombineAny prunes if at least one strategy recommends pruning.
	CombineAny CombineMode = "any"
	// CombineAll prunes only if every strategy recommends pruning.
	CombineAll CombineMode = "all"
)

// PruningDecision is one append-only audit record of a strategy evaluation.
// It is never mutated after creation. Composite strategies embed the verdicts
// they combined under the "source_decision" / "all_decisions" metadata keys.
type PruningDecision struct {
	StateID      StateID        `json:"state_id"`
	ShouldPrune  bool           `json:"should_prune"`
	StrategyName string         `json:"strategy_name"`
	Reason       string         `json:"reason"`
	Priority     int            `json:"priority"`
	Timestamp    time.Time      `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// StrategyStats are the per-strategy evaluation counters. Composites carry
// the counters of their sub-strategies under Sub.
type StrategyStats struct {
	Evaluations int                      `json:"evaluations"`
	Pruned      int                      `json:"pruned"`
	Kept        int                      `json:"kept"`
	Sub         map[string]StrategyStats `json:"sub_strategies,omitempty"`
}
