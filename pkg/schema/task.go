package schema

import "time"

// TaskType classifies a task for checklist selection.
type TaskType string

const (
	TaskTypeNavigation TaskType = "navigation"
	TaskTypeSearch     TaskType = "search"
	TaskTypeForm       TaskType = "form"
	TaskTypeExtraction TaskType = "information_extraction"
	TaskTypeGeneric    TaskType = "generic"
)

// TaskDefinition is the JSON-serializable description of one exploration
// task: the goal, its type, step limits, and optional expression-backed
// checklist criteria. Validated against the embedded JSON Schema in
// internal/validation before execution.
type TaskDefinition struct {
	Goal                 string                `json:"goal"`
	Type                 TaskType              `json:"type,omitempty"`
	MaxSteps             int                   `json:"max_steps,omitempty"`
	MinSamples           int                   `json:"min_samples,omitempty"`
	MaxSamples           int                   `json:"max_samples,omitempty"`
	UncertaintyThreshold float64               `json:"uncertainty_threshold,omitempty"`
	Criteria             []CriterionDefinition `json:"criteria,omitempty"`
	Metadata             map[string]any        `json:"metadata,omitempty"`
}

// Expression engine names accepted by CriterionDefinition.Engine.
const (
	EngineCEL  = "cel"
	EngineExpr = "expr"
	EngineJQ   = "jq"
)

// CriterionDefinition declares one checklist criterion as an expression
// evaluated against step data. Engine selects the expression language.
type CriterionDefinition struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Engine      string  `json:"engine,omitempty"` // cel | expr | jq (default: expr)
	Expression  string  `json:"expression"`
}

// StepRecord captures one executed agent step: the action taken, the
// resulting observation, and the uncertainty measurements that drove it.
type StepRecord struct {
	Index            int              `json:"index"`
	ActionLabel      string           `json:"action"`
	Observation      string           `json:"observation"`
	Timestamp        time.Time        `json:"timestamp"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	Uncertainty      float64          `json:"uncertainty"`
	UncertaintyStats UncertaintyStats `json:"uncertainty_stats"`
	ComputeBudget    int              `json:"compute_budget"`
	Success          bool             `json:"success"`
}

// ActionResult is what an action executor returns across the collaborator
// boundary. Executor failures are converted into Success=false results with
// the error message under Metadata["error"], never propagated as errors.
type ActionResult struct {
	Observation string         `json:"observation"`
	Success     bool           `json:"success"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ChecklistReport is the outcome of scoring one step against a checklist.
type ChecklistReport struct {
	Score          float64  `json:"score"`
	Progress       float64  `json:"progress"`
	IsComplete     bool     `json:"is_complete"`
	NewlySatisfied []string `json:"newly_satisfied"`
	AllSatisfied   []string `json:"all_satisfied"`
	StepIndex      int      `json:"step_index"`
	CriteriaCount  int      `json:"criteria_count"`
	SatisfiedCount int      `json:"satisfied_count"`
}

// RecoveryStrategy enumerates the ways the agent can recover from a stuck or
// failed state.
type RecoveryStrategy string

const (
	RecoveryRetry       RecoveryStrategy = "retry"
	RecoveryBacktrack   RecoveryStrategy = "backtrack"
	RecoveryBranch      RecoveryStrategy = "branch"
	RecoveryReset       RecoveryStrategy = "reset"
	RecoveryHumanInLoop RecoveryStrategy = "human_in_loop"
)

// RecoveryAction is the recovery manager's verdict for a failure.
// HumanInLoop is terminal: the caller must stop advancing the agent loop and
// surface the situation externally.
type RecoveryAction struct {
	Strategy          RecoveryStrategy `json:"strategy"`
	TargetStep        *int             `json:"target_step,omitempty"`
	AlternativeAction string           `json:"alternative_action,omitempty"`
	Reason            string           `json:"reason"`
}
