package handoff

import "encoding/json"

// EscalationContext is the rich context attached to a run that stopped for a
// human. It gives the operator everything needed to pick the next action.
type EscalationContext struct {
	Goal             string   `json:"goal"`
	LastObservation  string   `json:"last_observation,omitempty"`
	StepsTaken       int      `json:"steps_taken"`
	Progress         float64  `json:"progress"`
	Uncertainty      float64  `json:"uncertainty"`
	CandidateActions []string `json:"candidate_actions,omitempty"`
	RecoveryAttempts int      `json:"recovery_attempts"`
	Reason           string   `json:"reason,omitempty"`
}

// ContextParams holds the inputs needed to build an EscalationContext.
type ContextParams struct {
	Goal             string
	LastObservation  string
	StepsTaken       int
	Progress         float64
	Uncertainty      float64
	CandidateActions []string
	RecoveryAttempts int
	Reason           string
}

// BuildEscalationContext assembles the context for a human handoff.
func BuildEscalationContext(p ContextParams) json.RawMessage {
	ec := EscalationContext{
		Goal:             p.Goal,
		LastObservation:  p.LastObservation,
		StepsTaken:       p.StepsTaken,
		Progress:         p.Progress,
		Uncertainty:      p.Uncertainty,
		CandidateActions: p.CandidateActions,
		RecoveryAttempts: p.RecoveryAttempts,
		Reason:           p.Reason,
	}
	data, err := json.Marshal(ec)
	if err != nil {
		// Fallback guaranteed to succeed: only uses string literal keys.
		return json.RawMessage(`{"goal":""}`)
	}
	return data
}
