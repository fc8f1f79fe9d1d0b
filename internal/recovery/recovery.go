// Package recovery decides how the agent reacts to failures: retry while
// budget remains, escalate to a human at high uncertainty, otherwise
// backtrack or reset.
package recovery

import (
	"fmt"

	"github.com/rendis/traverse/pkg/schema"
)

// Situation is the mutable failure context a recovery action is applied to.
type Situation struct {
	CurrentStep       int
	RetryCount        int
	Uncertainty       float64
	AlternativeAction string
	AwaitingHuman     bool
	ResetRequested    bool
}

// Handler applies one recovery strategy to the situation.
type Handler func(action schema.RecoveryAction, s *Situation)

// Attempt is one recorded recovery outcome.
type Attempt struct {
	Strategy schema.RecoveryStrategy `json:"strategy"`
	Success  bool                    `json:"success"`
	Reason   string                  `json:"reason"`
}

// Manager assesses failures, executes recovery actions, and tracks how well
// each strategy has worked.
type Manager struct {
	maxRetries int
	history    []Attempt
	handlers   map[schema.RecoveryStrategy]Handler
}

// NewManager creates a manager with the default handlers. maxRetries <= 0
// falls back to 3.
func NewManager(maxRetries int) *Manager {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	m := &Manager{
		maxRetries: maxRetries,
		handlers:   make(map[schema.RecoveryStrategy]Handler),
	}
	m.handlers[schema.RecoveryRetry] = func(_ schema.RecoveryAction, s *Situation) {
		s.RetryCount++
	}
	m.handlers[schema.RecoveryBacktrack] = func(action schema.RecoveryAction, s *Situation) {
		if action.TargetStep != nil {
			s.CurrentStep = *action.TargetStep
			s.RetryCount = 0
		}
	}
	m.handlers[schema.RecoveryBranch] = func(action schema.RecoveryAction, s *Situation) {
		s.AlternativeAction = action.AlternativeAction
		s.RetryCount = 0
	}
	m.handlers[schema.RecoveryHumanInLoop] = func(_ schema.RecoveryAction, s *Situation) {
		s.AwaitingHuman = true
	}
	m.handlers[schema.RecoveryReset] = func(_ schema.RecoveryAction, s *Situation) {
		s.ResetRequested = true
	}
	return m
}

// RegisterHandler replaces the handler for a strategy.
func (m *Manager) RegisterHandler(strategy schema.RecoveryStrategy, handler Handler) {
	m.handlers[strategy] = handler
}

// AssessFailure picks a recovery action for the situation. Retries are
// preferred while budget remains; high uncertainty escalates to a human;
// otherwise the agent backtracks one step, or resets when already at the
// start.
func (m *Manager) AssessFailure(s Situation) schema.RecoveryAction {
	switch {
	case s.RetryCount < m.maxRetries:
		return schema.RecoveryAction{
			Strategy: schema.RecoveryRetry,
			Reason:   fmt.Sprintf("retry attempt %d/%d", s.RetryCount+1, m.maxRetries),
		}
	case s.Uncertainty > 0.8:
		return schema.RecoveryAction{
			Strategy: schema.RecoveryHumanInLoop,
			Reason:   "high uncertainty - need human guidance",
		}
	case s.CurrentStep > 0:
		target := s.CurrentStep - 1
		return schema.RecoveryAction{
			Strategy:   schema.RecoveryBacktrack,
			TargetStep: &target,
			Reason:     "max retries exceeded - backtracking",
		}
	default:
		return schema.RecoveryAction{
			Strategy: schema.RecoveryReset,
			Reason:   "unable to recover - resetting",
		}
	}
}

// ExecuteRecovery applies the action's handler to the situation. Unknown
// strategies leave the situation untouched.
func (m *Manager) ExecuteRecovery(action schema.RecoveryAction, s *Situation) {
	if handler, ok := m.handlers[action.Strategy]; ok {
		handler(action, s)
	}
}

// RecordAttempt logs a recovery outcome.
func (m *Manager) RecordAttempt(action schema.RecoveryAction, success bool) {
	m.history = append(m.history, Attempt{
		Strategy: action.Strategy,
		Success:  success,
		Reason:   action.Reason,
	})
}

// SuccessRate returns the success share of recorded attempts, filtered to one
// strategy when given, 0 with no matching attempts.
func (m *Manager) SuccessRate(strategy schema.RecoveryStrategy) float64 {
	total, successes := 0, 0
	for _, attempt := range m.history {
		if strategy != "" && attempt.Strategy != strategy {
			continue
		}
		total++
		if attempt.Success {
			successes++
		}
	}
	if total == 0 {
		return 0.0
	}
	return float64(successes) / float64(total)
}

// History returns a copy of the recorded attempts.
func (m *Manager) History() []Attempt {
	out := make([]Attempt, len(m.history))
	copy(out, m.history)
	return out
}

// Reset clears the attempt history.
func (m *Manager) Reset() {
	m.history = nil
}
