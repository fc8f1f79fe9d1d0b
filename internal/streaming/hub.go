package streaming

import "context"

// Event types emitted over the hub during an exploration run.
const (
	EventRunStarted        = "run_started"
	EventStepExecuted      = "step_executed"
	EventStatePruned       = "state_pruned"
	EventRecoveryTriggered = "recovery_triggered"
	EventRunFinished       = "run_finished"
)

// RunEvent is a real-time event emitted during an exploration run.
type RunEvent struct {
	RunID     string `json:"run_id"`
	Step      int    `json:"step"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
// FromStep drops events below the given step index; zero matches everything.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
	FromStep   int      `json:"from_step,omitempty"`
}

// EventHub provides pub/sub for real-time run events.
type EventHub interface {
	Publish(ctx context.Context, event RunEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan RunEvent, func(), error)
}
