// Package agent wires the exploration subsystems into a stepwise loop:
// estimate uncertainty, pick an action, execute it, grow the state graph,
// prune what stopped being useful, score progress, and recover when stuck.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/traverse/internal/checklist"
	"github.com/rendis/traverse/internal/expressions"
	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/internal/handoff"
	"github.com/rendis/traverse/internal/logging"
	"github.com/rendis/traverse/internal/pruning"
	"github.com/rendis/traverse/internal/recovery"
	"github.com/rendis/traverse/internal/scheduler"
	"github.com/rendis/traverse/internal/streaming"
	"github.com/rendis/traverse/internal/uncertainty"
	"github.com/rendis/traverse/pkg/schema"
)

// stuckPatience is how many consecutive steps without checklist progress are
// tolerated before the stuck check can fire.
const stuckPatience = 3

// RunResult is the outcome of one task run.
type RunResult struct {
	Task             string              `json:"task"`
	RunID            string              `json:"run_id"`
	Success          bool                `json:"success"`
	StepsTaken       int                 `json:"steps_taken"`
	FinalScore       float64             `json:"final_checklist_score"`
	FinalProgress    float64             `json:"final_checklist_progress"`
	Trajectory       []schema.StepRecord `json:"trajectory"`
	PrunedStates     int                 `json:"pruned_states"`
	RecoveryAttempts int                 `json:"recovery_attempts"`
	AwaitingHuman    bool                `json:"awaiting_human"`
	Escalation       json.RawMessage     `json:"escalation,omitempty"`
	GraphStats       schema.GraphStats   `json:"graph_stats"`
}

// Agent runs tasks against an environment through an ActionExecutor,
// allocating compute per step from vote-distribution uncertainty.
// One agent drives one run at a time; Run and MaintenanceSweep serialize on
// an internal mutex, everything else is single-caller by contract.
type Agent struct {
	cfg      Config
	logger   *slog.Logger
	executor ActionExecutor
	hub      streaming.EventHub
	rng      *rand.Rand
	runMu    sync.Mutex

	estimator *uncertainty.Estimator
	graph     *graph.StateGraph
	pruner    *pruning.Manager
	evaluator *checklist.Evaluator
	recoverer *recovery.Manager

	task       *schema.TaskDefinition
	trajectory []schema.StepRecord
	lastReport *schema.ChecklistReport
	pruneCtx   *pruning.Context

	currentStep          int
	lastStateID          *schema.StateID
	lastProgress         float64
	stepsWithoutProgress int
	retryCount           int
	prunedStates         int
	recoveryAttempts     int
	lastCandidates       []string
	escalation           json.RawMessage
}

// New creates an agent with the given config. A nil logger falls back to
// slog.Default; the executor defaults to the simulation stub until
// SetExecutor is called.
func New(cfg Config, logger *slog.Logger) (*Agent, error) {
	cfg = cfg.normalized()
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	registry, err := expressions.NewRegistry()
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:       cfg,
		logger:    logger,
		executor:  SimulatedExecutor{},
		rng:       rand.New(rand.NewSource(seed)),
		estimator: uncertainty.NewEstimator(uncertainty.NewSimulatedSampler(seed), cfg.MaxSamples).WithConcurrency(cfg.SampleConcurrency),
		graph:     graph.New(),
		pruner:    pruning.NewManager(),
		evaluator: checklist.NewEvaluator(registry),
		recoverer: recovery.NewManager(cfg.RecoveryMaxRetries),
	}
	a.pruner.SetupDefault()
	return a, nil
}

// SetExecutor replaces the environment executor.
func (a *Agent) SetExecutor(executor ActionExecutor) {
	if executor != nil {
		a.executor = executor
	}
}

// SetEventHub attaches a hub that receives run events as they happen.
// Without one the agent stays silent.
func (a *Agent) SetEventHub(hub streaming.EventHub) {
	a.hub = hub
}

// publish emits a run event on the attached hub. Publishing is best effort;
// a full subscriber or a cancelled context never stalls the run.
func (a *Agent) publish(ctx context.Context, eventType string, payload any) {
	if a.hub == nil {
		return
	}
	_ = a.hub.Publish(ctx, streaming.RunEvent{
		RunID:     logging.RunID(ctx),
		Step:      a.currentStep,
		EventType: eventType,
		Payload:   payload,
	})
}

// Graph exposes the state graph for inspection.
func (a *Agent) Graph() *graph.StateGraph { return a.graph }

// Pruner exposes the pruning manager for inspection.
func (a *Agent) Pruner() *pruning.Manager { return a.pruner }

// Evaluator exposes the checklist evaluator for inspection.
func (a *Agent) Evaluator() *checklist.Evaluator { return a.evaluator }

// Trajectory returns a copy of the steps taken so far.
func (a *Agent) Trajectory() []schema.StepRecord {
	out := make([]schema.StepRecord, len(a.trajectory))
	copy(out, a.trajectory)
	return out
}

// ValidateResolution checks a human operator's chosen action against the
// candidates offered at the last step before escalation.
// MaintenanceSweep returns a sweep that prunes every active state through the
// manager and logs a stats snapshot. It takes the run mutex, so a sweep firing
// mid-run waits for the run to finish rather than racing the graph.
func (a *Agent) MaintenanceSweep() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		a.runMu.Lock()
		defer a.runMu.Unlock()
		return scheduler.PruneSweep(a.graph, a.pruner, a.pruneCtx, a.logger)(ctx)
	}
}

func (a *Agent) ValidateResolution(choice string) error {
	return handoff.ValidateResolution(a.lastCandidates, choice)
}

// Run executes a task to completion, step budget exhaustion, or a
// human-in-loop escalation.
func (a *Agent) Run(ctx context.Context, task *schema.TaskDefinition) (*RunResult, error) {
	if task == nil || task.Goal == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "task definition requires a goal")
	}
	a.runMu.Lock()
	defer a.runMu.Unlock()
	a.reset()
	a.task = task
	a.applyTaskOverrides(task)

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	result := &RunResult{Task: task.Goal, RunID: runID}

	if !a.cfg.DisableChecklist {
		if _, err := a.evaluator.ForTask(task); err != nil {
			return nil, err
		}
	}

	a.pruneCtx = pruning.NewContext()
	a.pruneCtx.TaskDescription = task.Goal
	a.pruneCtx.MaxSteps = a.cfg.MaxSteps

	rootID := a.graph.AddState(task.Goal, "start", map[string]any{"task": task.Goal}, time.Now())
	a.lastStateID = &rootID

	a.logger.InfoContext(ctx, "starting task", slog.String("goal", task.Goal), slog.String("type", string(task.Type)))
	a.publish(ctx, streaming.EventRunStarted, map[string]any{"goal": task.Goal, "type": string(task.Type)})

	for a.currentStep < a.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			a.finalize(result)
			return result, schema.NewError(schema.ErrCodeCancelled, "run cancelled").WithCause(err)
		}
		if cl := a.evaluator.Current(); cl != nil && cl.IsComplete() {
			result.Success = true
			break
		}

		stepCtx := logging.WithStep(ctx, a.currentStep)
		step := a.executeStep(stepCtx)
		a.trajectory = append(a.trajectory, step)
		result.StepsTaken = a.currentStep

		if !a.cfg.DisableRecovery && a.isStuck() {
			a.logger.WarnContext(stepCtx, "stuck condition detected",
				slog.Float64("progress", a.lastProgress),
				slog.Float64("uncertainty", step.Uncertainty))
			if !a.recover(stepCtx) {
				result.AwaitingHuman = true
				break
			}
		}
	}

	a.finalize(result)
	a.logger.InfoContext(ctx, "task finished",
		slog.Bool("success", result.Success),
		slog.Int("steps", result.StepsTaken),
		slog.Float64("score", result.FinalScore),
		slog.Int("pruned_states", result.PrunedStates))
	a.publish(ctx, streaming.EventRunFinished, map[string]any{
		"success":     result.Success,
		"steps_taken": result.StepsTaken,
		"final_score": result.FinalScore,
	})
	return result, nil
}

func (a *Agent) finalize(result *RunResult) {
	result.Trajectory = a.Trajectory()
	result.PrunedStates = a.prunedStates
	result.RecoveryAttempts = a.recoveryAttempts
	result.Escalation = a.escalation
	result.GraphStats = a.graph.Stats()
	if cl := a.evaluator.Current(); cl != nil {
		result.FinalScore = cl.Score()
		result.FinalProgress = cl.Progress()
	}
}

func (a *Agent) applyTaskOverrides(task *schema.TaskDefinition) {
	if task.MaxSteps > 0 {
		a.cfg.MaxSteps = task.MaxSteps
	}
	if task.MinSamples > 0 {
		a.cfg.MinSamples = task.MinSamples
	}
	if task.MaxSamples > 0 {
		a.cfg.MaxSamples = task.MaxSamples
	}
	if a.cfg.MaxSamples < a.cfg.MinSamples {
		a.cfg.MaxSamples = a.cfg.MinSamples
	}
	if task.UncertaintyThreshold > 0 {
		a.cfg.UncertaintyThreshold = task.UncertaintyThreshold
	}
}

// executeStep runs one iteration of the loop: budget, candidates, action,
// graph update, pruning, checklist scoring.
func (a *Agent) executeStep(ctx context.Context) schema.StepRecord {
	observation := a.lastObservation()

	votes := a.estimator.GenerateVotes(ctx, observation, a.cfg.MinSamples, nil)
	stats := a.estimator.Stats(votes)
	budget := a.estimator.ComputeBudget(stats, a.cfg.MinSamples, a.cfg.MaxSamples)

	candidates := a.generateCandidates(observation, budget)
	a.lastCandidates = candidates
	action := a.selectAction(ctx, observation, candidates, stats.Uncertainty)
	outcome := a.executeAction(ctx, action)

	step := schema.StepRecord{
		Index:            a.currentStep,
		ActionLabel:      action,
		Observation:      outcome.Observation,
		Timestamp:        time.Now(),
		Metadata:         outcome.Metadata,
		Uncertainty:      stats.Uncertainty,
		UncertaintyStats: stats,
		ComputeBudget:    budget,
		Success:          outcome.Success,
	}
	if step.Metadata == nil {
		step.Metadata = make(map[string]any)
	}
	step.Metadata["success"] = outcome.Success

	a.recordInGraph(ctx, &step)
	pruned := a.pruneExposedBranches(ctx)
	a.prunedStates += pruned

	a.scoreStep(ctx, &step)

	a.logger.DebugContext(ctx, "step executed",
		slog.String("action", action),
		slog.Float64("uncertainty", step.Uncertainty),
		slog.Int("budget", budget),
		slog.Int("pruned", pruned))
	a.publish(ctx, streaming.EventStepExecuted, map[string]any{
		"action":      action,
		"uncertainty": step.Uncertainty,
		"budget":      budget,
		"success":     step.Success,
	})

	a.currentStep++
	return step
}

func (a *Agent) lastObservation() string {
	if n := len(a.trajectory); n > 0 && a.trajectory[n-1].Observation != "" {
		return a.trajectory[n-1].Observation
	}
	return a.task.Goal
}

var candidateSets = map[string][]string{
	"search": {"type_query", "press_enter", "click_result", "scroll_down", "go_back", "wait"},
	"form":   {"fill_field", "submit_form", "clear_field", "validate_input", "scroll_down", "go_back"},
	"click":  {"click_button", "fill_form", "scroll_down", "wait", "go_back", "take_screenshot"},
}

var defaultCandidates = []string{"navigate", "click", "type", "scroll", "wait", "go_back", "take_screenshot"}

// generateCandidates proposes actions for the current observation, capped by
// the compute budget but never fewer than three.
func (a *Agent) generateCandidates(observation string, budget int) []string {
	lower := strings.ToLower(observation)
	var pool []string
	switch {
	case strings.Contains(lower, "search"):
		pool = candidateSets["search"]
	case strings.Contains(lower, "form"):
		pool = candidateSets["form"]
	case strings.Contains(lower, "button") || strings.Contains(lower, "click"):
		pool = candidateSets["click"]
	default:
		pool = defaultCandidates
	}

	shuffled := make([]string, len(pool))
	copy(shuffled, pool)
	a.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	limit := budget
	if limit > len(shuffled) {
		limit = len(shuffled)
	}
	if limit < 3 {
		limit = 3
	}
	if limit > len(shuffled) {
		limit = len(shuffled)
	}
	return shuffled[:limit]
}

// selectAction picks greedily at low uncertainty and by ensemble vote above
// the threshold.
func (a *Agent) selectAction(ctx context.Context, observation string, candidates []string, unc float64) string {
	if len(candidates) == 0 {
		return "wait"
	}
	if unc > a.cfg.UncertaintyThreshold {
		votes := a.estimator.GenerateVotes(ctx, observation, a.cfg.MaxSamples, candidates)
		if best, _ := votes.MostCommon(); best != "" {
			return best
		}
	}
	return candidates[0]
}

// executeAction runs the action through the executor, retrying transient
// failures with exponential backoff. Executor errors never propagate; once
// the attempt budget is spent they become unsuccessful results with the
// message in metadata.
func (a *Agent) executeAction(ctx context.Context, action string) schema.ActionResult {
	var outcome schema.ActionResult
	var err error

	for attempt := 0; ; attempt++ {
		outcome, err = a.executor.Execute(ctx, action)
		if err == nil {
			if attempt > 0 {
				if outcome.Metadata == nil {
					outcome.Metadata = make(map[string]any)
				}
				outcome.Metadata["retries"] = attempt
			}
			return outcome
		}
		if attempt >= a.cfg.MaxRetries || !IsRetryableError(err) {
			break
		}
		a.logger.DebugContext(ctx, "retrying action",
			slog.String("action", action), slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
		if waitForBackoff(ctx, retryBackoff(attempt)) != nil {
			break
		}
	}

	a.logger.WarnContext(ctx, "action failed", slog.String("action", action), slog.String("error", err.Error()))
	md := outcome.Metadata
	if md == nil {
		md = make(map[string]any)
	}
	md["error"] = err.Error()
	return schema.ActionResult{
		Observation: "Error: " + err.Error(),
		Success:     false,
		Metadata:    md,
	}
}

func (a *Agent) recordInGraph(ctx context.Context, step *schema.StepRecord) {
	newID := a.graph.AddState(step.Observation, step.ActionLabel, map[string]any{
		"step_index":  step.Index,
		"uncertainty": step.Uncertainty,
		"success":     step.Success,
	}, step.Timestamp)

	a.pruneCtx.UncertaintyScores[newID] = step.Uncertainty
	a.pruneCtx.SuccessHistory[newID] = step.Success

	if a.lastStateID != nil && *a.lastStateID != newID {
		if _, err := a.graph.AddEdge(*a.lastStateID, newID, 1.0-step.Uncertainty, step.Success, step.ActionLabel, nil); err != nil {
			a.logger.WarnContext(ctx, "edge not recorded", slog.String("error", err.Error()))
		}
	}
	a.lastStateID = &newID
}

// pruneExposedBranches evaluates every currently prunable branch through the
// default strategy and prunes the ones it condemns.
func (a *Agent) pruneExposedBranches(ctx context.Context) int {
	a.pruneCtx.CurrentStep = a.currentStep

	prunable := a.graph.GetPrunableBranches()
	ids := make([]schema.StateID, 0, len(prunable))
	for id := range prunable {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pruned := 0
	for _, id := range ids {
		did, err := a.pruner.PruneIfNeeded(id, a.graph, a.pruneCtx, "")
		if err != nil {
			a.logger.WarnContext(ctx, "pruning evaluation failed",
				slog.Int("state_id", int(id)), slog.String("error", err.Error()))
			continue
		}
		if did {
			pruned++
			a.publish(ctx, streaming.EventStatePruned, map[string]any{"state_id": int(id)})
		}
	}
	return pruned
}

func (a *Agent) scoreStep(ctx context.Context, step *schema.StepRecord) {
	if a.cfg.DisableChecklist || a.evaluator.Current() == nil {
		return
	}
	stats := a.graph.Stats()
	data := expressions.BuildScope(step, a.task, &stats, a.lastReport)
	report, err := a.evaluator.EvaluateStep(ctx, data, step.Index)
	if err != nil {
		a.logger.WarnContext(ctx, "checklist evaluation failed", slog.String("error", err.Error()))
		return
	}
	a.lastReport = &report

	step.Metadata["checklist_score"] = report.Score
	step.Metadata["checklist_progress"] = report.Progress

	if report.Progress > a.lastProgress {
		a.lastProgress = report.Progress
		a.stepsWithoutProgress = 0
	} else {
		a.stepsWithoutProgress++
	}
}

// isStuck reports whether progress stalled while uncertainty stayed high.
func (a *Agent) isStuck() bool {
	if a.evaluator.Current() == nil {
		return false
	}
	unc := 0.5
	if n := len(a.trajectory); n > 0 {
		unc = a.trajectory[n-1].Uncertainty
	}
	return a.lastProgress < a.cfg.StuckThreshold &&
		unc > a.cfg.UncertaintyThreshold &&
		a.stepsWithoutProgress >= stuckPatience
}

// recover assesses the stuck state and applies a recovery action. Returns
// false when a human must take over.
func (a *Agent) recover(ctx context.Context) bool {
	unc := 0.5
	if n := len(a.trajectory); n > 0 {
		unc = a.trajectory[n-1].Uncertainty
	}
	situation := recovery.Situation{
		CurrentStep: a.currentStep,
		RetryCount:  a.retryCount,
		Uncertainty: unc,
	}

	action := a.recoverer.AssessFailure(situation)
	a.logger.InfoContext(ctx, "recovery action selected",
		slog.String("recovery_strategy", string(action.Strategy)),
		slog.String("reason", action.Reason))

	a.recoverer.ExecuteRecovery(action, &situation)
	a.recoveryAttempts++
	a.publish(ctx, streaming.EventRecoveryTriggered, map[string]any{
		"recovery_strategy": string(action.Strategy),
		"reason":            action.Reason,
	})

	switch action.Strategy {
	case schema.RecoveryBacktrack:
		if len(a.trajectory) > 1 {
			a.trajectory = a.trajectory[:len(a.trajectory)-1]
			a.currentStep = len(a.trajectory)
			a.stepsWithoutProgress = 0
		}
	case schema.RecoveryRetry:
		a.retryCount = situation.RetryCount
	case schema.RecoveryReset:
		a.trajectory = nil
		a.currentStep = 0
		a.stepsWithoutProgress = 0
		a.retryCount = 0
	case schema.RecoveryHumanInLoop:
		a.escalation = handoff.BuildEscalationContext(handoff.ContextParams{
			Goal:             a.task.Goal,
			LastObservation:  a.lastObservation(),
			StepsTaken:       a.currentStep,
			Progress:         a.lastProgress,
			Uncertainty:      situation.Uncertainty,
			CandidateActions: a.lastCandidates,
			RecoveryAttempts: a.recoveryAttempts,
			Reason:           action.Reason,
		})
		return false
	}

	a.recoverer.RecordAttempt(action, true)
	return true
}

func (a *Agent) reset() {
	a.trajectory = nil
	a.lastReport = nil
	a.currentStep = 0
	a.lastStateID = nil
	a.lastProgress = 0
	a.stepsWithoutProgress = 0
	a.retryCount = 0
	a.prunedStates = 0
	a.recoveryAttempts = 0
	a.lastCandidates = nil
	a.escalation = nil
	a.graph.Reset()
	a.pruner.ClearHistory()
	a.evaluator.Reset()
	a.recoverer.Reset()
}
