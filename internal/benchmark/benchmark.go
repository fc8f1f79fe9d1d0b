// Package benchmark runs suites of exploration tasks through the agent and
// aggregates the outcomes into comparable metrics.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/internal/validation"
	"github.com/rendis/traverse/pkg/schema"
)

// TaskRunner executes one task definition. *agent.Agent satisfies it.
type TaskRunner interface {
	Run(ctx context.Context, task *schema.TaskDefinition) (*agent.RunResult, error)
}

// TaskOutcome is the measured result of one task execution.
type TaskOutcome struct {
	Goal                string  `json:"goal"`
	Success             bool    `json:"success"`
	StepsTaken          int     `json:"steps_taken"`
	ExecutionSeconds    float64 `json:"execution_seconds"`
	ChecklistCompletion float64 `json:"checklist_completion"`
	AvgUncertainty      float64 `json:"avg_uncertainty"`
	PrunedStates        int     `json:"pruned_states"`
	RecoveryAttempts    int     `json:"recovery_attempts"`
	Error               string  `json:"error,omitempty"`
}

// Summary aggregates the outcomes of one benchmark pass.
type Summary struct {
	TotalTasks             int           `json:"total_tasks"`
	SuccessfulTasks        int           `json:"successful_tasks"`
	SuccessRate            float64       `json:"success_rate"`
	AvgSteps               float64       `json:"avg_steps"`
	AvgExecutionSeconds    float64       `json:"avg_execution_seconds"`
	AvgChecklistCompletion float64       `json:"avg_checklist_completion"`
	AvgUncertainty         float64       `json:"avg_uncertainty"`
	Outcomes               []TaskOutcome `json:"task_results"`
	Timestamp              time.Time     `json:"timestamp"`
}

// Runner executes registered tasks sequentially through one TaskRunner.
type Runner struct {
	runner  TaskRunner
	logger  *slog.Logger
	tasks   []*schema.TaskDefinition
	results []TaskOutcome
}

// NewRunner creates a benchmark runner. A nil logger falls back to
// slog.Default.
func NewRunner(runner TaskRunner, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{runner: runner, logger: logger}
}

// AddTask registers one task for the next RunAll pass.
func (r *Runner) AddTask(task *schema.TaskDefinition) {
	r.tasks = append(r.tasks, task)
}

// AddTasks registers multiple tasks.
func (r *Runner) AddTasks(tasks []*schema.TaskDefinition) {
	r.tasks = append(r.tasks, tasks...)
}

// RunTask executes one task and measures it. Run errors are captured in the
// outcome rather than propagated, so a failing task never aborts the suite.
func (r *Runner) RunTask(ctx context.Context, task *schema.TaskDefinition) TaskOutcome {
	start := time.Now()
	outcome := TaskOutcome{Goal: task.Goal}

	result, err := r.runner.Run(ctx, task)
	outcome.ExecutionSeconds = time.Since(start).Seconds()
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = result.Success
	outcome.StepsTaken = result.StepsTaken
	outcome.ChecklistCompletion = result.FinalScore
	outcome.AvgUncertainty = avgUncertainty(result.Trajectory)
	outcome.PrunedStates = result.PrunedStates
	outcome.RecoveryAttempts = result.RecoveryAttempts
	return outcome
}

// RunAll executes every registered task and returns the aggregated summary.
func (r *Runner) RunAll(ctx context.Context) Summary {
	r.results = r.results[:0]
	for _, task := range r.tasks {
		r.logger.InfoContext(ctx, "running benchmark task", slog.String("goal", task.Goal))
		r.results = append(r.results, r.RunTask(ctx, task))
	}
	return Summarize(r.results)
}

// Results returns a copy of the outcomes from the last RunAll pass.
func (r *Runner) Results() []TaskOutcome {
	out := make([]TaskOutcome, len(r.results))
	copy(out, r.results)
	return out
}

// ClearResults drops stored outcomes.
func (r *Runner) ClearResults() {
	r.results = nil
}

// Summarize aggregates outcomes. An empty slice yields a zero summary.
func Summarize(outcomes []TaskOutcome) Summary {
	s := Summary{
		TotalTasks: len(outcomes),
		Outcomes:   outcomes,
		Timestamp:  time.Now().UTC(),
	}
	if len(outcomes) == 0 {
		return s
	}

	var steps, execSeconds, completion, uncertainty float64
	for _, o := range outcomes {
		if o.Success {
			s.SuccessfulTasks++
		}
		steps += float64(o.StepsTaken)
		execSeconds += o.ExecutionSeconds
		completion += o.ChecklistCompletion
		uncertainty += o.AvgUncertainty
	}

	n := float64(len(outcomes))
	s.SuccessRate = float64(s.SuccessfulTasks) / n
	s.AvgSteps = steps / n
	s.AvgExecutionSeconds = execSeconds / n
	s.AvgChecklistCompletion = completion / n
	s.AvgUncertainty = uncertainty / n
	return s
}

func avgUncertainty(steps []schema.StepRecord) float64 {
	if len(steps) == 0 {
		return 0.0
	}
	total := 0.0
	for _, step := range steps {
		total += step.Uncertainty
	}
	return total / float64(len(steps))
}

// LoadTasksDir loads and validates every .json task definition under dir, in
// file-name order.
func LoadTasksDir(dir string, v validation.Validator) ([]*schema.TaskDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read task directory: %w", err)
	}

	var tasks []*schema.TaskDefinition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read task %s: %w", entry.Name(), err)
		}
		var task schema.TaskDefinition
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("parse task %s: %w", entry.Name(), err)
		}
		if err := v.ValidateTask(&task); err != nil {
			return nil, fmt.Errorf("invalid task %s: %w", entry.Name(), err)
		}
		tasks = append(tasks, &task)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no task definitions found under %s", dir)
	}
	return tasks, nil
}

// SaveSummary writes the summary as indented JSON.
func SaveSummary(s Summary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
