package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/internal/validation"
	"github.com/rendis/traverse/pkg/schema"
)

// scriptedRunner returns canned results keyed by goal, or a fixed error.
type scriptedRunner struct {
	results map[string]*agent.RunResult
	err     error
}

func (s *scriptedRunner) Run(ctx context.Context, task *schema.TaskDefinition) (*agent.RunResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	result, ok := s.results[task.Goal]
	if !ok {
		return nil, fmt.Errorf("no scripted result for %q", task.Goal)
	}
	return result, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAllAggregates(t *testing.T) {
	runner := &scriptedRunner{results: map[string]*agent.RunResult{
		"task a": {
			Success:    true,
			StepsTaken: 4,
			FinalScore: 0.8,
			Trajectory: []schema.StepRecord{{Uncertainty: 0.2}, {Uncertainty: 0.4}},
		},
		"task b": {
			Success:    false,
			StepsTaken: 8,
			FinalScore: 0.2,
			Trajectory: []schema.StepRecord{{Uncertainty: 0.9}},
		},
	}}

	r := NewRunner(runner, quietLogger())
	r.AddTasks([]*schema.TaskDefinition{
		{Goal: "task a"},
		{Goal: "task b"},
	})

	summary := r.RunAll(context.Background())

	assert.Equal(t, 2, summary.TotalTasks)
	assert.Equal(t, 1, summary.SuccessfulTasks)
	assert.InDelta(t, 0.5, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 6.0, summary.AvgSteps, 1e-9)
	assert.InDelta(t, 0.5, summary.AvgChecklistCompletion, 1e-9)
	assert.InDelta(t, (0.3+0.9)/2, summary.AvgUncertainty, 1e-9)
	assert.Len(t, summary.Outcomes, 2)
	assert.Len(t, r.Results(), 2)
}

func TestRunTaskCapturesError(t *testing.T) {
	runner := &scriptedRunner{err: fmt.Errorf("environment down")}

	r := NewRunner(runner, quietLogger())
	outcome := r.RunTask(context.Background(), &schema.TaskDefinition{Goal: "broken"})

	assert.False(t, outcome.Success)
	assert.Equal(t, "environment down", outcome.Error)
	assert.Equal(t, "broken", outcome.Goal)
}

func TestRunAllSurvivesFailingTask(t *testing.T) {
	runner := &scriptedRunner{results: map[string]*agent.RunResult{
		"good": {Success: true, StepsTaken: 3},
	}}

	r := NewRunner(runner, quietLogger())
	r.AddTask(&schema.TaskDefinition{Goal: "unscripted"})
	r.AddTask(&schema.TaskDefinition{Goal: "good"})

	summary := r.RunAll(context.Background())

	require.Equal(t, 2, summary.TotalTasks)
	assert.Equal(t, 1, summary.SuccessfulTasks)
	assert.NotEmpty(t, summary.Outcomes[0].Error)
	assert.Empty(t, summary.Outcomes[1].Error)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)

	assert.Equal(t, 0, summary.TotalTasks)
	assert.Zero(t, summary.SuccessRate)
	assert.Zero(t, summary.AvgSteps)
}

func TestLoadTasksDir(t *testing.T) {
	dir := t.TempDir()
	taskJSON := `{"goal": "reach the checkout page", "type": "navigation", "max_steps": 5}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-task.json"), []byte(taskJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	tasks, err := LoadTasksDir(dir, v)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "reach the checkout page", tasks[0].Goal)
	assert.Equal(t, 5, tasks[0].MaxSteps)
}

func TestLoadTasksDirRejectsInvalidTask(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"max_steps": 5}`), 0o644))

	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	_, err = LoadTasksDir(dir, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestLoadTasksDirEmpty(t *testing.T) {
	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	_, err = LoadTasksDir(t.TempDir(), v)
	require.Error(t, err)
}

func TestSaveSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	summary := Summarize([]TaskOutcome{{Goal: "task a", Success: true, StepsTaken: 2}})

	require.NoError(t, SaveSummary(summary, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success_rate": 1`)
	assert.Contains(t, string(data), "task a")
}

func TestBenchmarkWithAgent(t *testing.T) {
	a, err := agent.New(agent.Config{MaxSteps: 5, Seed: 11}, quietLogger())
	require.NoError(t, err)

	r := NewRunner(a, quietLogger())
	r.AddTask(&schema.TaskDefinition{Goal: "find the search results", Type: schema.TaskTypeSearch})

	summary := r.RunAll(context.Background())

	require.Equal(t, 1, summary.TotalTasks)
	outcome := summary.Outcomes[0]
	assert.Empty(t, outcome.Error)
	assert.LessOrEqual(t, outcome.StepsTaken, 5)
	assert.GreaterOrEqual(t, outcome.AvgUncertainty, 0.0)
	assert.LessOrEqual(t, outcome.AvgUncertainty, 1.0)
}
