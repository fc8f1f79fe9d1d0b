package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/internal/panel"
	"github.com/rendis/traverse/internal/streaming"
	"github.com/rendis/traverse/internal/validation"
	"github.com/rendis/traverse/pkg/schema"
)

// --- Test harness ---

type harness struct {
	t         *testing.T
	agent     *agent.Agent
	hub       *streaming.MemoryHub
	validator *validation.JSONSchemaValidator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := agent.DefaultConfig()
	cfg.MaxSteps = 10
	cfg.Seed = 7

	a, err := agent.New(cfg, nil)
	require.NoError(t, err)

	hub := streaming.NewMemoryHub()
	a.SetEventHub(hub)

	validator, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)

	return &harness{t: t, agent: a, hub: hub, validator: validator}
}

func (h *harness) loadTask(path string) *schema.TaskDefinition {
	h.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(h.t, err)

	var task schema.TaskDefinition
	require.NoError(h.t, json.Unmarshal(data, &task))
	require.NoError(h.t, h.validator.ValidateTask(&task))
	return &task
}

// --- Scenarios ---

func TestExampleTasksRunEndToEnd(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "tasks", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "example task definitions missing")

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			h := newHarness(t)
			task := h.loadTask(path)

			result, err := h.agent.Run(context.Background(), task)
			require.NoError(t, err)

			_, err = uuid.Parse(result.RunID)
			assert.NoError(t, err)

			assert.Equal(t, task.Goal, result.Task)
			assert.LessOrEqual(t, result.StepsTaken, task.MaxSteps)
			assert.NotEmpty(t, result.Trajectory)

			// Root plus one state per recorded step at minimum.
			assert.GreaterOrEqual(t, result.GraphStats.NodeCount, 2)
			assert.Equal(t, result.GraphStats.NodeCount,
				result.GraphStats.ActiveCount+result.GraphStats.PrunedCount)

			for _, step := range result.Trajectory {
				assert.GreaterOrEqual(t, step.ComputeBudget, task.MinSamples)
				assert.LessOrEqual(t, step.ComputeBudget, task.MaxSamples)
				assert.GreaterOrEqual(t, step.Uncertainty, 0.0)
				assert.LessOrEqual(t, step.Uncertainty, 1.0)
			}
		})
	}
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	h := newHarness(t)

	ch, cancel, err := h.hub.Subscribe(context.Background(), streaming.EventFilter{})
	require.NoError(t, err)
	defer cancel()

	result, err := h.agent.Run(context.Background(), &schema.TaskDefinition{
		Goal:     "walk the simulated storefront",
		Type:     schema.TaskTypeNavigation,
		MaxSteps: 3,
	})
	require.NoError(t, err)

	var events []streaming.RunEvent
	for {
		select {
		case evt := <-ch:
			events = append(events, evt)
		default:
			goto drained
		}
	}
drained:
	require.NotEmpty(t, events)
	assert.Equal(t, streaming.EventRunStarted, events[0].EventType)
	assert.Equal(t, streaming.EventRunFinished, events[len(events)-1].EventType)
	for _, evt := range events {
		assert.Equal(t, result.RunID, evt.RunID)
	}
}

func TestPanelServesRunArtifacts(t *testing.T) {
	h := newHarness(t)

	_, err := h.agent.Run(context.Background(), &schema.TaskDefinition{
		Goal:     "inspect the run through the panel",
		MaxSteps: 3,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(panel.NewPanelServer(panel.PanelDeps{
		Agent: h.agent,
		Hub:   h.hub,
	}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	graphStats := stats["graph_stats"].(map[string]any)
	assert.GreaterOrEqual(t, graphStats["node_count"].(float64), float64(2))

	mermaidResp, err := http.Get(srv.URL + "/api/graph/mermaid")
	require.NoError(t, err)
	defer mermaidResp.Body.Close()
	require.Equal(t, http.StatusOK, mermaidResp.StatusCode)

	var body [4096]byte
	n, _ := mermaidResp.Body.Read(body[:])
	assert.Contains(t, string(body[:n]), "graph TD")
}

func TestHostileEnvironmentNeverSucceeds(t *testing.T) {
	h := newHarness(t)

	// Non-retryable failures keep the loop moving without backoff sleeps.
	h.agent.SetExecutor(agent.ExecutorFunc(func(ctx context.Context, action string) (schema.ActionResult, error) {
		return schema.ActionResult{}, schema.NewError(schema.ErrCodeValidation, "environment rejected the action")
	}))

	result, err := h.agent.Run(context.Background(), &schema.TaskDefinition{
		Goal:     "survive a hostile environment",
		MaxSteps: 4,
		Criteria: []schema.CriterionDefinition{
			{Description: "an action succeeded", Weight: 1.0, Engine: schema.EngineExpr, Expression: "step.success == true"},
		},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Zero(t, result.FinalScore)
	for _, step := range result.Trajectory {
		assert.False(t, step.Success)
		assert.Contains(t, step.Observation, "environment rejected the action")
	}
}
