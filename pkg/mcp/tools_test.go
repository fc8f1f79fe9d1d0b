package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/pkg/schema"
)

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

func newTestServer(t *testing.T) *TraverseServer {
	t.Helper()
	cfg := agent.DefaultConfig()
	cfg.MaxSteps = 4
	cfg.Seed = 42
	a, err := agent.New(cfg, nil)
	require.NoError(t, err)
	s, err := NewTraverseServer(TraverseServerDeps{Agent: a})
	require.NoError(t, err)
	return s
}

// --- Tests ---

func TestRunTool(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("traverse.run", map[string]any{
		"task": map[string]any{
			"goal": "take a single step",
			"criteria": []any{
				map[string]any{
					"description": "any step taken",
					"weight":      1.0,
					"expression":  "step.index >= 0",
				},
			},
		},
	})

	result, err := s.handleRun(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	var run agent.RunResult
	unmarshalResult(t, result, &run)
	assert.True(t, run.Success)
	assert.Equal(t, 1, run.StepsTaken)
	assert.NotEmpty(t, run.RunID)
}

func TestRunToolMissingTask(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRun(context.Background(), buildRequest("traverse.run", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRunToolInvalidTask(t *testing.T) {
	s := newTestServer(t)

	// No goal fails schema validation before the agent runs.
	req := buildRequest("traverse.run", map[string]any{
		"task": map[string]any{"type": "navigation"},
	})
	result, err := s.handleRun(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "validation")
}

func TestStatsTool(t *testing.T) {
	s := newTestServer(t)

	// Populate the graph with a short run first.
	runReq := buildRequest("traverse.run", map[string]any{
		"task": map[string]any{"goal": "populate the graph"},
	})
	runResult, err := s.handleRun(context.Background(), runReq)
	require.NoError(t, err)
	require.False(t, runResult.IsError)

	result, err := s.handleStats(context.Background(), buildRequest("traverse.stats", map[string]any{}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		GraphStats   schema.GraphStats               `json:"graph_stats"`
		PruningStats map[string]schema.StrategyStats `json:"pruning_stats"`
	}
	unmarshalResult(t, result, &payload)
	assert.GreaterOrEqual(t, payload.GraphStats.NodeCount, 1)
	assert.Contains(t, payload.PruningStats, "DefaultComposite")
	assert.NotContains(t, extractText(t, result), `"dump"`)

	// With the dump flag the full graph is included.
	result, err = s.handleStats(context.Background(),
		buildRequest("traverse.stats", map[string]any{"include_dump": "true"}))
	require.NoError(t, err)
	assert.Contains(t, extractText(t, result), `"dump"`)
}

func TestEvaluateTool(t *testing.T) {
	s := newTestServer(t)

	runReq := buildRequest("traverse.run", map[string]any{
		"task": map[string]any{"goal": "populate the graph"},
	})
	runResult, err := s.handleRun(context.Background(), runReq)
	require.NoError(t, err)
	require.False(t, runResult.IsError)

	req := buildRequest("traverse.evaluate", map[string]any{"state_id": float64(0)})
	result, err := s.handleEvaluate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decision schema.PruningDecision
	unmarshalResult(t, result, &decision)
	assert.NotEmpty(t, decision.StrategyName)
	assert.NotEmpty(t, decision.Reason)
}

func TestEvaluateToolMissingStateID(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleEvaluate(context.Background(), buildRequest("traverse.evaluate", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestEvaluateToolUnknownStrategy(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("traverse.evaluate", map[string]any{
		"state_id": float64(0),
		"strategy": "NoSuchStrategy",
	})
	result, err := s.handleEvaluate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestBudgetTool(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("traverse.budget", map[string]any{
		"votes": map[string]any{
			"click_button": float64(4),
			"scroll_down":  float64(1),
		},
		"min_samples": float64(5),
		"max_samples": float64(15),
	})
	result, err := s.handleBudget(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		Stats  schema.UncertaintyStats `json:"uncertainty_stats"`
		Budget int                     `json:"compute_budget"`
	}
	unmarshalResult(t, result, &payload)

	// 4/1 split: entropy 0.7219 bits, confidence 0.8, budget 9 at (5, 15).
	assert.InDelta(t, 0.7219, payload.Stats.Entropy, 0.001)
	assert.InDelta(t, 0.8, payload.Stats.Confidence, 1e-9)
	assert.Equal(t, 9, payload.Budget)
}

func TestBudgetToolDefaults(t *testing.T) {
	s := newTestServer(t)

	req := buildRequest("traverse.budget", map[string]any{
		"votes": map[string]any{"wait": float64(3)},
	})
	result, err := s.handleBudget(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var payload struct {
		Budget int `json:"compute_budget"`
	}
	unmarshalResult(t, result, &payload)

	// Unanimous votes carry zero entropy: the budget stays at the floor.
	assert.Equal(t, 3, payload.Budget)
}

func TestBudgetToolBadVotes(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleBudget(context.Background(), buildRequest("traverse.budget", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	req := buildRequest("traverse.budget", map[string]any{
		"votes": map[string]any{"wait": "three"},
	})
	result, err = s.handleBudget(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)

	req = buildRequest("traverse.budget", map[string]any{
		"votes":       map[string]any{"wait": float64(3)},
		"min_samples": float64(10),
		"max_samples": float64(2),
	})
	result, err = s.handleBudget(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
