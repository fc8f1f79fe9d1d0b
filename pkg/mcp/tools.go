package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/traverse/internal/pruning"
	"github.com/rendis/traverse/internal/uncertainty"
	"github.com/rendis/traverse/pkg/schema"
)

// handleRun validates and executes a task definition.
func (s *TraverseServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskRaw := mcp.ParseStringMap(req, "task", nil)
	if taskRaw == nil {
		return mcp.NewToolResultError("task is required"), nil
	}

	// Marshal then unmarshal to get a proper TaskDefinition.
	taskBytes, marshalErr := json.Marshal(taskRaw)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid task: %v", marshalErr)), nil
	}
	var def schema.TaskDefinition
	if unmarshalErr := json.Unmarshal(taskBytes, &def); unmarshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid task: %v", unmarshalErr)), nil
	}

	if valErr := s.validator.ValidateTask(&def); valErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("task validation failed: %v", valErr)), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, runErr := s.agent.Run(ctx, &def)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("task run failed: %v", runErr)), nil
	}
	return marshalResult(result)
}

// handleStats reports graph statistics and pruning counters.
func (s *TraverseServer) handleStats(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response := map[string]any{
		"graph_stats":    s.agent.Graph().Stats(),
		"pruning_stats":  s.agent.Pruner().Stats(),
		"pruned_history": len(s.agent.Pruner().History()),
	}
	if req.GetString("include_dump", "false") == "true" {
		response["dump"] = s.agent.Graph().Dump()
	}
	return marshalResult(response)
}

// handleEvaluate runs one pruning evaluation without touching the graph.
func (s *TraverseServer) handleEvaluate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stateID, ok := intArg(req, "state_id")
	if !ok {
		return mcp.NewToolResultError("state_id is required"), nil
	}
	strategyName := req.GetString("strategy", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	pctx := pruning.NewContext()
	pctx.CurrentStep = len(s.agent.Trajectory())

	decision, err := s.agent.Pruner().Evaluate(schema.StateID(stateID), s.agent.Graph(), pctx, strategyName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", err)), nil
	}
	return marshalResult(decision)
}

// handleBudget turns a vote distribution into uncertainty stats and a budget.
func (s *TraverseServer) handleBudget(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	votesRaw := mcp.ParseStringMap(req, "votes", nil)
	if len(votesRaw) == 0 {
		return mcp.NewToolResultError("votes is required"), nil
	}

	votes := schema.NewVoteDistribution(req.GetString("observation", ""))
	for action, raw := range votesRaw {
		count, ok := toInt(raw)
		if !ok || count < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("votes[%q] must be a non-negative integer", action)), nil
		}
		for i := 0; i < count; i++ {
			votes.AddVote(action)
		}
	}

	minSamples, ok := intArg(req, "min_samples")
	if !ok {
		minSamples = 3
	}
	maxSamples, ok := intArg(req, "max_samples")
	if !ok {
		maxSamples = 20
	}
	if maxSamples < minSamples {
		return mcp.NewToolResultError("max_samples must not be below min_samples"), nil
	}

	estimator := uncertainty.NewEstimator(nil, maxSamples)
	stats := estimator.Stats(votes)
	budget := estimator.ComputeBudget(stats, minSamples, maxSamples)

	return marshalResult(map[string]any{
		"uncertainty_stats": stats,
		"compute_budget":    budget,
	})
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, name string) (int, bool) {
	v, ok := req.GetArguments()[name]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
