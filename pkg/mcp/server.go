// Package mcp exposes the exploration engine over the Model Context
// Protocol: run tasks, inspect graph and pruning state, and size compute
// budgets from vote distributions.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/internal/validation"
)

// TraverseServerDeps holds the dependencies for creating a TraverseServer.
// Nil fields get working defaults.
type TraverseServerDeps struct {
	Agent     *agent.Agent
	Validator validation.Validator
	Logger    *slog.Logger
}

// TraverseServer wraps an MCP server with exploration tool handlers.
type TraverseServer struct {
	// mu serializes tool handlers; the agent is single-run by contract.
	mu        sync.Mutex
	agent     *agent.Agent
	validator validation.Validator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewTraverseServer creates a server with all 4 tools registered.
func NewTraverseServer(deps TraverseServerDeps) (*TraverseServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	a := deps.Agent
	if a == nil {
		var err error
		a, err = agent.New(agent.DefaultConfig(), logger)
		if err != nil {
			return nil, err
		}
	}

	v := deps.Validator
	if v == nil {
		var err error
		v, err = validation.NewJSONSchemaValidator()
		if err != nil {
			return nil, err
		}
	}

	s := &TraverseServer{
		agent:     a,
		validator: v,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"traverse",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Traverse is an adaptive exploration engine for stepwise agents. Use traverse.run to execute a task definition, traverse.stats to inspect the state graph and pruning history, traverse.evaluate to get a pruning verdict for a state, and traverse.budget to size a compute budget from a vote distribution."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *TraverseServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *TraverseServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 4 registered MCP tools as ServerTool entries.
func (s *TraverseServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: statsTool(), Handler: s.handleStats},
		{Tool: evaluateTool(), Handler: s.handleEvaluate},
		{Tool: budgetTool(), Handler: s.handleBudget},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("traverse.run",
		mcp.WithDescription("Run a task definition through the exploration loop"),
		mcp.WithObject("task", mcp.Required(), mcp.Description("Task definition (goal, type, criteria, sampling bounds)")),
	)
}

func statsTool() mcp.Tool {
	return mcp.NewTool("traverse.stats",
		mcp.WithDescription("Get state graph statistics and pruning strategy counters"),
		mcp.WithString("include_dump", mcp.Description("Include the full graph dump (default: false)")),
	)
}

func evaluateTool() mcp.Tool {
	return mcp.NewTool("traverse.evaluate",
		mcp.WithDescription("Evaluate a state through a pruning strategy without mutating the graph"),
		mcp.WithNumber("state_id", mcp.Required(), mcp.Description("ID of the state to evaluate")),
		mcp.WithString("strategy", mcp.Description("Strategy name (default: the registered default)")),
	)
}

func budgetTool() mcp.Tool {
	return mcp.NewTool("traverse.budget",
		mcp.WithDescription("Compute uncertainty statistics and a compute budget from a vote distribution"),
		mcp.WithObject("votes", mcp.Required(), mcp.Description("Vote counts keyed by candidate action")),
		mcp.WithString("observation", mcp.Description("Observation the votes were sampled for")),
		mcp.WithNumber("min_samples", mcp.Description("Budget floor (default: 3)")),
		mcp.WithNumber("max_samples", mcp.Description("Budget ceiling (default: 20)")),
	)
}
