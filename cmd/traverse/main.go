// traverse runs exploration tasks against a simulated environment, or serves
// the engine over MCP stdio with -mcp.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/internal/benchmark"
	"github.com/rendis/traverse/internal/diagram"
	"github.com/rendis/traverse/internal/logging"
	"github.com/rendis/traverse/internal/panel"
	"github.com/rendis/traverse/internal/scheduler"
	"github.com/rendis/traverse/internal/streaming"
	"github.com/rendis/traverse/internal/validation"
	"github.com/rendis/traverse/pkg/mcp"
	"github.com/rendis/traverse/pkg/schema"
)

func main() {
	cfg := loadConfig()

	mcpMode := flag.Bool("mcp", false, "serve the engine over MCP stdio")
	taskFile := flag.String("task", "", "path to a task definition JSON file")
	goal := flag.String("goal", "", "task goal for a quick run (ignored with -task)")
	taskType := flag.String("type", "", "task type: navigation, search, form, information_extraction")
	maxSteps := flag.Int("max-steps", cfg.MaxSteps, "step budget per run")
	seed := flag.Int64("seed", cfg.Seed, "sampler seed (0 = time-based)")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	render := flag.String("render", "", "render the explored graph after the run: mermaid, ascii, png")
	renderOut := flag.String("render-out", "", "write the rendered graph to this file instead of stderr (required for png)")
	panelAddr := flag.String("panel", "", "serve the monitoring panel on this address (e.g. :8080)")
	sampleConcurrency := flag.Int("sample-concurrency", 1, "concurrent vote samples per uncertainty round")
	maintenanceCron := flag.String("maintenance-cron", "", "cron schedule for periodic pruning sweeps (e.g. \"*/5 * * * *\")")
	benchDir := flag.String("bench", "", "run every task definition under this directory and report aggregate metrics")
	benchOut := flag.String("bench-out", "", "write the benchmark summary to this file")
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mcpMode {
		if err := serveMCP(ctx, logger, *panelAddr, *maintenanceCron); err != nil {
			logger.Error("mcp server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	agentCfg := agent.DefaultConfig()
	agentCfg.MaxSteps = *maxSteps
	agentCfg.Seed = *seed
	agentCfg.SampleConcurrency = *sampleConcurrency

	if *benchDir != "" {
		if err := runBenchmark(ctx, logger, agentCfg, *benchDir, *benchOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	task, err := buildTask(*taskFile, *goal, *taskType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	a, err := agent.New(agentCfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sched, stopMaintenance, err := startMaintenance(ctx, logger, a, *maintenanceCron)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer stopMaintenance()

	if *panelAddr != "" {
		stopPanel := startPanel(logger, a, sched, *panelAddr)
		defer stopPanel()
	}

	result, err := a.Run(ctx, task)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if *render != "" {
		if err := renderGraph(a, task.Goal, *render, *renderOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if !result.Success {
		os.Exit(2)
	}
}

// renderGraph draws the explored state graph in the requested format. Text
// formats go to stderr unless an output path is given; png requires one.
func renderGraph(a *agent.Agent, title, format, outPath string) error {
	model := diagram.Build(a.Graph().Dump(), title)

	var data []byte
	switch format {
	case "mermaid":
		data = []byte(diagram.RenderMermaid(model))
	case "ascii":
		data = []byte(diagram.RenderASCII(model))
	case "png":
		if outPath == "" {
			return fmt.Errorf("png rendering requires -render-out")
		}
		png, err := diagram.RenderImage(model)
		if err != nil {
			return err
		}
		data = png
	default:
		return fmt.Errorf("unknown render format %q", format)
	}

	if outPath != "" {
		return os.WriteFile(outPath, data, 0o644)
	}
	_, err := os.Stderr.Write(data)
	return err
}

func serveMCP(ctx context.Context, logger *slog.Logger, panelAddr, maintenanceCron string) error {
	deps := mcp.TraverseServerDeps{Logger: logger}

	if panelAddr != "" || maintenanceCron != "" {
		a, err := agent.New(agent.DefaultConfig(), logger)
		if err != nil {
			return err
		}
		deps.Agent = a

		sched, stopMaintenance, err := startMaintenance(ctx, logger, a, maintenanceCron)
		if err != nil {
			return err
		}
		defer stopMaintenance()

		if panelAddr != "" {
			stopPanel := startPanel(logger, a, sched, panelAddr)
			defer stopPanel()
		}
	}

	srv, err := mcp.NewTraverseServer(deps)
	if err != nil {
		return err
	}
	logger.Info("serving MCP over stdio")
	return srv.Serve(ctx)
}

// startMaintenance launches the cron-driven pruning sweep when a schedule is
// given. The returned stop function is a no-op for an empty schedule.
func startMaintenance(ctx context.Context, logger *slog.Logger, a *agent.Agent, cronExpr string) (*scheduler.Scheduler, func(), error) {
	if cronExpr == "" {
		return nil, func() {}, nil
	}
	sched := scheduler.New(logger)
	if err := sched.AddSweep("prune-sweep", cronExpr, a.MaintenanceSweep()); err != nil {
		return nil, nil, err
	}
	if err := sched.Start(ctx); err != nil {
		return nil, nil, err
	}
	return sched, func() { _ = sched.Stop() }, nil
}

// runBenchmark executes every task definition under dir and prints the
// aggregated summary.
func runBenchmark(ctx context.Context, logger *slog.Logger, cfg agent.Config, dir, outPath string) error {
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return err
	}
	tasks, err := benchmark.LoadTasksDir(dir, v)
	if err != nil {
		return err
	}

	a, err := agent.New(cfg, logger)
	if err != nil {
		return err
	}

	runner := benchmark.NewRunner(a, logger)
	runner.AddTasks(tasks)
	summary := runner.RunAll(ctx)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if outPath != "" {
		return benchmark.SaveSummary(summary, outPath)
	}
	return nil
}

// startPanel serves the monitoring panel in the background and returns a
// function that shuts it down.
func startPanel(logger *slog.Logger, a *agent.Agent, sched *scheduler.Scheduler, addr string) func() {
	hub := streaming.NewMemoryHub()
	a.SetEventHub(hub)

	srv := &http.Server{
		Addr:    addr,
		Handler: panel.NewPanelServer(panel.PanelDeps{Agent: a, Hub: hub, Scheduler: sched, Logger: logger}).Handler(),
	}
	go func() {
		logger.Info("serving monitoring panel", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("panel server failed", slog.String("error", err.Error()))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// buildTask loads a validated task definition from a file or the -goal flag.
func buildTask(taskFile, goal, taskType string) (*schema.TaskDefinition, error) {
	var task schema.TaskDefinition

	switch {
	case taskFile != "":
		data, err := os.ReadFile(taskFile)
		if err != nil {
			return nil, fmt.Errorf("read task file: %w", err)
		}
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("parse task file: %w", err)
		}
	case goal != "":
		task = schema.TaskDefinition{Goal: goal, Type: schema.TaskType(taskType)}
	default:
		return nil, fmt.Errorf("either -task or -goal is required (or -mcp to serve)")
	}

	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateTask(&task); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	return &task, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
