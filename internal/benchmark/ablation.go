package benchmark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rendis/traverse/internal/agent"
	"github.com/rendis/traverse/pkg/schema"
)

// RunnerFactory builds a task runner for one agent configuration.
type RunnerFactory func(cfg agent.Config) (TaskRunner, error)

// Ablation runs the same task suite across agent configurations. The first
// configuration added is the baseline the others are compared against.
type Ablation struct {
	factory RunnerFactory
	logger  *slog.Logger
	names   []string
	configs map[string]agent.Config
}

// NewAblation creates an ablation study over the given factory.
func NewAblation(factory RunnerFactory, logger *slog.Logger) *Ablation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ablation{
		factory: factory,
		logger:  logger,
		configs: make(map[string]agent.Config),
	}
}

// AddConfiguration registers a named configuration. Re-adding a name
// overwrites its config but keeps its position.
func (ab *Ablation) AddConfiguration(name string, cfg agent.Config) {
	if _, ok := ab.configs[name]; !ok {
		ab.names = append(ab.names, name)
	}
	ab.configs[name] = cfg
}

// Run executes the task suite once per configuration.
func (ab *Ablation) Run(ctx context.Context, tasks []*schema.TaskDefinition) (map[string]Summary, error) {
	if len(ab.names) == 0 {
		return nil, fmt.Errorf("no configurations registered")
	}

	results := make(map[string]Summary, len(ab.names))
	for _, name := range ab.names {
		runner, err := ab.factory(ab.configs[name])
		if err != nil {
			return nil, fmt.Errorf("build runner for configuration %q: %w", name, err)
		}
		ab.logger.InfoContext(ctx, "running ablation configuration", slog.String("configuration", name))
		r := NewRunner(runner, ab.logger)
		r.AddTasks(tasks)
		results[name] = r.RunAll(ctx)
	}
	return results, nil
}

// ConfigComparison is one configuration's metrics with deltas against the
// baseline. The baseline itself carries no deltas.
type ConfigComparison struct {
	SuccessRate      float64  `json:"success_rate"`
	AvgSteps         float64  `json:"avg_steps"`
	AvgUncertainty   float64  `json:"avg_uncertainty"`
	SuccessRateDelta *float64 `json:"success_rate_delta,omitempty"`
	StepsDelta       *float64 `json:"steps_delta,omitempty"`
}

// Compare lines the results up against the baseline configuration.
func (ab *Ablation) Compare(results map[string]Summary) map[string]ConfigComparison {
	if len(ab.names) == 0 {
		return nil
	}
	baseline, ok := results[ab.names[0]]
	if !ok {
		return nil
	}

	comparison := make(map[string]ConfigComparison, len(results))
	for name, summary := range results {
		entry := ConfigComparison{
			SuccessRate:    summary.SuccessRate,
			AvgSteps:       summary.AvgSteps,
			AvgUncertainty: summary.AvgUncertainty,
		}
		if name != ab.names[0] {
			rateDelta := summary.SuccessRate - baseline.SuccessRate
			stepsDelta := summary.AvgSteps - baseline.AvgSteps
			entry.SuccessRateDelta = &rateDelta
			entry.StepsDelta = &stepsDelta
		}
		comparison[name] = entry
	}
	return comparison
}
