// Package scheduler runs periodic maintenance sweeps against live graphs:
// batch pruning passes and stats snapshots on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/internal/pruning"
)

// SweepFunc is one maintenance task.
type SweepFunc func(ctx context.Context) error

// Job is a registered maintenance sweep with its schedule state.
type Job struct {
	Name          string     `json:"name"`
	CronExpr      string     `json:"cron_expr"`
	Run           SweepFunc  `json:"-"`
	NextRunAt     time.Time  `json:"next_run_at"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// Scheduler ticks every minute and runs the sweeps that are due.
type Scheduler struct {
	parser   cron.Parser
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	jobs     map[string]*Job

	inflightMu sync.Mutex
	inflight   map[string]struct{} // sweep names currently executing (dedup)
}

// New creates a scheduler with the standard five-field cron parser.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		interval: 60 * time.Second,
		jobs:     make(map[string]*Job),
		inflight: make(map[string]struct{}),
	}
}

// SetInterval overrides the tick interval. Must be called before Start.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// AddSweep registers a maintenance sweep. The cron expression is validated
// and the first run time computed immediately.
func (s *Scheduler) AddSweep(name, cronExpr string, fn SweepFunc) error {
	next, err := s.CalculateNextRun(cronExpr, time.Now().UTC())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("sweep %q already registered", name)
	}
	s.jobs[name] = &Job{Name: name, CronExpr: cronExpr, Run: fn, NextRunAt: next}
	return nil
}

// RemoveSweep unregisters a sweep by name.
func (s *Scheduler) RemoveSweep(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
}

// Jobs returns a snapshot of the registered sweeps.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Start launches the background sweep loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(loopCtx)
	s.logger.Info("maintenance scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every due sweep once. Exposed so callers can force a pass.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	due := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		if !s.tryAcquire(j.Name) {
			continue // still running from a previous tick
		}
		if err := s.runSweep(ctx, j, now); err != nil {
			s.logger.Error("maintenance sweep failed",
				slog.String("sweep", j.Name),
				slog.String("error", err.Error()),
			)
		}
		s.release(j.Name)
	}
}

func (s *Scheduler) runSweep(ctx context.Context, j *Job, now time.Time) error {
	s.logger.Info("running maintenance sweep", slog.String("sweep", j.Name))

	err := j.Run(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}

	next, calcErr := s.CalculateNextRun(j.CronExpr, now)
	if calcErr != nil {
		return fmt.Errorf("calculate next run for sweep %q: %w", j.Name, calcErr)
	}

	s.mu.Lock()
	j.LastRunAt = &now
	j.NextRunAt = next
	j.LastRunStatus = status
	s.mu.Unlock()
	return err
}

func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) release(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("maintenance scheduler stopped")
	return nil
}

// PruneSweep builds a sweep that evaluates every active state through the
// pruning manager and logs a graph stats snapshot afterwards.
func PruneSweep(g *graph.StateGraph, m *pruning.Manager, pctx *pruning.Context, logger *slog.Logger) SweepFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		pruned, err := pruning.PruneAll(g, m, pctx, "")
		if err != nil {
			return err
		}
		stats := g.Stats()
		logger.InfoContext(ctx, "pruning sweep complete",
			slog.Int("pruned", len(pruned)),
			slog.Int("active_states", stats.ActiveCount),
			slog.Int("total_states", stats.NodeCount),
			slog.Int("cycles", stats.CycleCount),
		)
		return nil
	}
}
