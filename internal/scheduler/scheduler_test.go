package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/internal/pruning"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCalculateNextRun(t *testing.T) {
	s := New(discardLogger())

	from := time.Date(2026, 3, 10, 14, 25, 0, 0, time.UTC)
	next, err := s.CalculateNextRun("0 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), next)

	_, err = s.CalculateNextRun("not a cron", from)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse cron expression")
}

func TestAddSweepValidation(t *testing.T) {
	s := New(discardLogger())

	require.NoError(t, s.AddSweep("prune", "* * * * *", func(context.Context) error { return nil }))

	// Duplicate names are rejected.
	err := s.AddSweep("prune", "* * * * *", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	// Bad cron expressions are rejected up front.
	err = s.AddSweep("broken", "99 99 * * *", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestTickRunsDueSweeps(t *testing.T) {
	s := New(discardLogger())

	var runs atomic.Int32
	require.NoError(t, s.AddSweep("counting", "* * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	// Freshly registered sweeps are scheduled in the future and must not run.
	s.Tick(context.Background())
	assert.Equal(t, int32(0), runs.Load())

	// Force the sweep due.
	s.jobs["counting"].NextRunAt = time.Now().UTC().Add(-time.Minute)
	s.Tick(context.Background())
	assert.Equal(t, int32(1), runs.Load())

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "success", jobs[0].LastRunStatus)
	require.NotNil(t, jobs[0].LastRunAt)
	assert.True(t, jobs[0].NextRunAt.After(time.Now().UTC().Add(-time.Second)))

	// Rescheduled into the future, the next tick is a no-op.
	s.Tick(context.Background())
	assert.Equal(t, int32(1), runs.Load())
}

func TestTickRecordsSweepError(t *testing.T) {
	s := New(discardLogger())

	require.NoError(t, s.AddSweep("failing", "* * * * *", func(context.Context) error {
		return errors.New("sweep exploded")
	}))
	s.jobs["failing"].NextRunAt = time.Now().UTC().Add(-time.Minute)

	s.Tick(context.Background())

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "error", jobs[0].LastRunStatus)
}

func TestInflightDedup(t *testing.T) {
	s := New(discardLogger())

	assert.True(t, s.tryAcquire("sweep"))
	assert.False(t, s.tryAcquire("sweep"))
	s.release("sweep")
	assert.True(t, s.tryAcquire("sweep"))
}

func TestStartStop(t *testing.T) {
	s := New(discardLogger())
	s.SetInterval(10 * time.Millisecond)

	var runs atomic.Int32
	require.NoError(t, s.AddSweep("background", "* * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.jobs["background"].NextRunAt = time.Now().UTC().Add(-time.Minute)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	// The initial tick fires immediately.
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	// Stopping twice is a no-op.
	require.NoError(t, s.Stop())
}

func TestRemoveSweep(t *testing.T) {
	s := New(discardLogger())
	require.NoError(t, s.AddSweep("gone", "* * * * *", func(context.Context) error { return nil }))
	s.RemoveSweep("gone")
	assert.Empty(t, s.Jobs())
}

func TestPruneSweep(t *testing.T) {
	g := graph.New()
	root := g.AddState("start", "start", nil, time.Now())
	mid := g.AddState("middle", "navigate", nil, time.Now())
	leaf := g.AddState("end", "click", nil, time.Now())
	_, err := g.AddEdge(root, mid, 1.0, true, "navigate", nil)
	require.NoError(t, err)
	_, err = g.AddEdge(mid, leaf, 1.0, true, "click", nil)
	require.NoError(t, err)

	m := pruning.NewManager()
	m.SetupDefault()
	pctx := pruning.NewContext()

	sweep := PruneSweep(g, m, pctx, discardLogger())
	require.NoError(t, sweep(context.Background()))

	// The leaf is a dead end and gets swept.
	assert.True(t, g.Node(leaf).IsPruned)

	// A cancelled context aborts the sweep.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sweep(ctx))
}
