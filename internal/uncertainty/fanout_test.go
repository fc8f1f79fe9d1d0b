package uncertainty

import (
	"context"
	"errors"
	"testing"
)

type fixedSampler struct{ action string }

func (s fixedSampler) Sample(ctx context.Context, observation string, candidates []string) (string, error) {
	return s.action, nil
}

type failingSampler struct{}

func (failingSampler) Sample(ctx context.Context, observation string, candidates []string) (string, error) {
	return "", errors.New("sampler unavailable")
}

type panickingSampler struct{}

func (panickingSampler) Sample(ctx context.Context, observation string, candidates []string) (string, error) {
	panic("boom")
}

func TestFanout_CollectsAllVotes(t *testing.T) {
	f := NewFanout(fixedSampler{action: "click"}, 4)
	votes := f.GenerateVotes(context.Background(), "obs", 20, nil)

	if votes.TotalVotes != 20 {
		t.Fatalf("expected 20 votes, got %d", votes.TotalVotes)
	}
	if votes.Candidates["click"] != 20 {
		t.Errorf("unexpected tallies: %v", votes.Candidates)
	}
	if m := f.Metrics(); m.Completed != 20 || m.Failed != 0 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestFanout_DropsFailedSamples(t *testing.T) {
	f := NewFanout(failingSampler{}, 2)
	votes := f.GenerateVotes(context.Background(), "obs", 5, nil)

	if votes.TotalVotes != 0 {
		t.Errorf("failed samples produced votes: %d", votes.TotalVotes)
	}
	if m := f.Metrics(); m.Failed != 5 {
		t.Errorf("expected 5 failures, got %+v", m)
	}
}

func TestFanout_RecoversFromPanics(t *testing.T) {
	f := NewFanout(panickingSampler{}, 2)
	votes := f.GenerateVotes(context.Background(), "obs", 3, nil)

	if votes.TotalVotes != 0 {
		t.Errorf("panicking samples produced votes: %d", votes.TotalVotes)
	}
	if m := f.Metrics(); m.Panics != 3 || m.Failed != 3 {
		t.Errorf("expected 3 panics, got %+v", m)
	}
}

func TestFanout_CancellationYieldsPartialDistribution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFanout(fixedSampler{action: "click"}, 1)
	votes := f.GenerateVotes(ctx, "obs", 10, nil)

	// A cancelled round is still a valid (possibly empty) distribution.
	if votes.TotalVotes > 10 {
		t.Errorf("impossible vote count: %d", votes.TotalVotes)
	}
	sum := 0
	for _, count := range votes.Candidates {
		sum += count
	}
	if sum != votes.TotalVotes {
		t.Errorf("tallies (%d) disagree with total (%d)", sum, votes.TotalVotes)
	}
}

func TestFanout_MergesConcurrentSamplerVotes(t *testing.T) {
	f := NewFanout(NewSimulatedSampler(11), 8)
	votes := f.GenerateVotes(context.Background(), "obs", 50, []string{"a", "b", "c"})

	if votes.TotalVotes != 50 {
		t.Fatalf("expected 50 votes, got %d", votes.TotalVotes)
	}
	sum := 0
	for _, count := range votes.Candidates {
		sum += count
	}
	if sum != 50 {
		t.Errorf("tallies (%d) disagree with total", sum)
	}
}
