package uncertainty

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rendis/traverse/pkg/schema"
)

// FanoutMetrics tracks the outcome of concurrent sampling rounds.
type FanoutMetrics struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

// Fanout collects votes concurrently on a bounded goroutine pool. Vote
// accumulation is commutative, so the nondeterministic completion order does
// not affect the resulting distribution, and a cancelled round still returns
// a valid partial distribution.
type Fanout struct {
	sampler Sampler
	sem     chan struct{}
	metrics FanoutMetrics
}

// NewFanout wraps a sampler with the given max concurrency.
func NewFanout(sampler Sampler, concurrency int) *Fanout {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fanout{
		sampler: sampler,
		sem:     make(chan struct{}, concurrency),
	}
}

// GenerateVotes runs nSamples sampling calls with bounded concurrency and
// merges the votes. Failed or panicking samples are dropped; cancellation
// stops dispatching new samples but waits for in-flight ones.
func (f *Fanout) GenerateVotes(ctx context.Context, observation string, nSamples int, candidates []string) *schema.VoteDistribution {
	votes := schema.NewVoteDistribution(observation)
	var mu sync.Mutex
	var wg sync.WaitGroup

	dispatched := 0
	for range nSamples {
		select {
		case f.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			votes.Metadata = f.metadata(nSamples, dispatched, observation)
			return votes
		}
		dispatched++

		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddInt64(&f.metrics.Panics, 1)
					atomic.AddInt64(&f.metrics.Failed, 1)
				}
				<-f.sem
				wg.Done()
			}()

			action, err := f.sampler.Sample(ctx, observation, candidates)
			if err != nil {
				atomic.AddInt64(&f.metrics.Failed, 1)
				return
			}
			mu.Lock()
			votes.AddVote(action)
			mu.Unlock()
			atomic.AddInt64(&f.metrics.Completed, 1)
		}()
	}

	wg.Wait()
	votes.Metadata = f.metadata(nSamples, dispatched, observation)
	return votes
}

func (f *Fanout) metadata(requested, dispatched int, observation string) map[string]any {
	return map[string]any{
		"n_samples":          requested,
		"dispatched":         dispatched,
		"method":             "ensemble",
		"observation_length": len(observation),
	}
}

// Metrics returns a snapshot of the sampling counters.
func (f *Fanout) Metrics() FanoutMetrics {
	return FanoutMetrics{
		Completed: atomic.LoadInt64(&f.metrics.Completed),
		Failed:    atomic.LoadInt64(&f.metrics.Failed),
		Panics:    atomic.LoadInt64(&f.metrics.Panics),
	}
}
