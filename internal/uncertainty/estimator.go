package uncertainty

import (
	"context"
	"math"
	"time"

	"github.com/rendis/traverse/pkg/schema"
)

// Estimator derives uncertainty statistics from vote distributions and turns
// them into compute-allocation decisions.
type Estimator struct {
	method     string
	numSamples int
	sampler    Sampler
	fanout     *Fanout
}

// NewEstimator creates an estimator. A nil sampler falls back to a simulated
// sampler seeded from the clock; numSamples <= 0 falls back to 5.
func NewEstimator(sampler Sampler, numSamples int) *Estimator {
	if sampler == nil {
		sampler = NewSimulatedSampler(time.Now().UnixNano())
	}
	if numSamples <= 0 {
		numSamples = 5
	}
	return &Estimator{
		method:     "ensemble",
		numSamples: numSamples,
		sampler:    sampler,
	}
}

// WithConcurrency switches vote collection to a bounded concurrent fan-out.
// The sampler must be safe for concurrent use. Concurrency below 2 keeps
// sampling sequential; returns the estimator for chaining.
func (e *Estimator) WithConcurrency(concurrency int) *Estimator {
	if concurrency > 1 {
		e.fanout = NewFanout(e.sampler, concurrency)
	}
	return e
}

// GenerateVotes collects nSamples votes for the observation. It never fails:
// samples the sampler refuses are simply omitted, and zero requested samples
// yield an empty (degenerate) distribution.
func (e *Estimator) GenerateVotes(ctx context.Context, observation string, nSamples int, candidates []string) *schema.VoteDistribution {
	if e.fanout != nil {
		return e.fanout.GenerateVotes(ctx, observation, nSamples, candidates)
	}
	votes := schema.NewVoteDistribution(observation)
	for range nSamples {
		action, err := e.sampler.Sample(ctx, observation, candidates)
		if err != nil {
			continue
		}
		votes.AddVote(action)
	}
	votes.Metadata = map[string]any{
		"n_samples":          nSamples,
		"method":             e.method,
		"observation_length": len(observation),
	}
	return votes
}

// ComputeEntropy returns the Shannon entropy of the distribution in bits.
// Zero votes yield zero entropy.
func (e *Estimator) ComputeEntropy(votes *schema.VoteDistribution) float64 {
	if votes.TotalVotes == 0 {
		return 0.0
	}
	entropy := 0.0
	for _, prob := range votes.Probabilities() {
		if prob > 0 {
			entropy -= prob * math.Log2(prob)
		}
	}
	return entropy
}

// ComputeVariance returns the population variance of the per-candidate vote
// counts. Distributions with no votes or a single candidate have zero
// variance.
func (e *Estimator) ComputeVariance(votes *schema.VoteDistribution) float64 {
	if votes.TotalVotes == 0 || len(votes.Candidates) <= 1 {
		return 0.0
	}

	mean := float64(votes.TotalVotes) / float64(len(votes.Candidates))
	variance := 0.0
	for _, count := range votes.Candidates {
		diff := float64(count) - mean
		variance += diff * diff
	}
	return variance / float64(len(votes.Candidates))
}

// ComputePairwiseDisagreement returns the share of vote pairs that backed
// different actions. The comparison enumerates individual vote instances, so
// cost grows quadratically with total votes; distributions stay small enough
// in practice (bounded by the sample budget) that this has not mattered.
func (e *Estimator) ComputePairwiseDisagreement(votes *schema.VoteDistribution) float64 {
	if votes.TotalVotes <= 1 || len(votes.Candidates) <= 1 {
		return 0.0
	}

	instances := make([]string, 0, votes.TotalVotes)
	for action, count := range votes.Candidates {
		for range count {
			instances = append(instances, action)
		}
	}

	totalPairs, disagreeing := 0, 0
	for i := 0; i < len(instances); i++ {
		for j := i + 1; j < len(instances); j++ {
			totalPairs++
			if instances[i] != instances[j] {
				disagreeing++
			}
		}
	}
	if totalPairs == 0 {
		return 0.0
	}
	return float64(disagreeing) / float64(totalPairs)
}

// Stats computes the full statistics bundle for a distribution. Entropy is
// normalized by log2 of the candidate count; the divisor is fixed at 1 for
// distributions with at most one candidate.
func (e *Estimator) Stats(votes *schema.VoteDistribution) schema.UncertaintyStats {
	entropy := e.ComputeEntropy(votes)
	confidence := votes.Confidence()

	maxEntropy := 1.0
	if len(votes.Candidates) > 1 {
		maxEntropy = math.Log2(float64(len(votes.Candidates)))
	}

	return schema.UncertaintyStats{
		Entropy:              entropy,
		NormalizedEntropy:    entropy / maxEntropy,
		Variance:             e.ComputeVariance(votes),
		PairwiseDisagreement: e.ComputePairwiseDisagreement(votes),
		Confidence:           confidence,
		Uncertainty:          1.0 - confidence,
		CandidateCount:       len(votes.Candidates),
		TotalVotes:           votes.TotalVotes,
	}
}

// ShouldScaleUp reports whether more samples are warranted: normalized
// entropy or pairwise disagreement at or above the threshold.
func (e *Estimator) ShouldScaleUp(stats schema.UncertaintyStats, threshold float64) bool {
	return stats.NormalizedEntropy >= threshold || stats.PairwiseDisagreement >= threshold
}

// ComputeBudget interpolates the sample count linearly between minSamples and
// maxSamples on normalized entropy, rounding to the nearest integer.
func (e *Estimator) ComputeBudget(stats schema.UncertaintyStats, minSamples, maxSamples int) int {
	budget := float64(minSamples) + float64(maxSamples-minSamples)*stats.NormalizedEntropy
	return int(math.Round(budget))
}

// ShouldPause reports whether uncertainty is high enough to hand control to a
// human.
func (e *Estimator) ShouldPause(uncertainty, threshold float64) bool {
	return uncertainty >= threshold
}

// Estimate is the one-shot convenience: sample the default budget for an
// observation and return the resulting uncertainty score.
func (e *Estimator) Estimate(ctx context.Context, observation string, candidates []string) float64 {
	votes := e.GenerateVotes(ctx, observation, e.numSamples, candidates)
	return e.Stats(votes).Uncertainty
}
