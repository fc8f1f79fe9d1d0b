// Package uncertainty quantifies decision uncertainty from vote
// distributions: N independent reasoning samples each vote for an action, and
// the spread of the votes drives adaptive compute allocation.
package uncertainty

import (
	"context"
	"math/rand"
	"strings"
	"sync"
)

// Sampler produces one reasoning sample: a single proposed action for the
// observation. Production implementations call a model; tests and demos use
// the simulated sampler.
type Sampler interface {
	Sample(ctx context.Context, observation string, candidates []string) (string, error)
}

// SimulatedSampler emulates diverse reasoning samples without a model call.
// Provided candidates are weighted toward the front of the list; without
// candidates a small vocabulary is picked based on observation keywords.
// Safe for concurrent use.
type SimulatedSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSampler creates a sampler with the given seed, so vote
// distributions are reproducible.
func NewSimulatedSampler(seed int64) *SimulatedSampler {
	return &SimulatedSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedSampler) Sample(ctx context.Context, observation string, candidates []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(candidates) > 0 {
		return s.weightedPick(candidates), nil
	}
	vocab := vocabulary(observation)
	return vocab[s.rng.Intn(len(vocab))], nil
}

// weightedPick favors earlier candidates: candidate i carries weight
// max(1, n-i), emulating higher confidence in the leading proposal.
func (s *SimulatedSampler) weightedPick(candidates []string) string {
	n := len(candidates)
	total := 0
	for i := range candidates {
		total += weightAt(n, i)
	}

	r := s.rng.Float64() * float64(total)
	cumulative := 0.0
	for i, action := range candidates {
		cumulative += float64(weightAt(n, i))
		if r <= cumulative {
			return action
		}
	}
	return candidates[n-1]
}

func weightAt(n, i int) int {
	if w := n - i; w > 1 {
		return w
	}
	return 1
}

func vocabulary(observation string) []string {
	lower := strings.ToLower(observation)
	switch {
	case strings.Contains(lower, "button"):
		return []string{"click_button", "fill_form", "scroll_down", "go_back"}
	case strings.Contains(lower, "form"):
		return []string{"fill_form", "submit_form", "clear_field", "go_back"}
	case strings.Contains(lower, "search"):
		return []string{"type_query", "press_enter", "clear_search", "go_back"}
	default:
		return []string{"click", "type", "scroll", "wait", "go_back"}
	}
}
