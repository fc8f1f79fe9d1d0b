package schema

// VoteDistribution tallies how many independent reasoning samples proposed
// each candidate action. Insertion order is irrelevant; accumulation is
// commutative and associative, so partial distributions are always valid.
type VoteDistribution struct {
	Candidates  map[string]int `json:"candidates"`
	TotalVotes  int            `json:"total_votes"`
	Observation string         `json:"observation,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewVoteDistribution returns an empty distribution for the observation.
func NewVoteDistribution(observation string) *VoteDistribution {
	return &VoteDistribution{
		Candidates:  make(map[string]int),
		Observation: observation,
	}
}

// AddVote records one vote for a candidate action.
func (v *VoteDistribution) AddVote(action string) {
	v.Candidates[action]++
	v.TotalVotes++
}

// Merge folds another distribution into this one.
func (v *VoteDistribution) Merge(other *VoteDistribution) {
	for action, count := range other.Candidates {
		v.Candidates[action] += count
	}
	v.TotalVotes += other.TotalVotes
}

// Probabilities returns the normalized vote distribution, or an empty map
// when there are no votes.
func (v *VoteDistribution) Probabilities() map[string]float64 {
	if v.TotalVotes == 0 {
		return map[string]float64{}
	}
	probs := make(map[string]float64, len(v.Candidates))
	for action, count := range v.Candidates {
		probs[action] = float64(count) / float64(v.TotalVotes)
	}
	return probs
}

// MostCommon returns the top-voted action and its count. Ties are broken by
// lexicographic action order so the result is deterministic across map
// iteration orders; on tied votes the smaller action wins, which also pins
// down the action a caller acting on the winner will take.
func (v *VoteDistribution) MostCommon() (string, int) {
	best, bestCount := "", 0
	for action, count := range v.Candidates {
		if count > bestCount || (count == bestCount && bestCount > 0 && action < best) {
			best, bestCount = action, count
		}
	}
	return best, bestCount
}

// Confidence is the vote share of the top candidate, 0 when there are no votes.
func (v *VoteDistribution) Confidence() float64 {
	if v.TotalVotes == 0 {
		return 0.0
	}
	_, top := v.MostCommon()
	return float64(top) / float64(v.TotalVotes)
}

// UncertaintyStats bundles the scalar statistics derived from a vote
// distribution. All fields resolve to zero/neutral values for degenerate
// distributions rather than dividing by zero.
type UncertaintyStats struct {
	Entropy              float64 `json:"entropy"`
	NormalizedEntropy    float64 `json:"normalized_entropy"`
	Variance             float64 `json:"variance"`
	PairwiseDisagreement float64 `json:"pairwise_disagreement"`
	Confidence           float64 `json:"confidence"`
	Uncertainty          float64 `json:"uncertainty"`
	CandidateCount       int     `json:"num_candidates"`
	TotalVotes           int     `json:"total_votes"`
}
