package checklist

import (
	"context"

	"github.com/rendis/traverse/pkg/schema"
)

// Checklist is an ordered set of criteria scored together. The aggregate
// score is the satisfied share of total weight.
type Checklist struct {
	Name     string
	TaskType schema.TaskType
	criteria []*Criterion
}

// New creates an empty checklist.
func New(name string, taskType schema.TaskType) *Checklist {
	return &Checklist{Name: name, TaskType: taskType}
}

// AddCriterion appends a new criterion.
func (c *Checklist) AddCriterion(description string, weight float64, check CheckFunc) (*Criterion, error) {
	criterion, err := NewCriterion(description, weight, check)
	if err != nil {
		return nil, err
	}
	c.criteria = append(c.criteria, criterion)
	return criterion, nil
}

// Criteria returns the criteria in insertion order.
func (c *Checklist) Criteria() []*Criterion {
	return c.criteria
}

// Evaluate runs every criterion against the step data and reports the
// aggregate state.
func (c *Checklist) Evaluate(ctx context.Context, data map[string]any, stepIndex int) schema.ChecklistReport {
	var newlySatisfied []string
	for _, criterion := range c.criteria {
		was := criterion.IsSatisfied()
		if criterion.Evaluate(ctx, data) && !was {
			newlySatisfied = append(newlySatisfied, criterion.Description)
		}
	}

	var allSatisfied []string
	satisfiedCount := 0
	for _, criterion := range c.criteria {
		if criterion.IsSatisfied() {
			allSatisfied = append(allSatisfied, criterion.Description)
			satisfiedCount++
		}
	}

	score := c.Score()
	return schema.ChecklistReport{
		Score:          score,
		Progress:       score * 100,
		IsComplete:     c.IsComplete(),
		NewlySatisfied: newlySatisfied,
		AllSatisfied:   allSatisfied,
		StepIndex:      stepIndex,
		CriteriaCount:  len(c.criteria),
		SatisfiedCount: satisfiedCount,
	}
}

// Score is the weighted share of satisfied criteria, 0 when the checklist is
// empty or carries no weight.
func (c *Checklist) Score() float64 {
	if len(c.criteria) == 0 {
		return 0.0
	}
	totalWeight, satisfiedWeight := 0.0, 0.0
	for _, criterion := range c.criteria {
		totalWeight += criterion.Weight
		if criterion.IsSatisfied() {
			satisfiedWeight += criterion.Weight
		}
	}
	if totalWeight == 0 {
		return 0.0
	}
	return satisfiedWeight / totalWeight
}

// Progress is the score expressed as a percentage.
func (c *Checklist) Progress() float64 {
	return c.Score() * 100
}

// IsComplete reports whether every criterion is satisfied. An empty checklist
// is vacuously complete even though its score is zero.
func (c *Checklist) IsComplete() bool {
	for _, criterion := range c.criteria {
		if !criterion.IsSatisfied() {
			return false
		}
	}
	return true
}

// Unsatisfied returns the criteria still outstanding.
func (c *Checklist) Unsatisfied() []*Criterion {
	var out []*Criterion
	for _, criterion := range c.criteria {
		if !criterion.IsSatisfied() {
			out = append(out, criterion)
		}
	}
	return out
}

// Reset returns every criterion to its unsatisfied state.
func (c *Checklist) Reset() {
	for _, criterion := range c.criteria {
		criterion.Reset()
	}
}
