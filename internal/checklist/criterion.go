// Package checklist scores agent progress against fine-grained binary
// criteria, giving per-step partial-completion feedback instead of a single
// sparse outcome signal.
package checklist

import (
	"context"

	"github.com/rendis/traverse/pkg/schema"
)

// CheckFunc decides whether a criterion is met for one step's data.
type CheckFunc func(ctx context.Context, data map[string]any) (bool, error)

// Criterion is one weighted binary check. Satisfaction is monotonic: once a
// criterion is met it stays met until Reset, even if later steps would fail
// the check.
type Criterion struct {
	Description string
	Weight      float64
	check       CheckFunc
	satisfied   bool
}

// NewCriterion creates a criterion, validating the weight range.
func NewCriterion(description string, weight float64, check CheckFunc) (*Criterion, error) {
	if weight < 0.0 || weight > 1.0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"criterion weight must be between 0.0 and 1.0, got %v", weight).
			WithDetails(map[string]any{"description": description})
	}
	return &Criterion{
		Description: description,
		Weight:      weight,
		check:       check,
	}, nil
}

// Evaluate runs the check against step data. A check that errors or panics
// counts as unsatisfied for this round; it may still succeed later.
func (c *Criterion) Evaluate(ctx context.Context, data map[string]any) bool {
	if c.satisfied {
		return true
	}
	if c.check == nil {
		return false
	}

	ok := func() (result bool) {
		defer func() {
			if r := recover(); r != nil {
				result = false
			}
		}()
		result, err := c.check(ctx, data)
		if err != nil {
			return false
		}
		return result
	}()

	if ok {
		c.satisfied = true
	}
	return ok
}

// IsSatisfied reports whether the criterion has been met.
func (c *Criterion) IsSatisfied() bool {
	return c.satisfied
}

// Reset returns the criterion to its unsatisfied state.
func (c *Criterion) Reset() {
	c.satisfied = false
}
