package pruning

import (
	"fmt"
	"sort"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// Composite combines sub-strategies under a CombineMode. Strategies are kept
// sorted by descending priority; the composite carries its own counters in
// addition to the sub-strategies' counters.
type Composite struct {
	counters
	name       string
	mode       schema.CombineMode
	strategies []Strategy
}

// NewComposite creates a composite over the given strategies.
func NewComposite(name string, mode schema.CombineMode, strategies ...Strategy) *Composite {
	c := &Composite{
		name:       name,
		mode:       mode,
		strategies: strategies,
	}
	c.sortStrategies()
	return c
}

// NewDefaultComposite wires the standard stack: cycle elimination (10),
// dead ends (5), redundancy (3, epsilon 0.1) under priority combination.
func NewDefaultComposite() *Composite {
	return NewComposite("DefaultComposite", schema.CombinePriority,
		NewCycleElimination(10),
		NewDeadEnd(5),
		NewRedundancy(3, 0.1),
	)
}

func (c *Composite) Name() string  { return c.name }
func (c *Composite) Priority() int { return 0 }

// Add registers another sub-strategy, re-sorting by priority.
func (c *Composite) Add(s Strategy) {
	c.strategies = append(c.strategies, s)
	c.sortStrategies()
}

// Remove drops a sub-strategy by name, reporting whether it was present.
func (c *Composite) Remove(name string) bool {
	for i, s := range c.strategies {
		if s.Name() == name {
			c.strategies = append(c.strategies[:i], c.strategies[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Composite) sortStrategies() {
	sort.SliceStable(c.strategies, func(i, j int) bool {
		return c.strategies[i].Priority() > c.strategies[j].Priority()
	})
}

func (c *Composite) Evaluate(id schema.StateID, g *graph.StateGraph, ctx *Context) schema.PruningDecision {
	decision := c.evaluate(id, g, ctx)
	c.record(decision.ShouldPrune)
	return decision
}

func (c *Composite) evaluate(id schema.StateID, g *graph.StateGraph, ctx *Context) schema.PruningDecision {
	if len(c.strategies) == 0 {
		return keepDecision(id, c.name, "no strategies configured", 0)
	}

	if c.mode == schema.CombinePriority {
		for _, strategy := range c.strategies {
			decision := strategy.Evaluate(id, g, ctx)
			if decision.ShouldPrune {
				return pruneDecision(id, c.name,
					fmt.Sprintf("priority decision from %s: %s", strategy.Name(), decision.Reason),
					strategy.Priority(),
					map[string]any{
						"source_decision":  decision,
						"combination_mode": string(c.mode),
					})
			}
		}
		return keepDecision(id, c.name, "no high-priority strategy recommended pruning", 0)
	}

	decisions := make([]schema.PruningDecision, 0, len(c.strategies))
	for _, strategy := range c.strategies {
		decisions = append(decisions, strategy.Evaluate(id, g, ctx))
	}

	switch c.mode {
	case schema.CombineAny:
		var best *schema.PruningDecision
		recommenders := 0
		for i := range decisions {
			if !decisions[i].ShouldPrune {
				continue
			}
			recommenders++
			if best == nil || decisions[i].Priority > best.Priority {
				best = &decisions[i]
			}
		}
		if best != nil {
			return pruneDecision(id, c.name,
				fmt.Sprintf("any mode: %d strategies recommended pruning", recommenders),
				best.Priority,
				map[string]any{
					"all_decisions":    decisions,
					"combination_mode": string(c.mode),
				})
		}

	case schema.CombineAll:
		unanimous := true
		highest := 0
		for _, d := range decisions {
			if !d.ShouldPrune {
				unanimous = false
				break
			}
			if d.Priority > highest {
				highest = d.Priority
			}
		}
		if unanimous {
			return pruneDecision(id, c.name, "all mode: all strategies recommended pruning",
				highest,
				map[string]any{
					"all_decisions":    decisions,
					"combination_mode": string(c.mode),
				})
		}
	}

	decision := keepDecision(id, c.name,
		fmt.Sprintf("%s mode: no consensus to prune", c.mode), 0)
	decision.Metadata = map[string]any{
		"all_decisions":    decisions,
		"combination_mode": string(c.mode),
	}
	return decision
}

// Stats returns the composite's counters with each sub-strategy's counters
// nested under its name.
func (c *Composite) Stats() schema.StrategyStats {
	stats := c.counters.Stats()
	stats.Sub = make(map[string]schema.StrategyStats, len(c.strategies))
	for _, strategy := range c.strategies {
		stats.Sub[strategy.Name()] = strategy.Stats()
	}
	return stats
}

// ResetStats zeroes the composite's and every sub-strategy's counters.
func (c *Composite) ResetStats() {
	c.counters.ResetStats()
	for _, strategy := range c.strategies {
		strategy.ResetStats()
	}
}
