package pruning

import (
	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// Hook observes every pruning decision the manager renders.
type Hook func(schema.PruningDecision)

// Manager owns the strategy registry, renders decisions, executes prunes, and
// keeps the append-only decision history. Not safe for concurrent use; the
// caller serializes access, like the graph itself.
type Manager struct {
	strategies   map[string]Strategy
	defaultName  string
	history      []schema.PruningDecision
	prunedStates map[schema.StateID]bool
	hooks        []Hook
	enabled      bool
}

// NewManager creates an empty, enabled manager.
func NewManager() *Manager {
	return &Manager{
		strategies:   make(map[string]Strategy),
		prunedStates: make(map[schema.StateID]bool),
		enabled:      true,
	}
}

// Register adds a strategy. The first registered strategy becomes the
// default; setAsDefault promotes later ones.
func (m *Manager) Register(strategy Strategy, setAsDefault bool) {
	m.strategies[strategy.Name()] = strategy
	if setAsDefault || m.defaultName == "" {
		m.defaultName = strategy.Name()
	}
}

// Unregister removes a strategy by name, reporting whether it existed. When
// the default is removed an arbitrary remaining strategy takes its place.
func (m *Manager) Unregister(name string) bool {
	if _, ok := m.strategies[name]; !ok {
		return false
	}
	delete(m.strategies, name)
	if m.defaultName == name {
		m.defaultName = ""
		for remaining := range m.strategies {
			m.defaultName = remaining
			break
		}
	}
	return true
}

// Strategy resolves a strategy by name; the empty string means the default.
func (m *Manager) Strategy(name string) (Strategy, error) {
	if name == "" {
		name = m.defaultName
	}
	strategy, ok := m.strategies[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "strategy %q not found", name)
	}
	return strategy, nil
}

// Evaluate renders a decision for one state using the named (or default)
// strategy, appends it to the history, and notifies hooks. When the manager
// is disabled it returns a keep verdict without consulting any strategy,
// and the verdict is not recorded.
func (m *Manager) Evaluate(id schema.StateID, g *graph.StateGraph, ctx *Context, strategyName string) (schema.PruningDecision, error) {
	if !m.enabled {
		return keepDecision(id, "none", "pruning is disabled", 0), nil
	}

	if ctx == nil {
		ctx = NewContext()
	}
	strategy, err := m.Strategy(strategyName)
	if err != nil {
		return schema.PruningDecision{}, err
	}

	decision := strategy.Evaluate(id, g, ctx)
	m.history = append(m.history, decision)
	if decision.ShouldPrune {
		m.prunedStates[id] = true
	}
	for _, hook := range m.hooks {
		hook(decision)
	}
	return decision, nil
}

// PruneIfNeeded evaluates a state and, on a prune verdict, executes the prune
// against the graph. Reports whether the state was pruned.
func (m *Manager) PruneIfNeeded(id schema.StateID, g *graph.StateGraph, ctx *Context, strategyName string) (bool, error) {
	decision, err := m.Evaluate(id, g, ctx, strategyName)
	if err != nil {
		return false, err
	}
	if !decision.ShouldPrune || g.Node(id) == nil {
		return false, nil
	}
	if _, err := g.PruneBranch(id); err != nil {
		return false, err
	}
	return true, nil
}

// AddHook registers a decision observer.
func (m *Manager) AddHook(hook Hook) {
	m.hooks = append(m.hooks, hook)
}

// ClearHooks drops all registered observers.
func (m *Manager) ClearHooks() {
	m.hooks = nil
}

// History returns a copy of all recorded decisions.
func (m *Manager) History() []schema.PruningDecision {
	out := make([]schema.PruningDecision, len(m.history))
	copy(out, m.history)
	return out
}

// HistoryFor returns the recorded decisions for one state.
func (m *Manager) HistoryFor(id schema.StateID) []schema.PruningDecision {
	var out []schema.PruningDecision
	for _, d := range m.history {
		if d.StateID == id {
			out = append(out, d)
		}
	}
	return out
}

// PrunedStates returns a copy of every state the manager ever recommended
// pruning, across the full history.
func (m *Manager) PrunedStates() map[schema.StateID]bool {
	out := make(map[schema.StateID]bool, len(m.prunedStates))
	for id := range m.prunedStates {
		out[id] = true
	}
	return out
}

// ClearHistory drops the decision history and the cumulative pruned set.
func (m *Manager) ClearHistory() {
	m.history = nil
	m.prunedStates = make(map[schema.StateID]bool)
}

// Stats returns the counters of every registered strategy, keyed by name.
func (m *Manager) Stats() map[string]schema.StrategyStats {
	out := make(map[string]schema.StrategyStats, len(m.strategies))
	for name, strategy := range m.strategies {
		out[name] = strategy.Stats()
	}
	return out
}

// ResetStats zeroes every registered strategy's counters.
func (m *Manager) ResetStats() {
	for _, strategy := range m.strategies {
		strategy.ResetStats()
	}
}

// Enable turns pruning on.
func (m *Manager) Enable() { m.enabled = true }

// Disable turns pruning off; Evaluate returns keep verdicts until re-enabled.
func (m *Manager) Disable() { m.enabled = false }

// IsEnabled reports whether pruning is active.
func (m *Manager) IsEnabled() bool { return m.enabled }

// SetupDefault registers the standard composite stack as the default
// strategy.
func (m *Manager) SetupDefault() {
	m.Register(NewDefaultComposite(), true)
}
