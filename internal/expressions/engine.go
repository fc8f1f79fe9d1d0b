// Package expressions provides the expression engines checklist criteria are
// written in. Three implementations: CEL (typed conditions), Expr (general
// logic), GoJQ (JSON transforms). All engines cache compiled programs.
package expressions

import (
	"context"

	"github.com/rendis/traverse/pkg/schema"
)

// Engine evaluates an expression against a scope map.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Registry resolves engines by the name used in criterion definitions.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates a registry with all three engines wired.
func NewRegistry() (*Registry, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	r := &Registry{engines: make(map[string]Engine)}
	for _, e := range []Engine{celEngine, NewExprEngine(), NewGoJQEngine()} {
		r.engines[e.Name()] = e
	}
	return r, nil
}

// Engine returns the engine registered under name; the empty string resolves
// to expr.
func (r *Registry) Engine(name string) (Engine, error) {
	if name == "" {
		name = schema.EngineExpr
	}
	engine, ok := r.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown expression engine %q", name)
	}
	return engine, nil
}
