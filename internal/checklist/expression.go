package checklist

import (
	"context"

	"github.com/rendis/traverse/internal/expressions"
	"github.com/rendis/traverse/pkg/schema"
)

// ExpressionCheck builds a CheckFunc that evaluates an expression through the
// named engine. The criterion is satisfied only when the expression yields
// boolean true; any other result type is falsy.
func ExpressionCheck(reg *expressions.Registry, engineName, expression string) (CheckFunc, error) {
	engine, err := reg.Engine(engineName)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, data map[string]any) (bool, error) {
		out, err := engine.Evaluate(ctx, expression, data)
		if err != nil {
			return false, err
		}
		result, ok := out.(bool)
		return ok && result, nil
	}, nil
}

// FromDefinitions builds a checklist from task-supplied criterion
// definitions.
func FromDefinitions(reg *expressions.Registry, name string, taskType schema.TaskType, defs []schema.CriterionDefinition) (*Checklist, error) {
	c := New(name, taskType)
	for _, def := range defs {
		check, err := ExpressionCheck(reg, def.Engine, def.Expression)
		if err != nil {
			return nil, err
		}
		if _, err := c.AddCriterion(def.Description, def.Weight, check); err != nil {
			return nil, err
		}
	}
	return c, nil
}
