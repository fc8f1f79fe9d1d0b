package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rendis/traverse/internal/expressions"
	"github.com/rendis/traverse/pkg/schema"
)

// validateCriteria dry-compiles every criterion expression through its
// declared engine. Runtime failures against the empty probe scope are
// expected and ignored; only compile-time rejections surface here.
func validateCriteria(def *schema.TaskDefinition) error {
	if len(def.Criteria) == 0 {
		return nil
	}

	registry, err := expressions.NewRegistry()
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "expression registry unavailable").WithCause(err)
	}
	probe := expressions.BuildScope(nil, nil, nil, nil)

	for i, crit := range def.Criteria {
		engine, err := registry.Engine(crit.Engine)
		if err != nil {
			return schema.NewError(schema.ErrCodeValidation,
				fmt.Sprintf("criteria[%d]: unknown engine %q", i, crit.Engine)).WithCause(err)
		}

		if _, err := engine.Evaluate(context.Background(), crit.Expression, probe); err != nil {
			var terr *schema.TraverseError
			if errors.As(err, &terr) && terr.Code == schema.ErrCodeValidation {
				return schema.NewError(schema.ErrCodeValidation,
					fmt.Sprintf("criteria[%d]: expression does not compile", i)).WithCause(err)
			}
		}
	}
	return nil
}
