package validation

import "github.com/rendis/traverse/pkg/schema"

// Validator checks task definitions for correctness before a run.
// Uses JSON Schema Draft 2020-12 for structural validation.
type Validator interface {
	ValidateTask(def *schema.TaskDefinition) error
	ValidateData(data map[string]any, rawSchema []byte) error
}
