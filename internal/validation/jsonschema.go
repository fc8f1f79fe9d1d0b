package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/traverse/pkg/schema"
)

// taskSchemaJSON is the JSON Schema for TaskDefinition validation.
// Embedded as a constant to avoid filesystem dependencies.
const taskSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://traverse.dev/schemas/task.json",
  "type": "object",
  "required": ["goal"],
  "properties": {
    "goal": {
      "type": "string",
      "minLength": 1
    },
    "type": {
      "type": "string",
      "minLength": 1
    },
    "max_steps": {
      "type": "integer",
      "minimum": 1
    },
    "min_samples": {
      "type": "integer",
      "minimum": 1
    },
    "max_samples": {
      "type": "integer",
      "minimum": 1
    },
    "uncertainty_threshold": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    },
    "criteria": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/criterion" }
    },
    "metadata": {
      "type": "object"
    }
  },
  "additionalProperties": false,
  "$defs": {
    "criterion": {
      "type": "object",
      "required": ["description", "weight", "expression"],
      "properties": {
        "description": {
          "type": "string",
          "minLength": 1
        },
        "weight": {
          "type": "number",
          "minimum": 0,
          "maximum": 1
        },
        "engine": {
          "type": "string",
          "enum": ["cel", "expr", "jq"]
        },
        "expression": {
          "type": "string",
          "minLength": 1
        }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator implements the Validator interface using JSON Schema
// Draft 2020-12. It is safe for concurrent use.
type JSONSchemaValidator struct {
	taskSchema *jsonschema.Schema

	// mu guards the cache for dynamic schema compilation.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the task schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(taskSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal task schema: %w", err)
	}
	if err := c.AddResource("https://traverse.dev/schemas/task.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add task schema resource: %w", err)
	}

	taskSchema, err := c.Compile("https://traverse.dev/schemas/task.json")
	if err != nil {
		return nil, fmt.Errorf("compile task schema: %w", err)
	}

	return &JSONSchemaValidator{
		taskSchema: taskSchema,
		cache:      make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateTask validates a TaskDefinition against the task JSON Schema plus
// the structural checks the schema cannot express.
func (v *JSONSchemaValidator) ValidateTask(def *schema.TaskDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "task definition is nil")
	}

	doc, err := toJSONValue(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize task definition").WithCause(err)
	}

	if err := v.taskSchema.Validate(doc); err != nil {
		return toTraverseError(err)
	}

	if def.MinSamples > 0 && def.MaxSamples > 0 && def.MaxSamples < def.MinSamples {
		return schema.NewError(schema.ErrCodeValidation,
			fmt.Sprintf("max_samples (%d) must not be below min_samples (%d)", def.MaxSamples, def.MinSamples))
	}

	return validateCriteria(def)
}

// ValidateData validates arbitrary data against a JSON Schema provided as raw
// bytes. The schema is compiled and cached for subsequent calls.
func (v *JSONSchemaValidator) ValidateData(data map[string]any, rawSchema []byte) error {
	if data == nil {
		return schema.NewError(schema.ErrCodeValidation, "data is nil")
	}
	if len(rawSchema) == 0 {
		return nil // no schema means no validation needed
	}

	compiled, err := v.getOrCompile(rawSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid schema").WithCause(err)
	}

	doc, err := toJSONValue(data)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize data").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toTraverseError(err)
	}
	return nil
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each dynamic schema gets a unique URL to avoid collisions in the compiler.
	url := fmt.Sprintf("traverse://data-schema/%d", len(v.cache))

	// A fresh compiler per dynamic schema avoids resource collision.
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toTraverseError converts a jsonschema.ValidationError into a TraverseError
// with clear, actionable messages.
func toTraverseError(err error) *schema.TraverseError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
