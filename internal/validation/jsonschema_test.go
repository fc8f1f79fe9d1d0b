package validation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/traverse/pkg/schema"
)

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.NotNil(t, v.taskSchema)
}

// --- ValidateTask ---

func TestValidateTask_Nil(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateTask(nil)
	require.Error(t, err)

	terr, ok := err.(*schema.TraverseError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, terr.Code)
	assert.Contains(t, terr.Message, "nil")
}

func TestValidateTask_MinimalValid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateTask(&schema.TaskDefinition{Goal: "find the docs"})
	assert.NoError(t, err)
}

func TestValidateTask_FullValid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	def := &schema.TaskDefinition{
		Goal:                 "submit the signup form",
		Type:                 schema.TaskTypeForm,
		MaxSteps:             25,
		MinSamples:           3,
		MaxSamples:           15,
		UncertaintyThreshold: 0.7,
		Criteria: []schema.CriterionDefinition{
			{Description: "form filled", Weight: 0.5, Engine: schema.EngineExpr, Expression: `step.action == "fill_field"`},
			{Description: "form submitted", Weight: 0.5, Engine: schema.EngineJQ, Expression: `.step.observation | contains("submitted")`},
		},
		Metadata: map[string]any{"owner": "qa"},
	}
	err = v.ValidateTask(def)
	assert.NoError(t, err)
}

func TestValidateTask_MissingGoal(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateTask(&schema.TaskDefinition{})
	require.Error(t, err)

	terr, ok := err.(*schema.TraverseError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, terr.Code)
}

func TestValidateTask_BadWeight(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	def := &schema.TaskDefinition{
		Goal: "weights out of range",
		Criteria: []schema.CriterionDefinition{
			{Description: "too heavy", Weight: 1.5, Expression: "true"},
		},
	}
	err = v.ValidateTask(def)
	require.Error(t, err)

	terr, ok := err.(*schema.TraverseError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, terr.Code)
	assert.NotEmpty(t, terr.Details["violations"])
}

func TestValidateTask_BadEngine(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	def := &schema.TaskDefinition{
		Goal: "engine not in the enum",
		Criteria: []schema.CriterionDefinition{
			{Description: "criterion", Weight: 0.5, Engine: "lua", Expression: "true"},
		},
	}
	err = v.ValidateTask(def)
	require.Error(t, err)
}

func TestValidateTask_SampleBoundsInverted(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	def := &schema.TaskDefinition{
		Goal:       "inverted sample bounds",
		MinSamples: 10,
		MaxSamples: 3,
	}
	err = v.ValidateTask(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_samples")
}

func TestValidateTask_ExpressionDoesNotCompile(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	def := &schema.TaskDefinition{
		Goal: "broken expression",
		Criteria: []schema.CriterionDefinition{
			{Description: "unparseable", Weight: 0.5, Engine: schema.EngineJQ, Expression: "|||"},
		},
	}
	err = v.ValidateTask(def)
	require.Error(t, err)

	terr, ok := err.(*schema.TraverseError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, terr.Code)
	assert.Contains(t, terr.Message, "criteria[0]")
}

func TestValidateTask_RuntimeOnlyExpressionFailuresPass(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	// Compiles fine against any scope; only fails at runtime when the
	// fields are missing. Validation must not reject it.
	def := &schema.TaskDefinition{
		Goal: "runtime lookups",
		Criteria: []schema.CriterionDefinition{
			{Description: "step index present", Weight: 1.0, Expression: "step.index >= 3"},
		},
	}
	err = v.ValidateTask(def)
	assert.NoError(t, err)
}

// --- ValidateData ---

func TestValidateData_NoSchema(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	assert.NoError(t, v.ValidateData(map[string]any{"anything": 1}, nil))
}

func TestValidateData_NilData(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateData(nil, []byte(`{"type":"object"}`))
	require.Error(t, err)
}

func TestValidateData_ValidAndInvalid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	rawSchema := []byte(`{
		"type": "object",
		"required": ["url"],
		"properties": {
			"url": {"type": "string", "minLength": 1}
		}
	}`)

	assert.NoError(t, v.ValidateData(map[string]any{"url": "https://example.com"}, rawSchema))

	err = v.ValidateData(map[string]any{"url": ""}, rawSchema)
	require.Error(t, err)

	terr, ok := err.(*schema.TraverseError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, terr.Code)
}

func TestValidateData_BadSchema(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateData(map[string]any{"k": "v"}, []byte(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema")
}

func TestValidateData_SchemaCacheIsConcurrencySafe(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	rawSchema := []byte(`{"type": "object"}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = v.ValidateData(map[string]any{"k": "v"}, rawSchema)
		}()
	}
	wg.Wait()

	v.mu.RLock()
	defer v.mu.RUnlock()
	assert.Len(t, v.cache, 1)
}
