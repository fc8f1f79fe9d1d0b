package checklist

import (
	"context"
	"fmt"

	"github.com/rendis/traverse/internal/expressions"
	"github.com/rendis/traverse/pkg/schema"
)

// Summary aggregates a run's evaluation history.
type Summary struct {
	TotalEvaluations int                 `json:"total_evaluations"`
	FinalScore       float64             `json:"final_score"`
	FinalProgress    float64             `json:"final_progress"`
	IsComplete       bool                `json:"is_complete"`
	CriteriaProgress []CriterionProgress `json:"criteria_progress,omitempty"`
}

// CriterionProgress records when a criterion was first satisfied.
type CriterionProgress struct {
	Criterion       string  `json:"criterion"`
	SatisfiedAtStep int     `json:"satisfied_at_step"`
	Weight          float64 `json:"weight"`
}

// Evaluator owns checklists per task type, evaluates steps against the
// current one, and keeps the evaluation history for credit assignment.
type Evaluator struct {
	registry   *expressions.Registry
	checklists map[schema.TaskType]*Checklist
	current    *Checklist
	history    []schema.ChecklistReport
}

// NewEvaluator creates an evaluator backed by the given expression registry.
func NewEvaluator(registry *expressions.Registry) *Evaluator {
	return &Evaluator{
		registry:   registry,
		checklists: make(map[schema.TaskType]*Checklist),
	}
}

// CreateChecklist builds the built-in checklist for a task type, registers
// it, and makes it current. Unknown types get the generic checklist.
func (e *Evaluator) CreateChecklist(taskType schema.TaskType, name string) (*Checklist, error) {
	if name == "" {
		name = fmt.Sprintf("%s checklist", taskType)
	}
	c := New(name, taskType)

	var defs []schema.CriterionDefinition
	switch taskType {
	case schema.TaskTypeNavigation:
		defs = navigationCriteria
	case schema.TaskTypeSearch:
		defs = searchCriteria
	case schema.TaskTypeForm:
		defs = formCriteria
	case schema.TaskTypeExtraction:
		defs = extractionCriteria
	default:
		defs = genericCriteria
	}

	for _, def := range defs {
		check, err := ExpressionCheck(e.registry, def.Engine, def.Expression)
		if err != nil {
			return nil, err
		}
		if _, err := c.AddCriterion(def.Description, def.Weight, check); err != nil {
			return nil, err
		}
	}

	e.checklists[taskType] = c
	e.current = c
	return c, nil
}

// ForTask returns the checklist for a task definition: task-supplied criteria
// when present, the built-in checklist for its type otherwise. The result
// becomes the current checklist.
func (e *Evaluator) ForTask(task *schema.TaskDefinition) (*Checklist, error) {
	if len(task.Criteria) > 0 {
		c, err := FromDefinitions(e.registry, task.Goal, task.Type, task.Criteria)
		if err != nil {
			return nil, err
		}
		e.checklists[task.Type] = c
		e.current = c
		return c, nil
	}
	return e.CreateChecklist(task.Type, "")
}

// Current returns the active checklist, or nil before any was created.
func (e *Evaluator) Current() *Checklist {
	return e.current
}

// EvaluateStep scores one step against the current checklist and records the
// report.
func (e *Evaluator) EvaluateStep(ctx context.Context, data map[string]any, stepIndex int) (schema.ChecklistReport, error) {
	if e.current == nil {
		return schema.ChecklistReport{}, schema.NewError(schema.ErrCodeValidation,
			"no checklist created; call CreateChecklist or ForTask first")
	}
	report := e.current.Evaluate(ctx, data, stepIndex)
	e.history = append(e.history, report)
	return report, nil
}

// History returns a copy of all recorded reports.
func (e *Evaluator) History() []schema.ChecklistReport {
	out := make([]schema.ChecklistReport, len(e.history))
	copy(out, e.history)
	return out
}

// Summary condenses the evaluation history: final score and, per criterion,
// the step at which it was first satisfied.
func (e *Evaluator) Summary() Summary {
	if len(e.history) == 0 {
		return Summary{}
	}

	final := e.history[len(e.history)-1]
	summary := Summary{
		TotalEvaluations: len(e.history),
		FinalScore:       final.Score,
		FinalProgress:    final.Progress,
		IsComplete:       final.IsComplete,
	}

	if e.current == nil {
		return summary
	}
	for _, criterion := range e.current.Criteria() {
		for _, report := range e.history {
			satisfied := false
			for _, desc := range report.AllSatisfied {
				if desc == criterion.Description {
					satisfied = true
					break
				}
			}
			if satisfied {
				summary.CriteriaProgress = append(summary.CriteriaProgress, CriterionProgress{
					Criterion:       criterion.Description,
					SatisfiedAtStep: report.StepIndex,
					Weight:          criterion.Weight,
				})
				break
			}
		}
	}
	return summary
}

// Reset clears all checklists' satisfaction state and the history.
func (e *Evaluator) Reset() {
	for _, c := range e.checklists {
		c.Reset()
	}
	e.history = nil
}

// Built-in criteria per task type. All are expr predicates over the step
// scope; missing fields resolve to nil and fall through the ?? defaults.
var (
	navigationCriteria = []schema.CriterionDefinition{
		{
			Description: "Reached target domain",
			Weight:      0.3,
			Expression:  `(step.metadata?.domain_match ?? false) || ((step.metadata?.target_domain ?? "") != "" && (step.metadata?.url ?? "") contains (step.metadata?.target_domain ?? ""))`,
		},
		{
			Description: "Found interactive element",
			Weight:      0.3,
			Expression:  `any(["click", "button", "link", "input", "submit", "href"], lower(step.observation ?? "") contains #)`,
		},
		{
			Description: "Successfully navigated to target page",
			Weight:      0.4,
			Expression:  `(step.metadata?.target_reached ?? false) || (step.success ?? false)`,
		},
	}

	searchCriteria = []schema.CriterionDefinition{
		{
			Description: "Located search interface",
			Weight:      0.2,
			Expression:  `any(["search", "query", "find"], lower(step.observation ?? "") contains #)`,
		},
		{
			Description: "Submitted query",
			Weight:      0.3,
			Expression:  `lower(step.action ?? "") contains "submit" || (step.metadata?.query_submitted ?? false)`,
		},
		{
			Description: "Received search results",
			Weight:      0.25,
			Expression:  `any(["result", "found", "matches", "showing", "items"], lower(step.observation ?? "") contains #) || (step.metadata?.results_count ?? 0) > 0`,
		},
		{
			Description: "Verified result relevance",
			Weight:      0.25,
			Expression:  `(step.metadata?.relevance_verified ?? false) || (step.metadata?.found_match ?? false)`,
		},
	}

	formCriteria = []schema.CriterionDefinition{
		{
			Description: "Located form",
			Weight:      0.2,
			Expression:  `lower(step.observation ?? "") contains "form"`,
		},
		{
			Description: "Filled required fields",
			Weight:      0.3,
			Expression:  `(step.metadata?.required_fields_filled ?? false) || (step.metadata?.fields_completed ?? 0) > 0`,
		},
		{
			Description: "Validated form input",
			Weight:      0.2,
			Expression:  `(step.metadata?.validated ?? false) || !any(["error", "invalid", "required"], lower(step.observation ?? "") contains #)`,
		},
		{
			Description: "Submitted successfully",
			Weight:      0.3,
			Expression:  `(step.metadata?.form_submitted ?? false) || (step.success ?? false)`,
		},
	}

	extractionCriteria = []schema.CriterionDefinition{
		{
			Description: "Accessed target page",
			Weight:      0.25,
			Expression:  `(step.metadata?.target_reached ?? false) || (step.success ?? false)`,
		},
		{
			Description: "Located relevant content",
			Weight:      0.35,
			Expression:  `(step.metadata?.content_located ?? false) || (step.metadata?.target_found ?? false)`,
		},
		{
			Description: "Extracted required information",
			Weight:      0.4,
			Expression:  `step.metadata?.extracted_data != nil || (step.metadata?.info_extracted ?? false)`,
		},
	}

	genericCriteria = []schema.CriterionDefinition{
		{
			Description: "Started task execution",
			Weight:      0.2,
			Expression:  `(step.index ?? 0) > 0`,
		},
		{
			Description: "Made progress toward goal",
			Weight:      0.8,
			Expression:  `step.metadata?.progress ?? false`,
		},
	}
)
