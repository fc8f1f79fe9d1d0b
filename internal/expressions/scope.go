package expressions

import (
	"encoding/json"

	"github.com/rendis/traverse/pkg/schema"
)

// scopeKeys are the top-level variables every engine exposes.
var scopeKeys = []string{"step", "task", "graph", "checklist"}

// BuildScope assembles the evaluation scope for criterion expressions. Each
// component is converted through JSON so expressions see plain maps with jq-
// compatible numbers regardless of engine. Nil components become empty maps.
func BuildScope(step *schema.StepRecord, task *schema.TaskDefinition, stats *schema.GraphStats, report *schema.ChecklistReport) map[string]any {
	return map[string]any{
		"step":      toScopeMap(step),
		"task":      toScopeMap(task),
		"graph":     toScopeMap(stats),
		"checklist": toScopeMap(report),
	}
}

// toScopeMap round-trips a struct through JSON into a map. Values that fail
// to marshal (or are nil) yield an empty map; expressions over them simply
// see no fields.
func toScopeMap(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
