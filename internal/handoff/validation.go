package handoff

import (
	"github.com/rendis/traverse/pkg/schema"
)

// ValidateResolution checks that the operator's chosen action is among the
// candidates offered at escalation time. An empty candidate list accepts any
// choice (free-form resolution). Returns nil if valid.
func ValidateResolution(candidates []string, choice string) error {
	if len(candidates) == 0 {
		return nil // free-form: any choice accepted
	}
	for _, c := range candidates {
		if c == choice {
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "invalid choice %q: not in candidate actions", choice)
}
