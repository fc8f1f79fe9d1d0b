package agent

import (
	"context"
	"fmt"

	"github.com/rendis/traverse/pkg/schema"
)

// ActionExecutor carries out one action against the environment the agent is
// exploring. Implementations may fail; the agent converts failures into
// unsuccessful results and keeps going.
type ActionExecutor interface {
	Execute(ctx context.Context, actionLabel string) (schema.ActionResult, error)
}

// ExecutorFunc adapts a plain function to the ActionExecutor interface.
type ExecutorFunc func(ctx context.Context, actionLabel string) (schema.ActionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, actionLabel string) (schema.ActionResult, error) {
	return f(ctx, actionLabel)
}

var simulatedObservations = map[string]string{
	"navigate":        "Navigated to target page. Found search bar and navigation links.",
	"click":           "Clicked element. Page updated with new content.",
	"type":            "Typed text into field. Input accepted.",
	"scroll":          "Scrolled down. More content loaded.",
	"wait":            "Waited for page to load. Page is stable.",
	"go_back":         "Navigated back. Previous page loaded.",
	"submit_form":     "Form submitted. Success message displayed.",
	"take_screenshot": "Screenshot captured.",
}

// SimulatedExecutor is the built-in environment stub used for demos and
// tests. Every action succeeds with a canned observation.
type SimulatedExecutor struct{}

func (SimulatedExecutor) Execute(ctx context.Context, actionLabel string) (schema.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return schema.ActionResult{}, err
	}
	obs, ok := simulatedObservations[actionLabel]
	if !ok {
		obs = fmt.Sprintf("Action %q executed.", actionLabel)
	}
	return schema.ActionResult{
		Observation: obs,
		Success:     true,
		Metadata:    map[string]any{"simulated": true},
	}, nil
}
