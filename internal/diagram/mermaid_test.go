package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMermaid(t *testing.T) {
	model := Build(exploredDump(t), "find the checkout page")

	output := RenderMermaid(model)

	// Must start with graph TD and carry the title comment.
	assert.Contains(t, output, "graph TD")
	assert.Contains(t, output, "%% find the checkout page")

	// Root uses double parens (circle), leaves use stadium, states use boxes.
	assert.Contains(t, output, "s0((")
	assert.Contains(t, output, "s1[")
	assert.Contains(t, output, "s2([")

	// Edges carry action and weight.
	assert.Contains(t, output, "s0 -->|navigate w=0.60| s1")
	assert.Contains(t, output, "s1 -->|click_button w=0.80| s2")

	// Outcome class definitions.
	assert.Contains(t, output, "classDef ok")
	assert.Contains(t, output, "classDef failed")
	assert.Contains(t, output, "classDef pruned")

	// Outcome classes applied; the root gets none.
	assert.Contains(t, output, "class s1 ok")
	assert.Contains(t, output, "class s3 pruned")
	assert.NotContains(t, output, "class s0")
}

func TestRenderMermaidFailedState(t *testing.T) {
	model := Build(exploredDump(t), "")

	// Unprune the dead branch so the failure class shows through.
	model.Nodes[3].Overlay.Pruned = false

	output := RenderMermaid(model)
	assert.Contains(t, output, "class s3 failed")
}

func TestRenderMermaidNoTitle(t *testing.T) {
	model := Build(exploredDump(t), "")

	output := RenderMermaid(model)
	assert.NotContains(t, output, "%%")
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "a_b_c_d", mermaidSafeID("a.b-c d"))
}
