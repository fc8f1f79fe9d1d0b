package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderASCII(t *testing.T) {
	model := Build(exploredDump(t), "find the checkout page")

	output := RenderASCII(model)

	assert.Contains(t, output, "=== find the checkout page ===")
	assert.Contains(t, output, "start #0")
	assert.Contains(t, output, "navigate #1")
	assert.Contains(t, output, "click_button #2")

	// Outcome tags and uncertainty readouts.
	assert.Contains(t, output, "[OK]")
	assert.Contains(t, output, "[PRUNED]")
	assert.Contains(t, output, "u=0.40")

	// Box borders and level connectors.
	assert.Contains(t, output, "┌")
	assert.Contains(t, output, "└")
	assert.Contains(t, output, "▼")
}

func TestRenderASCIIConnectorCount(t *testing.T) {
	model := Build(exploredDump(t), "")

	output := RenderASCII(model)

	// One connector between each pair of adjacent levels.
	assert.Equal(t, len(model.Levels)-1, strings.Count(output, "▼"))
}

func TestRenderASCIIEmpty(t *testing.T) {
	output := RenderASCII(&DiagramModel{Title: "empty"})
	assert.Equal(t, "=== empty ===\n\n", output)
}

func TestOutcomeTag(t *testing.T) {
	assert.Equal(t, "", outcomeTag(&Node{Kind: NodeKindRoot, Overlay: &Overlay{Success: true}}))
	assert.Equal(t, "", outcomeTag(&Node{Kind: NodeKindState}))
	assert.Equal(t, "[OK]", outcomeTag(&Node{Kind: NodeKindState, Overlay: &Overlay{Success: true}}))
	assert.Equal(t, "[FAIL]", outcomeTag(&Node{Kind: NodeKindState, Overlay: &Overlay{}}))
	assert.Equal(t, "[PRUNED]", outcomeTag(&Node{Kind: NodeKindLeaf, Overlay: &Overlay{Pruned: true, Success: true}}))
}
