package diagram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/traverse/internal/graph"
	"github.com/rendis/traverse/pkg/schema"
)

// exploredDump builds a small exploration graph: the root fans into a
// successful branch (navigate then click) and a failed branch that gets
// pruned.
func exploredDump(t *testing.T) schema.GraphDump {
	t.Helper()
	g := graph.New()
	now := time.Now()

	root := g.AddState("find the checkout page", "start", map[string]any{"task": "find the checkout page"}, now)
	nav := g.AddState("page loaded", "navigate",
		map[string]any{"step_index": 0, "uncertainty": 0.4, "success": true}, now)
	_, err := g.AddEdge(root, nav, 0.6, true, "navigate", nil)
	require.NoError(t, err)

	click := g.AddState("checkout button visible", "click_button",
		map[string]any{"step_index": 1, "uncertainty": 0.2, "success": true}, now)
	_, err = g.AddEdge(nav, click, 0.8, true, "click_button", nil)
	require.NoError(t, err)

	dead := g.AddState("error page", "go_back",
		map[string]any{"step_index": 2, "uncertainty": 0.9, "success": false}, now)
	_, err = g.AddEdge(nav, dead, 0.1, false, "go_back", nil)
	require.NoError(t, err)

	_, err = g.PruneBranch(dead)
	require.NoError(t, err)

	return g.Dump()
}

func TestBuildNodes(t *testing.T) {
	model := Build(exploredDump(t), "find the checkout page")

	require.Len(t, model.Nodes, 4)
	assert.Equal(t, "find the checkout page", model.Title)

	// Nodes sort by state ID.
	assert.Equal(t, "s0", model.Nodes[0].ID)
	assert.Equal(t, NodeKindRoot, model.Nodes[0].Kind)
	assert.Equal(t, "start #0", model.Nodes[0].Label)

	assert.Equal(t, "s1", model.Nodes[1].ID)
	assert.Equal(t, NodeKindState, model.Nodes[1].Kind)

	// States without successors are leaves.
	assert.Equal(t, NodeKindLeaf, model.Nodes[2].Kind)
	assert.Equal(t, NodeKindLeaf, model.Nodes[3].Kind)
}

func TestBuildOverlays(t *testing.T) {
	model := Build(exploredDump(t), "")

	nav := model.Nodes[1]
	require.NotNil(t, nav.Overlay)
	assert.Equal(t, 0, nav.Overlay.StepIndex)
	assert.InDelta(t, 0.4, nav.Overlay.Uncertainty, 1e-9)
	assert.True(t, nav.Overlay.Success)
	assert.False(t, nav.Overlay.Pruned)

	dead := model.Nodes[3]
	require.NotNil(t, dead.Overlay)
	assert.True(t, dead.Overlay.Pruned)
	assert.False(t, dead.Overlay.Success)
}

func TestBuildEdges(t *testing.T) {
	model := Build(exploredDump(t), "")

	require.Len(t, model.Edges, 3)
	assert.Equal(t, Edge{From: "s0", To: "s1", Label: "navigate", Weight: 0.6}, model.Edges[0])
	assert.Equal(t, Edge{From: "s1", To: "s2", Label: "click_button", Weight: 0.8}, model.Edges[1])
	assert.Equal(t, Edge{From: "s1", To: "s3", Label: "go_back", Weight: 0.1}, model.Edges[2])
}

func TestBuildLevels(t *testing.T) {
	model := Build(exploredDump(t), "")

	require.Len(t, model.Levels, 3)
	assert.Equal(t, []string{"s0"}, model.Levels[0])
	assert.Equal(t, []string{"s1"}, model.Levels[1])
	assert.Equal(t, []string{"s2", "s3"}, model.Levels[2])
}

func TestBuildOrphanStates(t *testing.T) {
	g := graph.New()
	now := time.Now()
	g.AddState("root", "start", nil, now)
	g.AddState("floating", "wait", nil, now)

	model := Build(g.Dump(), "")

	// The unreachable state lands in a trailing level.
	require.Len(t, model.Levels, 2)
	assert.Equal(t, []string{"s0"}, model.Levels[0])
	assert.Equal(t, []string{"s1"}, model.Levels[1])
}

func TestBuildEmptyDump(t *testing.T) {
	model := Build(graph.New().Dump(), "empty")

	assert.Empty(t, model.Nodes)
	assert.Empty(t, model.Edges)
	assert.Empty(t, model.Levels)
}
