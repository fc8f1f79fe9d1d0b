package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a DiagramModel as a PNG image using graphviz.
// Returns the PNG bytes.
func RenderImage(model *DiagramModel) ([]byte, error) {
	ctx := context.Background()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	// Create nodes.
	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	// Create edges.
	for _, edge := range model.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr != nil {
			continue
		}
		if edge.Label != "" {
			e.SetLabel(edge.Label)
		}
		// Strong transitions draw heavier lines.
		if edge.Weight >= 0.7 {
			e.SetPenWidth(2.0)
		}
	}

	// Render to PNG.
	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// applyNodeStyle sets graphviz attributes based on node kind and overlay.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	// Shape by kind.
	switch node.Kind {
	case NodeKindRoot:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	case NodeKindLeaf:
		gvNode.SetShape(cgraph.EllipseShape)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	// Color by outcome.
	if node.Overlay != nil && node.Kind != NodeKindRoot {
		applyOutcomeColor(gvNode, node.Overlay)
	}
}

// applyOutcomeColor sets fill color and style based on the overlay.
func applyOutcomeColor(gvNode *cgraph.Node, overlay *Overlay) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch {
	case overlay.Pruned:
		gvNode.SetFillColor("#e8e8e8")
		gvNode.SetFontColor("#888888")
		gvNode.SetStyle(cgraph.DashedNodeStyle)
	case overlay.Success:
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	default:
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	}
}
