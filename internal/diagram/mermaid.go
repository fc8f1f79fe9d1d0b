package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	// Title as comment.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	// Render nodes with shapes based on kind.
	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	// Render edges; weights ride on the label.
	for _, edge := range model.Edges {
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), mermaidEdgeLabel(edge), mermaidSafeID(edge.To)))
	}

	// Outcome class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef ok fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef pruned fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")

	// Apply outcome classes.
	for _, node := range model.Nodes {
		cls := mermaidOutcomeClass(node)
		if cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case NodeKindRoot:
		return fmt.Sprintf("%s((%q))", id, label)
	case NodeKindLeaf:
		return fmt.Sprintf("%s([%q])", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidEdgeLabel formats an edge label with its weight, empty when the edge
// carries neither.
func mermaidEdgeLabel(edge Edge) string {
	switch {
	case edge.Label != "" && edge.Weight > 0:
		return fmt.Sprintf("|%s w=%.2f|", edge.Label, edge.Weight)
	case edge.Label != "":
		return fmt.Sprintf("|%s|", edge.Label)
	case edge.Weight > 0:
		return fmt.Sprintf("|w=%.2f|", edge.Weight)
	}
	return ""
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidOutcomeClass maps a node's overlay to a Mermaid class name.
// Pruned wins over success so dead branches stay visibly dead.
func mermaidOutcomeClass(node *Node) string {
	if node.Overlay == nil || node.Kind == NodeKindRoot {
		return ""
	}
	switch {
	case node.Overlay.Pruned:
		return "pruned"
	case node.Overlay.Success:
		return "ok"
	default:
		return "failed"
	}
}
