package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindRoot  NodeKind = "root"
	NodeKindState NodeKind = "state"
	NodeKindLeaf  NodeKind = "leaf"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single explored state in the diagram.
type Node struct {
	ID      string
	Label   string
	Kind    NodeKind
	Overlay *Overlay
}

// Overlay carries exploration outcome data for a node.
type Overlay struct {
	StepIndex   int
	Uncertainty float64
	Success     bool
	Pruned      bool
}

// Edge represents a transition between two states.
type Edge struct {
	From   string
	To     string
	Label  string
	Weight float64
}
