// Package models defines the core domain models for node-based workflow execution.
package models

// NodeType identifies the runner responsible for executing a node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeTransform NodeType = "transform"
	NodeTypeAPI       NodeType = "api"
	NodeTypeAI        NodeType = "ai"
	NodeTypeLoop      NodeType = "loop"
	NodeTypeTool      NodeType = "tool"
)

// NodeTypes lists every node type a registry must provide a runner for.
var NodeTypes = []NodeType{
	NodeTypeTrigger,
	NodeTypeAction,
	NodeTypeCondition,
	NodeTypeTransform,
	NodeTypeAPI,
	NodeTypeAI,
	NodeTypeLoop,
	NodeTypeTool,
}

// Position is the node's canvas placement. It is display-only and
// ignored by the executor.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed unit of work in a workflow graph. Nodes are immutable
// once loaded into an execution.
type Node struct {
	ID       string         `json:"id"       validate:"required"`
	Type     NodeType       `json:"type"     validate:"required,oneof=trigger action condition transform api ai loop tool"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// IsTrigger reports whether the node is the workflow's entry point.
func (n *Node) IsTrigger() bool {
	return n.Type == NodeTypeTrigger
}

// Edge is a directed link between two nodes. SourceHandle disambiguates
// multiple outgoing paths from one node (e.g. "true"/"false" from a
// condition). Edges form a multigraph.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}
