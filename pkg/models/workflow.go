package models

import (
	"errors"
	"time"
)

// Workflow represents a stored workflow graph.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	UserID      string         `json:"user_id"     validate:"required"`
	IsActive    bool           `json:"is_active"`
	Nodes       []*Node        `json:"nodes"`
	Edges       []*Edge        `json:"edges"`
	Variables   map[string]any `json:"variables,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ErrNoTriggerNode is returned when a workflow graph has no trigger-typed node.
var ErrNoTriggerNode = errors.New("workflow has no trigger node")

// TriggerNode returns the workflow's single trigger node, or
// ErrNoTriggerNode when none exists.
func (w *Workflow) TriggerNode() (*Node, error) {
	for _, node := range w.Nodes {
		if node.IsTrigger() {
			return node, nil
		}
	}

	return nil, ErrNoTriggerNode
}

// EdgeMap builds an adjacency map from node id to its outgoing edges
// for O(1) successor lookup during traversal.
func (w *Workflow) EdgeMap() map[string][]*Edge {
	edgeMap := make(map[string][]*Edge, len(w.Nodes))
	for _, edge := range w.Edges {
		edgeMap[edge.Source] = append(edgeMap[edge.Source], edge)
	}

	return edgeMap
}

// NodeByID returns the node with the given id, if present.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}
