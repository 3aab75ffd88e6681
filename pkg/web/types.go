// Package web provides the HTTP surface: workflow and tool CRUD, run
// endpoints and execution inspection, with RFC 7807 error payloads.
package web

import "github.com/flowmatic/flowmatic/pkg/models"

// CreateWorkflowRequest is the body for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	UserID      string         `json:"user_id"     validate:"required"`
	IsActive    bool           `json:"is_active"`
	Nodes       []*models.Node `json:"nodes"`
	Edges       []*models.Edge `json:"edges"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// UpdateWorkflowRequest is the body for updating a workflow. Nil fields
// keep their stored values.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string        `json:"description,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
	Nodes       []*models.Node `json:"nodes,omitempty"`
	Edges       []*models.Edge `json:"edges,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
}

// ExecuteWorkflowRequest is the body for running a workflow. With
// Async set the request is queued instead of executed in-request.
type ExecuteWorkflowRequest struct {
	UserID      string         `json:"user_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Async       bool           `json:"async,omitempty"`
}

// ValidateWorkflowResponse lists the problems found in a workflow
// graph; an empty list means the workflow is executable.
type ValidateWorkflowResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

// CreateToolRequest is the body for creating a tool.
type CreateToolRequest struct {
	Name           string              `json:"name"        validate:"required,min=3"`
	Description    string              `json:"description"`
	UserID         string              `json:"user_id"     validate:"required"`
	Inputs         []models.ToolInput  `json:"inputs"`
	Logic          []*models.LogicStep `json:"logic"`
	OutputTemplate string              `json:"output_template,omitempty"`
}

// UpdateToolRequest is the body for updating a tool definition. Nil
// fields keep their stored values; status changes go through publish.
type UpdateToolRequest struct {
	Name           *string             `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description    *string             `json:"description,omitempty"`
	Inputs         []models.ToolInput  `json:"inputs,omitempty"`
	Logic          []*models.LogicStep `json:"logic,omitempty"`
	OutputTemplate *string             `json:"output_template,omitempty"`
}

// RunToolRequest is the body for invoking or test-running a tool.
type RunToolRequest struct {
	Input map[string]any `json:"input"`
}

// ResolverResponse carries generated resolver source.
type ResolverResponse struct {
	ToolID string `json:"tool_id"`
	Source string `json:"source"`
}
