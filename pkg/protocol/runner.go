// Package protocol defines the interfaces and contracts for pluggable node runners.
package protocol

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
)

// RunnerResult is what a runner reports back to the executor after one
// node execution.
//
// Routing is resolved in this order: NextNodeIDs when non-nil (explicit
// successor override), then Port when non-empty (edges whose source
// handle matches), otherwise every outgoing edge of the node.
type RunnerResult struct {
	Success        bool     `json:"success"`
	Output         any      `json:"output,omitempty"`
	Error          string   `json:"error,omitempty"`
	ShouldContinue bool     `json:"should_continue"`
	Port           string   `json:"port,omitempty"`
	NextNodeIDs    []string `json:"next_node_ids,omitempty"`
}

// Runner executes one node type. Implementations are stateless across
// invocations; all run-scoped state lives in the execution context.
type Runner interface {
	// Execute runs the node against the execution context. Expected
	// failures (bad config, non-2xx response, provider error) are
	// reported through RunnerResult.Success=false, not the error
	// return; the error return is for unexpected faults only.
	Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*RunnerResult, error)
}

// RunnerProvider hands out a runner for an arbitrary node. Satisfied by
// the registry; kept as an interface so composite runners (loop) can
// dispatch nested steps without depending on the registry package.
type RunnerProvider interface {
	CreateRunner(ctx context.Context, node *models.Node) (Runner, error)
}

// ToolInvoker runs a published tool by id with mapped inputs. Satisfied
// by the tool-builder engine.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, toolID string, input map[string]any) (map[string]any, error)
}

// RunnerFactory creates runner instances and provides metadata about
// the node type.
type RunnerFactory interface {
	// Create creates a runner for the given node configuration.
	Create(ctx context.Context, config map[string]any) (Runner, error)

	// Type returns the node type this factory serves.
	Type() models.NodeType

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns a description of what this node does.
	Description() string

	// Schema returns the JSON schema for configuring this node type.
	Schema() map[string]any
}
