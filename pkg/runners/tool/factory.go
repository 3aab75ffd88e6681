package tool

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
)

// Factory creates tool runners bound to the tool engine.
type Factory struct {
	invoker protocol.ToolInvoker
}

// NewFactory creates a factory around the given tool invoker.
func NewFactory(invoker protocol.ToolInvoker) protocol.RunnerFactory {
	return &Factory{invoker: invoker}
}

// Create creates a tool runner from configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config, f.invoker)
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeTool
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "Published Tool"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Invokes a published tool by id with inputs mapped from the execution context"
}

// Schema returns the JSON schema for tool node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_id": map[string]any{"type": "string"},
			"inputs": map[string]any{
				"type":        "object",
				"description": "Tool input name to literal value, field reference or template",
			},
		},
		"required": []string{"tool_id"},
	}
}
