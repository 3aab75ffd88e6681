package transform

import (
	"context"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/transforms"
)

// Factory creates transform runners.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.RunnerFactory {
	return &Factory{}
}

// Create creates a transform runner from configuration.
func (f *Factory) Create(_ context.Context, config map[string]any) (protocol.Runner, error) {
	return NewRunner(config)
}

// Type returns the node type this factory serves.
func (f *Factory) Type() models.NodeType {
	return models.NodeTypeTransform
}

// Name returns the human-readable name.
func (f *Factory) Name() string {
	return "Transform"
}

// Description describes the runner.
func (f *Factory) Description() string {
	return "Applies a named pure function (uppercase, format_currency, ...) to one input field"
}

// Schema returns the JSON schema for transform node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"function": map[string]any{
				"type": "string",
				"enum": transforms.Names(),
			},
			"field": map[string]any{
				"type":        "string",
				"description": "Field reference resolved against variables, trigger data or step outputs",
			},
		},
		"required": []string{"function", "field"},
	}
}
